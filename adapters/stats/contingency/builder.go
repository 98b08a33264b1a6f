package contingency

import (
	"govigil/domain/core"
	"govigil/domain/signal"
)

// Builder derives 2x2 contingency counts for (drug, reaction) pairs. Matching
// is exact on already-normalized terms; fuzzy matching is owned upstream.
type Builder struct{}

// NewBuilder creates a contingency table builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Build counts the four cells against the filtered case universe. Every cell
// is counted from the same universe: a filter never applies to one cell only.
// Returns ErrInsufficientData when the filtered universe is empty.
func (b *Builder) Build(table *signal.CaseTable, drug, reaction string, filters *signal.Filters) (signal.ContingencyCell, error) {
	var cell signal.ContingencyCell
	universe := 0

	for i := range table.Cases {
		c := &table.Cases[i]
		if filters != nil && !filters.Matches(c) {
			continue
		}
		universe++

		hasDrug := c.HasDrug(drug)
		hasReaction := c.HasReaction(reaction)
		switch {
		case hasDrug && hasReaction:
			cell.A++
		case hasDrug:
			cell.B++
		case hasReaction:
			cell.C++
		default:
			cell.D++
		}
	}

	if universe == 0 {
		return signal.ContingencyCell{}, core.ErrInsufficientData
	}
	return cell, nil
}

// Subset returns the filtered cases that list both the drug and the reaction.
// Used by the clustering engine to isolate one signal's case subset.
func (b *Builder) Subset(table *signal.CaseTable, drug, reaction string, filters *signal.Filters) []signal.CaseRecord {
	var subset []signal.CaseRecord
	for i := range table.Cases {
		c := &table.Cases[i]
		if filters != nil && !filters.Matches(c) {
			continue
		}
		if c.HasDrug(drug) && c.HasReaction(reaction) {
			subset = append(subset, *c)
		}
	}
	return subset
}
