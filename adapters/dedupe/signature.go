package dedupe

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"govigil/domain/core"
	"govigil/domain/signal"
)

// compositeSignature hashes the normalized identity fields of a case:
// drug set, reaction set, age, sex, country, onset date. Identical
// signatures mean exact duplicates.
func compositeSignature(c *signal.CaseRecord) core.Hash {
	drugs := make([]string, len(c.Drugs))
	copy(drugs, c.Drugs)
	sort.Strings(drugs)

	reactions := make([]string, len(c.Reactions))
	copy(reactions, c.Reactions)
	sort.Strings(reactions)

	var sb strings.Builder
	sb.WriteString(strings.Join(drugs, ","))
	sb.WriteString("|")
	sb.WriteString(strings.Join(reactions, ","))
	sb.WriteString("|")
	fmt.Fprintf(&sb, "%.0f|%s|%s|%s", c.Age, c.Sex, c.Country, c.OnsetDate.Format("2006-01-02"))

	return core.NewHash([]byte(sb.String()))
}

// exactGroups buckets cases by composite signature; every bucket with more
// than one member becomes a merge-suggested group with similarity 1.0.
func (e *Engine) exactGroups(ctx context.Context, table *signal.CaseTable) ([]signal.DuplicateGroup, error) {
	buckets := make(map[core.Hash][]int)
	for i := range table.Cases {
		if i%4096 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}
		sig := compositeSignature(&table.Cases[i])
		buckets[sig] = append(buckets[sig], i)
	}

	var groups []signal.DuplicateGroup
	for sig, idxs := range buckets {
		if len(idxs) < 2 {
			continue
		}
		sort.Ints(idxs)
		ids := make([]core.CaseID, len(idxs))
		for i, idx := range idxs {
			ids[i] = table.Cases[idx].ID
		}
		groups = append(groups, signal.DuplicateGroup{
			CaseIDs:    ids,
			Similarity: 1.0,
			Signature:  sig,
			Action:     signal.ActionMerge,
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].CaseIDs[0] < groups[j].CaseIDs[0]
	})
	return groups, nil
}
