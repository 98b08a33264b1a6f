package contingency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govigil/domain/core"
	"govigil/domain/signal"
)

func caseRecord(id string, drugs, reactions []string, age float64, sex signal.Sex, serious bool) signal.CaseRecord {
	return signal.CaseRecord{
		ID:         core.CaseID(id),
		Drugs:      drugs,
		Reactions:  reactions,
		Age:        age,
		Sex:        sex,
		Serious:    serious,
		ReportDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBuilder_CountsAndInvariant(t *testing.T) {
	table := &signal.CaseTable{
		Version: "v1",
		Cases: []signal.CaseRecord{
			caseRecord("1", []string{"aspirin"}, []string{"nausea"}, 30, signal.SexFemale, false),
			caseRecord("2", []string{"aspirin"}, []string{"rash"}, 40, signal.SexMale, false),
			caseRecord("3", []string{"ibuprofen"}, []string{"nausea"}, 50, signal.SexFemale, true),
			caseRecord("4", []string{"ibuprofen"}, []string{"headache"}, 60, signal.SexMale, false),
			caseRecord("5", []string{"aspirin", "ibuprofen"}, []string{"nausea", "rash"}, 25, signal.SexFemale, true),
		},
	}

	b := NewBuilder()
	cell, err := b.Build(table, "aspirin", "nausea", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, cell.A) // cases 1, 5
	assert.Equal(t, 1, cell.B) // case 2
	assert.Equal(t, 1, cell.C) // case 3
	assert.Equal(t, 1, cell.D) // case 4
	assert.Equal(t, table.Size(), cell.Total(), "a+b+c+d must equal universe size")
}

func TestBuilder_FiltersApplyToWholeUniverse(t *testing.T) {
	table := &signal.CaseTable{
		Version: "v1",
		Cases: []signal.CaseRecord{
			caseRecord("1", []string{"aspirin"}, []string{"nausea"}, 30, signal.SexFemale, false),
			caseRecord("2", []string{"aspirin"}, []string{"rash"}, 70, signal.SexMale, false),
			caseRecord("3", []string{"ibuprofen"}, []string{"nausea"}, 72, signal.SexMale, true),
		},
	}

	b := NewBuilder()
	cell, err := b.Build(table, "aspirin", "nausea", &signal.Filters{MinAge: 65})
	require.NoError(t, err)

	// Case 1 is excluded from every cell, not just from a
	assert.Equal(t, signal.ContingencyCell{A: 0, B: 1, C: 1, D: 0}, cell)
	assert.Equal(t, 2, cell.Total())
}

func TestBuilder_EmptyUniverse(t *testing.T) {
	table := &signal.CaseTable{
		Version: "v1",
		Cases: []signal.CaseRecord{
			caseRecord("1", []string{"aspirin"}, []string{"nausea"}, 30, signal.SexFemale, false),
		},
	}

	b := NewBuilder()
	_, err := b.Build(table, "aspirin", "nausea", &signal.Filters{MinAge: 99})
	require.ErrorIs(t, err, core.ErrInsufficientData)
}

func TestBuilder_Subset(t *testing.T) {
	table := &signal.CaseTable{
		Version: "v1",
		Cases: []signal.CaseRecord{
			caseRecord("1", []string{"aspirin"}, []string{"nausea"}, 30, signal.SexFemale, false),
			caseRecord("2", []string{"aspirin"}, []string{"rash"}, 40, signal.SexMale, false),
			caseRecord("3", []string{"aspirin", "warfarin"}, []string{"nausea"}, 50, signal.SexFemale, true),
		},
	}

	b := NewBuilder()
	subset := b.Subset(table, "aspirin", "nausea", nil)
	require.Len(t, subset, 2)
	assert.Equal(t, core.CaseID("1"), subset[0].ID)
	assert.Equal(t, core.CaseID("3"), subset[1].ID)
}
