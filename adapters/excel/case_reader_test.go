package excel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govigil/domain/signal"
)

const sampleCSV = `case_id,drugs,reactions,age,sex,country,serious,onset_date,report_date,outcome
C-001,Aspirin;  Metformin,Nausea,64,F,us,1,2025-03-01,2025-03-05,recovered
C-002,ibuprofen,HEADACHE; dizziness,41,male,GB,0,2025-02-10,2025-02-12,recovering
C-003,,rash,30,F,DE,0,2025-01-01,2025-01-02,unknown
C-004,sertraline,insomnia,,U,FR,no,bad-date,2025-04-01,
`

func writeSample(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCaseReader_CSVNormalizesTerms(t *testing.T) {
	reader := NewCaseReader(writeSample(t, "cases.csv", sampleCSV))
	table, err := reader.Read()
	require.NoError(t, err)

	// Row C-003 has no drugs and must be dropped
	require.Equal(t, 3, table.Size())

	c := table.Cases[0]
	assert.Equal(t, []string{"aspirin", "metformin"}, c.Drugs)
	assert.Equal(t, []string{"nausea"}, c.Reactions)
	assert.Equal(t, signal.SexFemale, c.Sex)
	assert.Equal(t, "US", c.Country)
	assert.True(t, c.Serious)

	c2 := table.Cases[1]
	assert.Equal(t, []string{"headache", "dizziness"}, c2.Reactions)
	assert.Equal(t, signal.SexMale, c2.Sex)
	assert.False(t, c2.Serious)
}

func TestCaseReader_UnknownsAndBadDates(t *testing.T) {
	reader := NewCaseReader(writeSample(t, "cases.csv", sampleCSV))
	table, err := reader.Read()
	require.NoError(t, err)

	c := table.Cases[2] // C-004
	assert.Equal(t, -1.0, c.Age, "missing age must be coded as unknown")
	assert.Equal(t, signal.SexUnknown, c.Sex)
	assert.True(t, c.OnsetDate.IsZero(), "unparseable dates must stay zero")
	assert.False(t, c.ReportDate.IsZero())
}

func TestCaseReader_VersionIsContentDerived(t *testing.T) {
	a := writeSample(t, "a.csv", sampleCSV)
	b := writeSample(t, "b.csv", sampleCSV)

	ta, err := NewCaseReader(a).Read()
	require.NoError(t, err)
	tb, err := NewCaseReader(b).Read()
	require.NoError(t, err)
	assert.Equal(t, ta.Version, tb.Version, "identical content must map to the same dataset version")

	edited := sampleCSV + "C-005,aspirin,nausea,50,M,US,0,2025-05-01,2025-05-02,recovered\n"
	tc, err := NewCaseReader(writeSample(t, "c.csv", edited)).Read()
	require.NoError(t, err)
	assert.NotEqual(t, ta.Version, tc.Version)
}

func TestCaseReader_MissingColumnsFail(t *testing.T) {
	path := writeSample(t, "bad.csv", "case_id,drugs\nC-001,aspirin\n")
	_, err := NewCaseReader(path).Read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reactions")
}

func TestCaseReader_MissingFile(t *testing.T) {
	_, err := NewCaseReader("/nonexistent/cases.csv").Read()
	require.Error(t, err)
}
