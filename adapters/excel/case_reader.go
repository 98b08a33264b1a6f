// Package excel loads adverse-event case tables from Excel and CSV files.
// Terms are normalized on the way in (lowercased, whitespace collapsed) so
// downstream matching never deals with formatting noise.
package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"govigil/domain/core"
	"govigil/domain/signal"
)

// Expected columns; header matching is case-insensitive. Multi-valued cells
// (drugs, reactions) are semicolon-separated.
const (
	colID         = "case_id"
	colDrugs      = "drugs"
	colReactions  = "reactions"
	colAge        = "age"
	colSex        = "sex"
	colCountry    = "country"
	colSerious    = "serious"
	colOnsetDate  = "onset_date"
	colReportDate = "report_date"
	colOutcome    = "outcome"
)

const dateLayout = "2006-01-02"

// CaseReader handles reading case tables from Excel and CSV files
type CaseReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	log      *logrus.Entry
}

// NewCaseReader creates a reader that handles both Excel and CSV files
func NewCaseReader(filePath string) *CaseReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &CaseReader{
		filePath: filePath,
		fileType: fileType,
		log:      logrus.WithField("component", "case_reader"),
	}
}

// Read loads the case table. The dataset version is a content hash of the raw
// rows, so reloading identical data keeps caches warm while any edit
// invalidates them.
func (r *CaseReader) Read() (*signal.CaseTable, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	var (
		rows [][]string
		err  error
	)
	start := time.Now()
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	case "xlsx":
		rows, err = r.readExcelRows()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
	if err != nil {
		return nil, err
	}
	r.log.WithFields(logrus.Fields{
		"file":    r.filePath,
		"rows":    len(rows),
		"elapsed": time.Since(start).String(),
	}).Info("case file read")

	if len(rows) < 2 {
		return nil, fmt.Errorf("case file must have at least a header row and one data row")
	}
	return r.processRows(rows)
}

func (r *CaseReader) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	return rows, nil
}

func (r *CaseReader) readCSVRows() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

// processRows converts raw string rows into a versioned case table
func (r *CaseReader) processRows(rows [][]string) (*signal.CaseTable, error) {
	index := make(map[string]int, len(rows[0]))
	for i, header := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(header))] = i
	}
	for _, required := range []string{colID, colDrugs, colReactions} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("missing required column: %s", required)
		}
	}

	var digest strings.Builder
	cases := make([]signal.CaseRecord, 0, len(rows)-1)
	skipped := 0
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		get := func(col string) string {
			j, ok := index[col]
			if !ok || j >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[j])
		}

		c := signal.CaseRecord{
			ID:        core.CaseID(get(colID)),
			Drugs:     splitTerms(get(colDrugs)),
			Reactions: splitTerms(get(colReactions)),
			Age:       parseAge(get(colAge)),
			Sex:       parseSex(get(colSex)),
			Country:   strings.ToUpper(get(colCountry)),
			Serious:   parseBool(get(colSerious)),
			Outcome:   normalizeTerm(get(colOutcome)),
		}
		c.OnsetDate, _ = time.Parse(dateLayout, get(colOnsetDate))
		c.ReportDate, _ = time.Parse(dateLayout, get(colReportDate))

		if c.ID == "" || len(c.Drugs) == 0 || len(c.Reactions) == 0 {
			skipped++
			continue
		}
		cases = append(cases, c)
		digest.WriteString(strings.Join(row, "\x1f"))
		digest.WriteString("\x1e")
	}
	if skipped > 0 {
		r.log.WithField("skipped", skipped).Warn("rows without id, drugs or reactions were dropped")
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("no usable case rows in %s", r.filePath)
	}

	return &signal.CaseTable{
		Version: core.DatasetVersion(core.NewHash([]byte(digest.String())).String()),
		Cases:   cases,
	}, nil
}

// splitTerms splits a semicolon-separated cell into normalized terms
func splitTerms(cell string) []string {
	if cell == "" {
		return nil
	}
	parts := strings.Split(cell, ";")
	terms := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := normalizeTerm(p); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

// normalizeTerm lowercases and collapses internal whitespace
func normalizeTerm(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func parseAge(s string) float64 {
	if s == "" {
		return -1
	}
	age, err := strconv.ParseFloat(s, 64)
	if err != nil || age < 0 {
		return -1
	}
	return age
}

func parseSex(s string) signal.Sex {
	switch strings.ToUpper(s) {
	case "M", "MALE":
		return signal.SexMale
	case "F", "FEMALE":
		return signal.SexFemale
	default:
		return signal.SexUnknown
	}
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}
