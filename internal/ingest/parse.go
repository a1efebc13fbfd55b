// Package ingest turns uploaded spreadsheets into participant records and
// swaps them into the record store.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"certificatePortal/internal/common"
	"certificatePortal/models"
)

// Source column headers. They are matched exactly, misspelling included.
const (
	ColumnName        = "NAME"
	ColumnCertificate = "CIRTIFICATES"
	ColumnLink        = "links"
	ColumnCollege     = "college"
)

// ErrUnsupportedFormat is returned for files that are neither workbooks nor CSV.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Supported reports whether filename has an extension Parse understands.
func Supported(filename string) bool {
	switch ext(filename) {
	case ".xlsx", ".xlsm", ".csv":
		return true
	}
	return false
}

// Parse reads a tabular upload. The first row is the header; every following
// non-blank row becomes a record.
func Parse(r io.Reader, filename string) ([]models.Record, error) {
	var (
		rows [][]string
		err  error
	)
	switch ext(filename) {
	case ".xlsx", ".xlsm":
		rows, err = readWorkbook(r)
	case ".csv":
		rows, err = readCSV(r)
	default:
		return nil, common.Wrap(common.ErrIngestion, ErrUnsupportedFormat, "Error processing Excel file")
	}
	if err != nil {
		return nil, common.Wrap(common.ErrIngestion, err, "Error processing Excel file")
	}
	return mapRows(rows), nil
}

func ext(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

func readWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

func mapRows(rows [][]string) []models.Record {
	if len(rows) == 0 {
		return []models.Record{}
	}
	idx := map[string]int{}
	for i, h := range rows[0] {
		switch h {
		case ColumnName, ColumnCertificate, ColumnLink, ColumnCollege:
			if _, dup := idx[h]; !dup {
				idx[h] = i
			}
		}
	}
	cell := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	out := make([]models.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		out = append(out, models.Record{
			Name:        cell(row, ColumnName),
			Certificate: cell(row, ColumnCertificate),
			Link:        cell(row, ColumnLink),
			College:     cell(row, ColumnCollege),
		})
	}
	return out
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
