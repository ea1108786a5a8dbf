// Package upload turns user-supplied CSV or XLSX files into a short text
// excerpt that chat answers can use as extra context.
package upload

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/fodder-analyzer/internal/domain"
)

// DefaultPreviewRows is the number of data rows kept in a preview
const DefaultPreviewRows = 10

// Result describes a parsed upload
type Result struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Rows       int       `json:"rows"`
	Columns    []string  `json:"columns"`
	Preview    string    `json:"preview"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Parse reads a CSV or XLSX upload. The table must have a header row and
// at least one data row; anything else is a *domain.UploadError.
func Parse(filename string, r io.Reader, previewRows int) (*Result, error) {
	if previewRows <= 0 {
		previewRows = DefaultPreviewRows
	}

	var (
		rows [][]string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".csv", ".txt":
		rows, err = readCSV(r)
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(r)
	default:
		return nil, domain.NewUploadError(filename, fmt.Sprintf("unsupported file type %q, upload CSV or XLSX", ext))
	}
	if err != nil {
		return nil, domain.NewUploadError(filename, err.Error())
	}

	rows = dropBlank(rows)
	if len(rows) == 0 {
		return nil, domain.NewUploadError(filename, "file is empty")
	}
	if len(rows) < 2 {
		return nil, domain.NewUploadError(filename, "no data rows below the header")
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	data := rows[1:]

	preview, err := renderPreview(header, data[:min(previewRows, len(data))])
	if err != nil {
		return nil, domain.NewUploadError(filename, err.Error())
	}

	return &Result{
		ID:         uuid.NewString(),
		Filename:   filepath.Base(filename),
		Rows:       len(data),
		Columns:    header,
		Preview:    preview,
		UploadedAt: time.Now(),
	}, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid CSV: %w", err)
	}
	return rows, nil
}

// readXLSX returns the rows of the first sheet
func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid XLSX: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	return rows, nil
}

func dropBlank(rows [][]string) [][]string {
	out := rows[:0]
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

// renderPreview writes the header and rows back out as CSV so the first
// line of every preview is the header
func renderPreview(header []string, rows [][]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return "", err
	}
	if err := w.WriteAll(rows); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
