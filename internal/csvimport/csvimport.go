// Package csvimport turns an uploaded alumni CSV into job rows.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kiranshivaraju/alumnitrack/pkg/models"
)

var (
	ErrEmptyFile        = errors.New("CSV file is empty")
	ErrMissingURLColumn = errors.New("CSV must contain a linkedin_url column")
)

const utf8BOM = "\ufeff"

// Parse reads a header row followed by data rows. The URL column is the first
// header containing "linkedin" or "url" and the name column is the first
// containing "name", both case-insensitive. Rows with an empty URL are dropped.
func Parse(r io.Reader) ([]models.JobRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := nextNonBlank(cr)
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	urlIdx, nameIdx := -1, -1
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, utf8BOM)))
		if urlIdx == -1 && (strings.Contains(h, "linkedin") || strings.Contains(h, "url")) {
			urlIdx = i
		}
		if nameIdx == -1 && strings.Contains(h, "name") {
			nameIdx = i
		}
	}
	if urlIdx == -1 {
		return nil, ErrMissingURLColumn
	}

	rows := []models.JobRow{}
	for {
		rec, err := nextNonBlank(cr)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}

		if urlIdx >= len(rec) {
			continue
		}
		u := strings.TrimSpace(rec[urlIdx])
		if u == "" {
			continue
		}
		row := models.JobRow{LinkedInURL: u}
		if nameIdx != -1 && nameIdx < len(rec) {
			row.Name = strings.TrimSpace(rec[nameIdx])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func nextNonBlank(cr *csv.Reader) ([]string, error) {
	for {
		rec, err := cr.Read()
		if err != nil {
			return nil, err
		}
		for _, f := range rec {
			if strings.TrimSpace(f) != "" {
				return rec, nil
			}
		}
	}
}
