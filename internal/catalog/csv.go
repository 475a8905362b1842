package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var catalogColumns = []string{
	"Breakfast Suggestion",
	"Lunch Suggestion",
	"Dinner Suggestion",
	"Snack Suggestion",
	"Dietary Preference",
	"Budget Preferences",
}

// LoadCSV reads catalog rows. Extra columns are ignored; rows missing any
// meal are skipped.
func LoadCSV(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	pos := make([]int, len(catalogColumns))
	for i, name := range catalogColumns {
		p, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("catalog is missing column %q", name)
		}
		pos[i] = p
	}

	var entries []Entry
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog row: %w", err)
		}
		field := func(i int) string {
			if pos[i] >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[pos[i]])
		}
		e := Entry{
			Breakfast:         field(0),
			Lunch:             field(1),
			Dinner:            field(2),
			Snack:             field(3),
			DietaryPreference: field(4),
			BudgetPreference:  field(5),
		}
		if e.Breakfast == "" || e.Lunch == "" || e.Dinner == "" || e.Snack == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// LoadCSVFile opens path and calls LoadCSV.
func LoadCSVFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", path, err)
	}
	defer f.Close()
	return LoadCSV(f)
}
