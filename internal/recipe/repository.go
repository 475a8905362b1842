package recipe

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Repository is a database-backed store of ingredient mappings. Rows are
// only ever appended.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

// Append inserts rows in a single transaction, tagging them with source.
func (r *Repository) Append(ctx context.Context, rows []Mapping, source Source) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO recipe_ingredients (recipe, recipe_key, ingredient, alternative_1, alternative_2, alternative_3, source)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range rows {
		var alts [MaxAlternatives]string
		copy(alts[:], m.Alternatives)
		if _, err := stmt.ExecContext(ctx, m.Recipe, recipeKey(m.Recipe), m.Ingredient, alts[0], alts[1], alts[2], string(source)); err != nil {
			return fmt.Errorf("failed to insert ingredient %q for %q: %w", m.Ingredient, m.Recipe, err)
		}
	}
	return tx.Commit()
}

// All returns every stored row in insertion order.
func (r *Repository) All(ctx context.Context) ([]Mapping, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT recipe, ingredient, alternative_1, alternative_2, alternative_3
		FROM recipe_ingredients
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}
	defer rows.Close()

	var out []Mapping
	for rows.Next() {
		var (
			m          Mapping
			a1, a2, a3 string
		)
		if err := rows.Scan(&m.Recipe, &m.Ingredient, &a1, &a2, &a3); err != nil {
			return nil, fmt.Errorf("failed to scan ingredient row: %w", err)
		}
		for _, a := range []string{a1, a2, a3} {
			if a != "" {
				m.Alternatives = append(m.Alternatives, a)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Count returns the number of stored rows.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recipe_ingredients`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count ingredients: %w", err)
	}
	return n, nil
}

// ParseCSV reads rows with columns Recipe, Ingredient and Alternative_1..3.
// Alternative columns are optional.
func ParseCSV(rd io.Reader) ([]Mapping, error) {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read ingredient header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	recipeCol, ok1 := cols["recipe"]
	ingCol, ok2 := cols["ingredient"]
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("ingredient csv needs Recipe and Ingredient columns")
	}

	get := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []Mapping
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read ingredient row: %w", err)
		}
		if recipeCol >= len(rec) || ingCol >= len(rec) {
			continue
		}
		m := Mapping{
			Recipe:     strings.TrimSpace(rec[recipeCol]),
			Ingredient: strings.TrimSpace(rec[ingCol]),
			Alternatives: []string{
				get(rec, "alternative_1"),
				get(rec, "alternative_2"),
				get(rec, "alternative_3"),
			},
		}
		if m.Recipe == "" || m.Ingredient == "" {
			continue
		}
		out = append(out, m.clean())
	}
	return out, nil
}

// ImportCSV appends every row of an ingredient CSV and returns the count.
func (r *Repository) ImportCSV(ctx context.Context, rd io.Reader) (int, error) {
	rows, err := ParseCSV(rd)
	if err != nil {
		return 0, err
	}
	if err := r.Append(ctx, rows, SourceImported); err != nil {
		return 0, err
	}
	return len(rows), nil
}
