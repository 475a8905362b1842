package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a path holds no record.
	ErrNotFound = errors.New("record not found")
	// ErrIndexMissing is returned by ordered queries on undeclared fields.
	ErrIndexMissing = errors.New("no index declared for order field")
	// ErrInvalidPath is returned for empty or malformed paths.
	ErrInvalidPath = errors.New("invalid path")
)

var fieldPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Node is one record of a collection.
type Node struct {
	ID   string
	Data json.RawMessage
}

// Query shapes a collection read. The zero value returns every record in
// insertion order.
type Query struct {
	// OrderBy names a top-level field. It needs a declared index.
	OrderBy string
	// LimitToLast keeps the last N records of the ordering. Zero means all.
	LimitToLast int
}

// Store is keyed JSON storage addressed by slash-separated paths. The last
// path segment is the record id; the rest is the collection.
type Store interface {
	Push(ctx context.Context, collection string, record any) (string, error)
	Get(ctx context.Context, collection string, q Query) ([]Node, error)
	GetNode(ctx context.Context, path string) (json.RawMessage, error)
	Set(ctx context.Context, path string, record any) error
	Update(ctx context.Context, path string, fields map[string]any) error
	Remove(ctx context.Context, path string) error
}

// SQLiteStore keeps records in the documents table.
type SQLiteStore struct {
	db      *sql.DB
	indexes map[string]bool
	now     func() time.Time
}

// NewSQLiteStore returns a store. indexes lists the ordered-query fields
// as "collection.field".
func NewSQLiteStore(db *sql.DB, indexes []string) *SQLiteStore {
	idx := make(map[string]bool, len(indexes))
	for _, i := range indexes {
		idx[strings.TrimSpace(i)] = true
	}
	return &SQLiteStore{db: db, indexes: idx, now: time.Now}
}

func cleanCollection(c string) (string, error) {
	c = strings.Trim(strings.TrimSpace(c), "/")
	if c == "" {
		return "", ErrInvalidPath
	}
	for _, seg := range strings.Split(c, "/") {
		if strings.TrimSpace(seg) == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, c)
		}
	}
	return c, nil
}

func splitPath(path string) (string, string, error) {
	p, err := cleanCollection(path)
	if err != nil {
		return "", "", err
	}
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "", "", fmt.Errorf("%w: %q has no id", ErrInvalidPath, path)
	}
	return p[:i], p[i+1:], nil
}

// Push stores record under a new time-ordered id.
func (s *SQLiteStore) Push(ctx context.Context, collection string, record any) (string, error) {
	c, err := cleanCollection(collection)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, created_ms) VALUES (?, ?, ?, ?)`,
		c, id.String(), string(data), s.now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("failed to push to %s: %w", c, err)
	}
	return id.String(), nil
}

// Get reads a collection. Ordered results are ascending by the field, so
// the newest record is last.
func (s *SQLiteStore) Get(ctx context.Context, collection string, q Query) ([]Node, error) {
	c, err := cleanCollection(collection)
	if err != nil {
		return nil, err
	}
	limit := -1
	if q.LimitToLast > 0 {
		limit = q.LimitToLast
	}

	var rows *sql.Rows
	if q.OrderBy != "" {
		if !fieldPattern.MatchString(q.OrderBy) || !s.indexes[c+"."+q.OrderBy] {
			return nil, fmt.Errorf("%s.%s: %w", c, q.OrderBy, ErrIndexMissing)
		}
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, data FROM documents
			WHERE collection = ?
			ORDER BY json_extract(data, ?) DESC, created_ms DESC, id DESC
			LIMIT ?`, c, "$."+q.OrderBy, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, data FROM documents
			WHERE collection = ?
			ORDER BY created_ms DESC, id DESC
			LIMIT ?`, c, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c, err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var (
			n    Node
			data string
		)
		if err := rows.Scan(&n.ID, &data); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		n.Data = json.RawMessage(data)
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
	return nodes, nil
}

// GetNode reads one record.
func (s *SQLiteStore) GetNode(ctx context.Context, path string) (json.RawMessage, error) {
	c, id, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	var data string
	err = s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, c, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return json.RawMessage(data), nil
}

// Set writes record at path, replacing any existing record.
func (s *SQLiteStore) Set(ctx context.Context, path string, record any) error {
	c, id, err := splitPath(path)
	if err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, created_ms) VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data`,
		c, id, string(data), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	return nil
}

// Update merges fields into the top level of an existing record.
func (s *SQLiteStore) Update(ctx context.Context, path string, fields map[string]any) error {
	c, id, err := splitPath(path)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, c, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	current := map[string]any{}
	if err := json.Unmarshal([]byte(data), &current); err != nil {
		return fmt.Errorf("record at %s is not an object: %w", path, err)
	}
	for k, v := range fields {
		current[k] = v
	}
	merged, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET data = ? WHERE collection = ? AND id = ?`, string(merged), c, id); err != nil {
		return fmt.Errorf("failed to update %s: %w", path, err)
	}
	return tx.Commit()
}

// Remove deletes the record at path.
func (s *SQLiteStore) Remove(ctx context.Context, path string) error {
	c, id, err := splitPath(path)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, c, id)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return nil
}
