package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"ai-nutritionist/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name string `json:"name"`
	TsMs int64  `json:"ts_ms"`
	Note string `json:"note,omitempty"`
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewSQLiteStore(db.SQL, []string{"plans.ts_ms"})
	clock := time.UnixMilli(1_700_000_000_000)
	s.now = func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	}
	return s
}

func decode(t *testing.T, raw json.RawMessage) doc {
	t.Helper()
	var d doc
	require.NoError(t, json.Unmarshal(raw, &d))
	return d
}

func TestPushAndGetNode(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.Push(ctx, "plans", doc{Name: "a", TsMs: 1})
	require.NoError(t, err)
	assert.Len(t, id, 36)

	raw, err := s.GetNode(ctx, "plans/"+id)
	require.NoError(t, err)
	assert.Equal(t, doc{Name: "a", TsMs: 1}, decode(t, raw))

	_, err = s.GetNode(ctx, "plans/missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetNode(ctx, "plans")
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = s.Push(ctx, " / ", doc{})
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestGetOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, d := range []doc{{"b", 20, ""}, {"c", 30, ""}, {"a", 10, ""}, {"d", 40, ""}} {
		_, err := s.Push(ctx, "plans", d)
		require.NoError(t, err)
	}
	_, err := s.Push(ctx, "other", doc{Name: "x", TsMs: 99})
	require.NoError(t, err)

	names := func(nodes []Node) []string {
		var out []string
		for _, n := range nodes {
			out = append(out, decode(t, n.Data).Name)
		}
		return out
	}

	all, err := s.Get(ctx, "plans", Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a", "d"}, names(all))

	ordered, err := s.Get(ctx, "plans", Query{OrderBy: "ts_ms", LimitToLast: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, names(ordered))

	ordered, err = s.Get(ctx, "plans", Query{OrderBy: "ts_ms"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, names(ordered))

	recent, err := s.Get(ctx, "plans", Query{LimitToLast: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, names(recent))

	_, err = s.Get(ctx, "other", Query{OrderBy: "ts_ms"})
	assert.ErrorIs(t, err, ErrIndexMissing)
	_, err = s.Get(ctx, "plans", Query{OrderBy: "ts_ms') --"})
	assert.ErrorIs(t, err, ErrIndexMissing)

	empty, err := s.Get(ctx, "nothing", Query{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSetUpdateRemove(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	path := "ratings/2024-01-01/Lunch"

	require.NoError(t, s.Set(ctx, path, doc{Name: "first", TsMs: 1}))
	require.NoError(t, s.Set(ctx, path, doc{Name: "second", TsMs: 2}))

	nodes, err := s.Get(ctx, "ratings/2024-01-01", Query{})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "Lunch", nodes[0].ID)
	assert.Equal(t, "second", decode(t, nodes[0].Data).Name)

	require.NoError(t, s.Update(ctx, path, map[string]any{"note": "tasty"}))
	raw, err := s.GetNode(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, doc{Name: "second", TsMs: 2, Note: "tasty"}, decode(t, raw))

	assert.ErrorIs(t, s.Update(ctx, "ratings/2024-01-01/Dinner", map[string]any{"x": 1}), ErrNotFound)

	require.NoError(t, s.Remove(ctx, path))
	_, err = s.GetNode(ctx, path)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Remove(ctx, path), ErrNotFound)
}
