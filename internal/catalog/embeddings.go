package catalog

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	"ai-nutritionist/internal/llm"

	"go.uber.org/zap"
)

// StoredEmbedding is a persisted row vector together with the text hash
// and model it was computed from.
type StoredEmbedding struct {
	Row       int
	TextHash  string
	Model     string
	Embedding []float32
}

// EmbeddingRepository persists catalog row embeddings in SQLite.
type EmbeddingRepository struct {
	db *sql.DB
}

func NewEmbeddingRepository(db *sql.DB) *EmbeddingRepository {
	return &EmbeddingRepository{db: db}
}

// Save upserts the embedding for a row.
func (r *EmbeddingRepository) Save(ctx context.Context, e StoredEmbedding) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO catalog_embeddings (row_index, text_hash, model, embedding, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(row_index) DO UPDATE SET
			text_hash = excluded.text_hash,
			model = excluded.model,
			embedding = excluded.embedding,
			updated_at = CURRENT_TIMESTAMP`,
		e.Row, e.TextHash, e.Model, llm.EncodeVector(e.Embedding))
	if err != nil {
		return fmt.Errorf("failed to save embedding for row %d: %w", e.Row, err)
	}
	return nil
}

// All returns every stored embedding keyed by row.
func (r *EmbeddingRepository) All(ctx context.Context) (map[int]StoredEmbedding, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT row_index, text_hash, model, embedding FROM catalog_embeddings`)
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings: %w", err)
	}
	defer rows.Close()

	out := make(map[int]StoredEmbedding)
	for rows.Next() {
		var (
			e   StoredEmbedding
			raw []byte
		)
		if err := rows.Scan(&e.Row, &e.TextHash, &e.Model, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		if e.Embedding, err = llm.DecodeVector(raw); err != nil {
			return nil, fmt.Errorf("failed to decode embedding for row %d: %w", e.Row, err)
		}
		out[e.Row] = e
	}
	return out, rows.Err()
}

// Truncate removes rows at or beyond n, left over from a longer catalog.
func (r *EmbeddingRepository) Truncate(ctx context.Context, n int) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM catalog_embeddings WHERE row_index >= ?`, n); err != nil {
		return fmt.Errorf("failed to truncate embeddings: %w", err)
	}
	return nil
}

func textHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Builder computes and caches catalog embeddings.
type Builder struct {
	repo     *EmbeddingRepository
	embedder llm.EmbeddingGenerator
	log      *zap.Logger
}

func NewBuilder(repo *EmbeddingRepository, embedder llm.EmbeddingGenerator, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{repo: repo, embedder: embedder, log: log}
}

// BuildStats reports how many rows were reused versus embedded.
type BuildStats struct {
	Reused   int
	Embedded int
}

// Build returns embeddings aligned with entries. Stored vectors are reused
// when both the row text and the embedding model are unchanged.
func (b *Builder) Build(ctx context.Context, entries []Entry) ([][]float32, BuildStats, error) {
	var stats BuildStats
	stored, err := b.repo.All(ctx)
	if err != nil {
		return nil, stats, err
	}

	model := llm.ModelNameOf(b.embedder)
	out := make([][]float32, len(entries))
	for i, e := range entries {
		text := e.EmbeddingText()
		hash := textHash(text)
		if s, ok := stored[i]; ok && s.TextHash == hash && s.Model == model && len(s.Embedding) > 0 {
			out[i] = s.Embedding
			stats.Reused++
			continue
		}

		vec, err := b.embedder.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, stats, fmt.Errorf("failed to embed catalog row %d: %w", i, err)
		}
		if err := b.repo.Save(ctx, StoredEmbedding{Row: i, TextHash: hash, Model: model, Embedding: vec}); err != nil {
			return nil, stats, err
		}
		out[i] = vec
		stats.Embedded++
	}

	if err := b.repo.Truncate(ctx, len(entries)); err != nil {
		return nil, stats, err
	}

	b.log.Info("catalog embeddings ready",
		zap.Int("rows", len(entries)),
		zap.Int("reused", stats.Reused),
		zap.Int("embedded", stats.Embedded),
		zap.String("model", model))
	return out, stats, nil
}
