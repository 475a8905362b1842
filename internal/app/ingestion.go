package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"ai-nutritionist/internal/catalog"
	"ai-nutritionist/internal/logger"

	"go.uber.org/zap"
)

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	CatalogRows        int
	EmbeddingsReused   int
	EmbeddingsNew      int
	IngredientRows     int
	IngredientsSkipped bool
}

// Ingest embeds the meal-plan catalog and imports the ingredient CSV.
// Ingredients are imported only into an empty table unless force is set,
// since every import appends.
func (a *App) Ingest(ctx context.Context, force bool) (IngestReport, error) {
	var report IngestReport
	if err := a.initLLM(ctx); err != nil {
		return report, err
	}

	entries, _, stats, err := a.buildCatalog(ctx)
	if err != nil {
		return report, err
	}
	report.CatalogRows = len(entries)
	report.EmbeddingsReused = stats.Reused
	report.EmbeddingsNew = stats.Embedded

	n, err := a.seedIngredients(ctx, force)
	if err != nil {
		return report, err
	}
	report.IngredientRows = n
	report.IngredientsSkipped = n == 0
	return report, nil
}

// buildCatalog loads the catalog CSV and returns row-aligned embeddings,
// reusing stored vectors for unchanged rows.
func (a *App) buildCatalog(ctx context.Context) ([]catalog.Entry, [][]float32, catalog.BuildStats, error) {
	entries, err := catalog.LoadCSVFile(a.cfg.Data.CatalogCSV)
	if err != nil {
		return nil, nil, catalog.BuildStats{}, fmt.Errorf("failed to load catalog: %w", err)
	}

	builder := catalog.NewBuilder(a.Embeddings, a.embedder, logger.Component(a.log, "catalog"))
	vectors, stats, err := builder.Build(ctx, entries)
	if err != nil {
		return nil, nil, stats, fmt.Errorf("failed to embed catalog: %w", err)
	}

	if a.fileCache != nil && stats.Embedded > 0 {
		if err := a.fileCache.SaveCache(); err != nil {
			a.log.Warn("failed to save embedding cache", zap.Error(err))
		}
	}
	return entries, vectors, stats, nil
}

// seedIngredients imports the ingredient CSV and returns the rows added. A
// populated table is left alone unless force is set. A missing CSV is only
// an error when forced.
func (a *App) seedIngredients(ctx context.Context, force bool) (int, error) {
	if !force {
		count, err := a.Ingredients.Count(ctx)
		if err != nil {
			return 0, err
		}
		if count > 0 {
			return 0, nil
		}
	}

	path := a.cfg.Data.IngredientsCSV
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) && !force {
		a.log.Warn("ingredient CSV not found, starting with an empty table", zap.String("path", path))
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open ingredient CSV: %w", err)
	}
	defer f.Close()

	n, err := a.Ingredients.ImportCSV(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("failed to import %s: %w", path, err)
	}
	a.log.Info("imported ingredient rows", zap.Int("rows", n), zap.String("path", path))
	return n, nil
}
