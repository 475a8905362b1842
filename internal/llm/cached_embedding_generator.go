package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// CachedEmbeddingGenerator wraps an EmbeddingGenerator to cache results
// to a file, so repeated catalog builds and query texts skip the API.
type CachedEmbeddingGenerator struct {
	realGen       EmbeddingGenerator
	cache         map[string][]float32
	cacheFilePath string
	log           *zap.Logger
	mu            sync.Mutex
}

// NewCachedEmbeddingGenerator creates a new CachedEmbeddingGenerator.
// It attempts to load the cache from the specified file path.
func NewCachedEmbeddingGenerator(realGen EmbeddingGenerator, cacheFilePath string, log *zap.Logger) (*CachedEmbeddingGenerator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &CachedEmbeddingGenerator{
		realGen:       realGen,
		cache:         make(map[string][]float32),
		cacheFilePath: cacheFilePath,
		log:           log,
	}

	cacheDir := filepath.Dir(cacheFilePath)
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", cacheDir, err)
	}

	data, err := os.ReadFile(cacheFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("embedding cache file not found, starting empty", zap.String("path", cacheFilePath))
			return c, nil
		}
		return nil, fmt.Errorf("failed to read cache file %s: %w", cacheFilePath, err)
	}

	var stored cacheFile
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data from %s: %w", cacheFilePath, err)
	}

	// Vectors from another model are not comparable, so a model change drops the cache.
	if stored.Model == ModelNameOf(realGen) {
		c.cache = stored.Embeddings
	} else {
		log.Info("embedding cache model changed, discarding",
			zap.String("cached_model", stored.Model),
			zap.String("model", ModelNameOf(realGen)))
	}
	if c.cache == nil {
		c.cache = make(map[string][]float32)
	}

	log.Info("loaded embedding cache", zap.Int("entries", len(c.cache)), zap.String("path", cacheFilePath))
	return c, nil
}

type cacheFile struct {
	Model      string               `json:"model"`
	Embeddings map[string][]float32 `json:"embeddings"`
}

// GenerateEmbedding checks the cache first. If the embedding is not found,
// it calls the real generator, stores the result in the cache, and returns it.
func (c *CachedEmbeddingGenerator) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	embedding, ok := c.cache[text]
	c.mu.Unlock()
	if ok {
		return embedding, nil
	}

	embedding, err := c.realGen.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding using real generator: %w", err)
	}

	c.mu.Lock()
	c.cache[text] = embedding
	c.mu.Unlock()
	return embedding, nil
}

// ModelName reports the wrapped generator's model.
func (c *CachedEmbeddingGenerator) ModelName() string {
	return ModelNameOf(c.realGen)
}

// Len returns the number of cached entries.
func (c *CachedEmbeddingGenerator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// SaveCache persists the current in-memory cache to the file system.
func (c *CachedEmbeddingGenerator) SaveCache() error {
	c.mu.Lock()
	data, err := json.Marshal(cacheFile{Model: ModelNameOf(c.realGen), Embeddings: c.cache})
	n := len(c.cache)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	if err := os.WriteFile(c.cacheFilePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file %s: %w", c.cacheFilePath, err)
	}

	c.log.Info("saved embedding cache", zap.Int("entries", n), zap.String("path", c.cacheFilePath))
	return nil
}
