package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisKV is the subset of redis.Cmdable the cache uses.
type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisEmbeddingCache shares query embeddings between processes. Cache
// failures are logged and bypassed; they never fail the embedding call.
type RedisEmbeddingCache struct {
	next   EmbeddingGenerator
	client redisKV
	ttl    time.Duration
	prefix string
	log    *zap.Logger
}

// NewRedisEmbeddingCache wraps next with a Redis-backed cache.
func NewRedisEmbeddingCache(next EmbeddingGenerator, client redisKV, ttl time.Duration, log *zap.Logger) *RedisEmbeddingCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisEmbeddingCache{
		next:   next,
		client: client,
		ttl:    ttl,
		prefix: "embedding:" + ModelNameOf(next) + ":",
		log:    log,
	}
}

func (r *RedisEmbeddingCache) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return r.prefix + hex.EncodeToString(sum[:])
}

// GenerateEmbedding reads through the cache.
func (r *RedisEmbeddingCache) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := r.key(text)

	raw, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if vec, decodeErr := DecodeVector(raw); decodeErr == nil && len(vec) > 0 {
			return vec, nil
		}
		r.log.Warn("discarding corrupt cached embedding", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		r.log.Warn("embedding cache read failed", zap.Error(err))
	}

	vec, err := r.next.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	if err := r.client.Set(ctx, key, EncodeVector(vec), r.ttl).Err(); err != nil {
		r.log.Warn("embedding cache write failed", zap.Error(err))
	}
	return vec, nil
}

// ModelName reports the wrapped generator's model.
func (r *RedisEmbeddingCache) ModelName() string {
	return ModelNameOf(r.next)
}
