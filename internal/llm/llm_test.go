package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ai-nutritionist/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// countingEmbedder returns a fixed vector and counts calls.
type countingEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1, 0.5}, nil
}

func (c *countingEmbedder) ModelName() string { return "counting" }

func TestVectorRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3.0, 0}
	out, err := DecodeVector(EncodeVector(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = DecodeVector([]byte{1, 2, 3})
	assert.Error(t, err)

	empty, err := DecodeVector(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}

func TestHashingEmbedder(t *testing.T) {
	h := NewHashingEmbedder(128)
	ctx := context.Background()

	a, err := h.GenerateEmbedding(ctx, "Vegan lentil soup with brown rice")
	require.NoError(t, err)
	b, err := h.GenerateEmbedding(ctx, "vegan lentil soup with brown rice")
	require.NoError(t, err)
	c, err := h.GenerateEmbedding(ctx, "grilled chicken with butter")
	require.NoError(t, err)

	assert.Len(t, a, 128)
	assert.InDelta(t, 1.0, CosineSimilarity(a, b), 1e-6)
	assert.Greater(t, CosineSimilarity(a, b), CosineSimilarity(a, c))
	assert.Equal(t, "hashing/128", h.ModelName())
}

func TestCachedEmbeddingGenerator(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache", "embeddings.json")
	real := &countingEmbedder{}

	cached, err := NewCachedEmbeddingGenerator(real, path, zaptest.NewLogger(t))
	require.NoError(t, err)

	first, err := cached.GenerateEmbedding(ctx, "oats")
	require.NoError(t, err)
	second, err := cached.GenerateEmbedding(ctx, "oats")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, real.calls)
	require.NoError(t, cached.SaveCache())

	t.Run("ReloadsFromFile", func(t *testing.T) {
		again := &countingEmbedder{}
		reloaded, err := NewCachedEmbeddingGenerator(again, path, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.Equal(t, 1, reloaded.Len())

		_, err = reloaded.GenerateEmbedding(ctx, "oats")
		require.NoError(t, err)
		assert.Equal(t, 0, again.calls)
	})

	t.Run("DiscardsOtherModel", func(t *testing.T) {
		reloaded, err := NewCachedEmbeddingGenerator(NewHashingEmbedder(8), path, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.Equal(t, 0, reloaded.Len())
	})

	t.Run("PropagatesErrors", func(t *testing.T) {
		failing := &countingEmbedder{err: errors.New("quota")}
		c, err := NewCachedEmbeddingGenerator(failing, filepath.Join(t.TempDir(), "e.json"), nil)
		require.NoError(t, err)
		_, err = c.GenerateEmbedding(ctx, "x")
		assert.Error(t, err)
	})
}

// fakeKV is an in-memory stand-in for a Redis client.
type fakeKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	failGet bool
}

func (f *fakeKV) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return redis.NewStringResult("", errors.New("connection refused"))
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeKV) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value.([]byte)
	return redis.NewStatusResult("OK", nil)
}

func TestRedisEmbeddingCache(t *testing.T) {
	ctx := context.Background()
	kv := &fakeKV{data: map[string][]byte{}}
	real := &countingEmbedder{}
	cache := NewRedisEmbeddingCache(real, kv, time.Hour, zaptest.NewLogger(t))

	first, err := cache.GenerateEmbedding(ctx, "query")
	require.NoError(t, err)
	second, err := cache.GenerateEmbedding(ctx, "query")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, real.calls)
	assert.Len(t, kv.data, 1)
	assert.Equal(t, "counting", cache.ModelName())

	kv.failGet = true
	_, err = cache.GenerateEmbedding(ctx, "query")
	require.NoError(t, err, "cache read failures must not fail the call")
	assert.Equal(t, 2, real.calls)
}

func TestGroqClientGenerateJSON(t *testing.T) {
	var got struct {
		Model          string            `json:"model"`
		Messages       []groqMessage     `json:"messages"`
		ResponseFormat map[string]string `json:"response_format"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer groq_key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}],"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`))
	}))
	defer srv.Close()

	client := NewGroqClient(config.LLMConfig{GroqAPIKey: "groq_key", GroqModel: "llama-test", Timeout: time.Second})
	client.endpoint = srv.URL

	resp, err := client.GenerateJSON(context.Background(), JSONRequest{
		System: "You are a dietitian.",
		Prompt: "Check this plan.",
		Schema: &Schema{Type: TypeObject, Properties: map[string]*Schema{"ok": {Type: TypeBoolean}}},
	})
	require.NoError(t, err)

	assert.Equal(t, `{"ok":true}`, resp.Content)
	assert.Equal(t, 12, resp.Usage.PromptTokens)
	assert.Equal(t, 3, resp.Usage.CompletionTokens)
	assert.Equal(t, "llama-test", resp.Usage.Model)
	assert.Equal(t, "json_object", got.ResponseFormat["type"])
	require.Len(t, got.Messages, 2)
	assert.Contains(t, got.Messages[0].Content, `"ok"`)
}

func TestGroqClientErrors(t *testing.T) {
	t.Run("NoKey", func(t *testing.T) {
		client := NewGroqClient(config.LLMConfig{})
		_, err := client.GenerateContent(context.Background(), "hi")
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("HTTPError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		client := NewGroqClient(config.LLMConfig{GroqAPIKey: "k"})
		client.endpoint = srv.URL
		_, err := client.GenerateContent(context.Background(), "hi")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status=429")
	})
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), config.LLMConfig{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSchemaString(t *testing.T) {
	s := &Schema{Type: TypeArray, Items: &Schema{Type: TypeString, Enum: []string{"info", "moderate"}}, MaxItems: 3}
	out := s.String()
	assert.Contains(t, out, `"maxItems": 3`)
	assert.Contains(t, out, `"moderate"`)

	g := s.toGenai()
	require.NotNil(t, g.Items)
	assert.Equal(t, []string{"info", "moderate"}, g.Items.Enum)
}
