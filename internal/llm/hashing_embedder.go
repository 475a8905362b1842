package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashingEmbedder is an offline embedder based on feature hashing of word
// unigrams and bigrams. It lets catalog search run without credentials.
type HashingEmbedder struct {
	dims int
}

// NewHashingEmbedder returns an embedder producing vectors of the given size.
func NewHashingEmbedder(dims int) *HashingEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &HashingEmbedder{dims: dims}
}

// GenerateEmbedding returns an L2-normalized hashed bag of words.
func (h *HashingEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dims)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for i, tok := range tokens {
		h.add(vec, tok, 1)
		if i > 0 {
			h.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec, nil
}

func (h *HashingEmbedder) add(vec []float32, token string, weight float32) {
	f := fnv.New32a()
	f.Write([]byte(token))
	sum := f.Sum32()
	idx := int(sum % uint32(h.dims))
	// The top bit picks the sign so collisions tend to cancel.
	if sum&(1<<31) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

// ModelName identifies the embedding space.
func (h *HashingEmbedder) ModelName() string {
	return fmt.Sprintf("hashing/%d", h.dims)
}
