package embed

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// StaticDimensions is the dimension of the static embedder.
const StaticDimensions = 64

// StaticEmbedder is a deterministic, dependency-free embedder. Tokens are
// hashed into buckets and the result normalized, so similar texts land near
// each other. Used in tests and as a doctor-mode fallback probe.
type StaticEmbedder struct {
	dims   int
	closed bool
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder builds a static embedder with dims dimensions (or
// StaticDimensions when dims <= 0).
func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = StaticDimensions
	}
	return &StaticEmbedder{dims: dims}
}

// Embed hashes tokens into dimension buckets.
func (s *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, s.dims)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, token := range tokens {
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[int(h.Sum32())%s.dims]++
	}
	return normalizeVector(vec), nil
}

// EmbedBatch embeds each text in order.
func (s *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

// Dimensions returns the embedding dimension.
func (s *StaticEmbedder) Dimensions() int { return s.dims }

// ModelName returns the static model identifier.
func (s *StaticEmbedder) ModelName() string { return "static" }

// Available always reports true.
func (s *StaticEmbedder) Available(context.Context) bool { return !s.closed }

// Close marks the embedder closed.
func (s *StaticEmbedder) Close() error {
	s.closed = true
	return nil
}
