// Package embeddingtest provides a deterministic embedder for tests.
package embeddingtest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode"
)

// ErrInjected is returned by a Fake whose Err is set to it.
var ErrInjected = errors.New("injected embedding failure")

// Fake embeds text as a bag of words. Each distinct word gets its own
// dimension (wrapping once Dim words are seen), so texts sharing words have
// positive cosine similarity and texts sharing none score zero.
type Fake struct {
	Dim int
	Err error

	mu    sync.Mutex
	calls int
	vocab map[string]int
}

// New returns a Fake with the given dimension.
func New(dim int) *Fake {
	return &Fake{Dim: dim, vocab: make(map[string]int)}
}

func (f *Fake) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return nil, f.Err
	}
	return f.vector(text), nil
}

func (f *Fake) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

func (f *Fake) Dimension() int    { return f.Dim }
func (f *Fake) ModelName() string { return "fake-bag-of-words" }

// Calls reports how many texts were embedded.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// vector must be called with f.mu held.
func (f *Fake) vector(text string) []float32 {
	if f.vocab == nil {
		f.vocab = make(map[string]int)
	}
	vec := make([]float32, f.Dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, word := range words {
		idx, ok := f.vocab[word]
		if !ok {
			idx = len(f.vocab) % f.Dim
			f.vocab[word] = idx
		}
		vec[idx]++
	}
	// Empty text still needs a non-zero vector.
	if len(words) == 0 {
		vec[0] = 1
	}
	return vec
}
