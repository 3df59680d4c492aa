// Package providers implements the Embedding Engine's provider
// variants: trigram (local, deterministic), neural-http (local
// embedding server), and cloud (token-based API).
package providers

import (
	"context"
	"math"
	"sort"
	"strings"
)

// stopWords is the fixed small set filtered before trigram hashing.
var stopWords = map[string]bool{
	"the": true, "is": true, "at": true, "which": true, "on": true,
	"a": true, "an": true, "as": true, "are": true, "was": true,
	"were": true, "for": true, "to": true, "of": true, "in": true,
	"and": true, "or": true, "but": true, "with": true, "by": true,
	"from": true, "this": true, "that": true, "be": true, "have": true,
	"has": true, "had": true, "it": true, "its": true, "their": true,
	"they": true, "them": true,
}

// Trigram is a local, deterministic embedding provider: it encodes
// character trigrams and whole-word hashes of the (stop-word-filtered)
// input into a fixed-dimension vector, then L2-normalizes. It produces
// byte-identical output for byte-identical input and requires no
// network access, making it suitable for offline development and
// tests. Not semantically accurate; purely content-dependent.
type Trigram struct {
	dimensions int
}

func NewTrigram(dimensions int) *Trigram {
	return &Trigram{dimensions: dimensions}
}

func (t *Trigram) ProviderName() string { return "trigram" }
func (t *Trigram) ModelName() string    { return "trigram-v1" }
func (t *Trigram) Dimensions() int      { return t.dimensions }

func (t *Trigram) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = t.embedOne(text)
	}
	return out, nil
}

func (t *Trigram) embedOne(text string) []float32 {
	embedding := make([]float32, t.dimensions)
	lower := strings.ToLower(text)

	words := make([]string, 0)
	for _, w := range strings.Fields(lower) {
		if len(w) > 2 && !stopWords[w] {
			words = append(words, w)
		}
	}

	freq := make(map[string]int, len(words))
	for _, w := range words {
		freq[w]++
	}

	// Accumulate in sorted word order: float32 addition is not
	// associative, so when two words land in the same dimension the
	// summation order must be fixed or repeated calls on identical
	// text would drift in the low bits.
	ordered := make([]string, 0, len(freq))
	for w := range freq {
		ordered = append(ordered, w)
	}
	sort.Strings(ordered)

	for _, word := range ordered {
		f := freq[word]
		chars := []rune(word)
		for i := 0; i+2 < len(chars); i++ {
			trigram := string(chars[i : i+3])
			hash := hashFNVLike(trigram, 37)
			dim := int(hash % uint64(t.dimensions))
			embedding[dim] += float32(math.Sqrt(float64(f)))
		}

		wordHash := hashFNVLike(word, 31)
		baseDim := int(wordHash % uint64(t.dimensions))
		embedding[baseDim] += float32(f)
	}

	normalize(embedding)
	return embedding
}

// hashFNVLike is a multiplier-then-add byte fold: acc = acc*mult +
// byte, wrapping on uint64 overflow. Trigrams hash with multiplier 37,
// whole words with 31.
func hashFNVLike(s string, mult uint64) uint64 {
	var acc uint64
	for i := 0; i < len(s); i++ {
		acc = acc*mult + uint64(s[i])
	}
	return acc
}

func normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm <= 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
