package mind

import (
	"math"
	"strings"
	"unicode"
)

// CosineSimilarity returns the cosine similarity of two embedding vectors.
// Returns 0 for mismatched lengths or zero-magnitude vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Tokenize lowercases text and splits it into distinct word tokens, dropping
// short stop-like tokens of fewer than 3 runes.
func Tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, field := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(field)) < 3 {
			continue
		}
		tokens[field] = struct{}{}
	}
	return tokens
}

// JaccardSimilarity returns the Jaccard similarity of two token sets.
func JaccardSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// TextSimilarity is the bag-of-terms similarity over two texts, used as the
// fallback when embedding vectors are unavailable.
func TextSimilarity(a, b string) float64 {
	return JaccardSimilarity(Tokenize(a), Tokenize(b))
}
