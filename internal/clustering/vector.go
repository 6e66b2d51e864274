package clustering

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// MinMeaningfulTokens is the fewest tokens an article needs to be compared at all.
const MinMeaningfulTokens = 3

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9\s]`)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true, "not": true, "you": true,
	"all": true, "can": true, "had": true, "her": true, "was": true, "one": true, "our": true,
	"out": true, "has": true, "have": true, "been": true, "from": true, "this": true, "that": true,
	"with": true, "they": true, "will": true, "each": true, "make": true, "like": true, "than": true,
	"them": true, "then": true, "what": true, "when": true, "who": true, "how": true, "said": true,
	"its": true, "also": true, "into": true, "just": true, "about": true, "more": true, "some": true,
	"very": true, "would": true, "could": true, "should": true, "their": true, "which": true,
	"there": true, "other": true, "were": true, "after": true, "being": true, "those": true,
	"does": true, "did": true, "get": true, "got": true, "may": true, "over": true, "only": true,
	"new": true, "his": true, "she": true, "say": true, "says": true, "news": true, "article": true,
	"report": true, "here": true, "now": true, "way": true, "still": true,
}

// Tokenize lowercases text, replaces non-alphanumerics with spaces and drops
// tokens of two characters or fewer as well as stop words.
func Tokenize(text string) []string {
	fields := strings.Fields(nonAlphanumeric.ReplaceAllString(strings.ToLower(text), " "))
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) <= 2 || stopWords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// Vector is a plain term-frequency vector (count / token total, no IDF).
// Terms are kept sorted so similarity sums run in a fixed order.
type Vector struct {
	terms   []string
	weights []float64
	norm    float64
}

// NewVector builds the term-frequency vector of tokens.
func NewVector(tokens []string) Vector {
	if len(tokens) == 0 {
		return Vector{}
	}

	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}

	terms := make([]string, 0, len(counts))
	for t := range counts {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	total := float64(len(tokens))
	weights := make([]float64, len(terms))
	sumSquares := 0.0
	for i, t := range terms {
		w := float64(counts[t]) / total
		weights[i] = w
		sumSquares += w * w
	}

	return Vector{terms: terms, weights: weights, norm: math.Sqrt(sumSquares)}
}

// size returns the number of distinct terms.
func (v Vector) size() int { return len(v.terms) }

// Weight returns the frequency of term, or 0.
func (v Vector) Weight(term string) float64 {
	i := sort.SearchStrings(v.terms, term)
	if i < len(v.terms) && v.terms[i] == term {
		return v.weights[i]
	}
	return 0
}

// Cosine returns the cosine similarity of a and b, or 0 if either is empty.
func Cosine(a, b Vector) float64 {
	if a.norm == 0 || b.norm == 0 {
		return 0
	}

	dot := 0.0
	i, j := 0, 0
	for i < len(a.terms) && j < len(b.terms) {
		switch {
		case a.terms[i] == b.terms[j]:
			dot += a.weights[i] * b.weights[j]
			i++
			j++
		case a.terms[i] < b.terms[j]:
			i++
		default:
			j++
		}
	}

	return dot / (a.norm * b.norm)
}
