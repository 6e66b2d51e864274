package scoring

import (
	"regexp"
	"sort"
	"strings"
)

// MaxKeywords bounds the keyword list stored on each article.
const MaxKeywords = 10

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9\s]`)

var keywordStopWords = toSet(
	"the", "and", "for", "are", "but", "not", "you", "all", "can", "had",
	"was", "one", "our", "has", "have", "been", "from", "this", "that",
	"with", "they", "will", "each", "make", "like", "than", "them", "then",
	"what", "when", "who", "how", "said", "its", "also", "into", "just",
	"about", "more", "some", "very", "would", "could", "should", "their",
	"which", "there", "other", "were", "after", "being", "those", "does",
	"here", "says", "news", "over", "only", "still",
)

// Keywords returns up to MaxKeywords terms longer than three characters,
// most frequent first. Equal counts keep first-seen order.
func Keywords(text string) []string {
	words := strings.Fields(nonAlphanumeric.ReplaceAllString(strings.ToLower(text), " "))

	counts := make(map[string]int)
	var order []string
	for _, w := range words {
		if len(w) <= 3 || keywordStopWords[w] {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > MaxKeywords {
		order = order[:MaxKeywords]
	}
	return order
}

func toSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
