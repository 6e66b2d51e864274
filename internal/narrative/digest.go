package narrative

import (
	"fmt"
	"strings"

	"axial/internal/core"
)

const untitledStory = "Developing story"

// TemplateDigest renders the deterministic digest used when text generation
// is unavailable or fails.
func TemplateDigest(stories []core.DigestStory) string {
	entries := make([]string, 0, len(stories))
	for i, st := range stories {
		topic := st.Topic
		if topic == "" {
			topic = untitledStory
		}
		entry := fmt.Sprintf("%d. %s (%d sources)", i+1, topic, st.ArticleCount)
		if st.Summary != "" {
			entry += ": " + st.Summary
		}
		entries = append(entries, entry)
	}

	return "Today's top stories:\n\n" +
		strings.Join(entries, "\n\n") +
		fmt.Sprintf("\n\n%d stories tracked today.", len(stories))
}

// KeyTopics returns the non-empty topics in story order
func KeyTopics(stories []core.DigestStory) []string {
	topics := make([]string, 0, len(stories))
	for _, st := range stories {
		if st.Topic != "" {
			topics = append(topics, st.Topic)
		}
	}
	return topics
}
