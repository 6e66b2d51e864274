package feeds

import (
	"context"
	"strings"
)

const maxSampleHeadlines = 10

// ValidationResult describes whether a URL serves a usable feed
type ValidationResult struct {
	Valid           bool     `json:"valid"`
	ItemCount       int      `json:"itemCount"`
	Title           string   `json:"title,omitempty"`
	Error           string   `json:"error,omitempty"`
	SampleHeadlines []string `json:"sampleHeadlines,omitempty"`
}

// Validate fetches url and reports its title, item count and a few headlines.
func (f *Fetcher) Validate(ctx context.Context, url string) ValidationResult {
	feed, err := f.download(ctx, url)
	if err != nil {
		return ValidationResult{Error: err.Error()}
	}

	result := ValidationResult{
		Valid:     true,
		ItemCount: len(feed.Items),
		Title:     strings.TrimSpace(feed.Title),
	}
	for i, item := range feed.Items {
		if i == maxSampleHeadlines {
			break
		}
		if item != nil && strings.TrimSpace(item.Title) != "" {
			result.SampleHeadlines = append(result.SampleHeadlines, strings.TrimSpace(item.Title))
		}
	}
	return result
}
