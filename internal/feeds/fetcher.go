// Package feeds fetches RSS/Atom feeds and normalizes their items
package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"axial/internal/core"
	"axial/internal/logger"

	"github.com/mmcdole/gofeed"
)

const (
	// DefaultUserAgent identifies the fetcher to publishers
	DefaultUserAgent = "Axial.news/1.0 RSS Reader"

	// DefaultTimeout bounds a single feed request
	DefaultTimeout = 15 * time.Second

	// DefaultMaxDescriptionLength caps sanitized descriptions, in runes
	DefaultMaxDescriptionLength = 1000

	// httpPrefix marks a GUID usable as a link
	httpPrefix = "http"
)

// Config configures a Fetcher
type Config struct {
	UserAgent            string
	Timeout              time.Duration
	MaxDescriptionLength int
}

// DefaultConfig returns the production fetcher settings
func DefaultConfig() Config {
	return Config{
		UserAgent:            DefaultUserAgent,
		Timeout:              DefaultTimeout,
		MaxDescriptionLength: DefaultMaxDescriptionLength,
	}
}

// Fetcher downloads feeds and converts their entries into core.FeedItem values
type Fetcher struct {
	client         *http.Client
	userAgent      string
	maxDescription int
	now            func() time.Time
	log            *slog.Logger
}

// NewFetcher creates a feed fetcher. Zero config fields take their defaults.
func NewFetcher(cfg Config) *Fetcher {
	defaults := DefaultConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxDescriptionLength <= 0 {
		cfg.MaxDescriptionLength = defaults.MaxDescriptionLength
	}

	return &Fetcher{
		client:         &http.Client{Timeout: cfg.Timeout},
		userAgent:      cfg.UserAgent,
		maxDescription: cfg.MaxDescriptionLength,
		now:            time.Now,
		log:            logger.Get().With("component", "feeds"),
	}
}

// Fetch returns the feed's items, or an empty list on any failure.
func (f *Fetcher) Fetch(ctx context.Context, url string) []core.FeedItem {
	items, err := f.FetchStrict(ctx, url)
	if err != nil {
		f.log.Warn("Feed fetch failed", "url", url, "error", err)
		return []core.FeedItem{}
	}
	return items
}

// FetchStrict returns the feed's items in feed order, reporting fetch and parse failures.
func (f *Fetcher) FetchStrict(ctx context.Context, url string) ([]core.FeedItem, error) {
	feed, err := f.download(ctx, url)
	if err != nil {
		return nil, err
	}

	fetchedAt := f.now().UTC()
	items := make([]core.FeedItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}
		title := strings.TrimSpace(entry.Title)
		link := extractLink(entry)
		if title == "" || link == "" {
			continue
		}

		items = append(items, core.FeedItem{
			Title:       title,
			Description: f.description(entry),
			Link:        link,
			PublishedAt: publishedAt(entry, fetchedAt),
			ImageURL:    extractImageURL(entry),
		})
	}
	return items, nil
}

func (f *Fetcher) download(ctx context.Context, url string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return feed, nil
}

func (f *Fetcher) description(entry *gofeed.Item) string {
	raw := entry.Description
	if strings.TrimSpace(raw) == "" {
		raw = entry.Content
	}
	return CleanDescription(raw, f.maxDescription)
}

// extractLink prefers the explicit link and falls back to an HTTP GUID.
func extractLink(entry *gofeed.Item) string {
	if link := strings.TrimSpace(entry.Link); link != "" {
		return link
	}
	if guid := strings.TrimSpace(entry.GUID); strings.HasPrefix(guid, httpPrefix) {
		return guid
	}
	return ""
}

func publishedAt(entry *gofeed.Item, fallback time.Time) time.Time {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed.UTC()
	}
	if entry.UpdatedParsed != nil {
		return entry.UpdatedParsed.UTC()
	}
	return fallback
}
