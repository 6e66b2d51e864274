// Package sources provides feed source administration: validated adds,
// listing, activation toggles and seeding from a file
package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"axial/internal/core"
	"axial/internal/feeds"
	"axial/internal/logger"
	"axial/internal/persistence"
)

var (
	// ErrInvalidFeed is returned when a feed URL does not serve a parseable feed
	ErrInvalidFeed = errors.New("invalid feed")

	// ErrInvalidBias is returned for an unknown bias label
	ErrInvalidBias = errors.New("invalid bias label")
)

// FeedValidator checks that a URL serves a feed
type FeedValidator interface {
	Validate(ctx context.Context, url string) feeds.ValidationResult
}

// Manager handles feed source management
type Manager struct {
	sources   persistence.SourceRepository
	validator FeedValidator
	log       *slog.Logger
}

// NewManager creates a new source manager
func NewManager(sources persistence.SourceRepository, validator FeedValidator) *Manager {
	return &Manager{
		sources:   sources,
		validator: validator,
		log:       logger.Get().With("component", "sources"),
	}
}

// Add validates feedURL and stores it as an active source. An empty bias
// label defaults to center; a known feed URL returns persistence.ErrDuplicate.
func (m *Manager) Add(ctx context.Context, name, feedURL, bias string) (*core.Source, error) {
	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		return nil, fmt.Errorf("%w: feed URL is required", ErrInvalidFeed)
	}

	label := core.BiasCenter
	if strings.TrimSpace(bias) != "" {
		parsed, ok := core.ParseBiasLabel(bias)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidBias, bias)
		}
		label = parsed
	}

	result := m.validator.Validate(ctx, feedURL)
	if !result.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFeed, result.Error)
	}

	if strings.TrimSpace(name) == "" {
		name = result.Title
	}
	if name == "" {
		name = feedURL
	}

	source := &core.Source{
		Name:      name,
		FeedURL:   feedURL,
		BiasLabel: label,
		IsActive:  true,
	}
	if err := m.sources.Create(ctx, source); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			return nil, fmt.Errorf("source with feed URL %s already exists: %w", feedURL, err)
		}
		return nil, fmt.Errorf("failed to store source: %w", err)
	}

	m.log.Info("Added source", "id", source.ID, "name", source.Name, "bias", source.BiasLabel, "items", result.ItemCount)
	return source, nil
}

// List returns all sources
func (m *Manager) List(ctx context.Context) ([]core.Source, error) {
	return m.sources.List(ctx, persistence.ListOptions{Limit: 1000})
}

// SetActive enables or disables a source for ingestion
func (m *Manager) SetActive(ctx context.Context, id string, active bool) error {
	if err := m.sources.SetActive(ctx, id, active); err != nil {
		return fmt.Errorf("failed to update source %s: %w", id, err)
	}
	m.log.Info("Toggled source", "id", id, "active", active)
	return nil
}

// Validate checks a feed URL without storing it
func (m *Manager) Validate(ctx context.Context, feedURL string) feeds.ValidationResult {
	return m.validator.Validate(ctx, strings.TrimSpace(feedURL))
}
