// Package observability sends product-analytics events for pipeline runs to PostHog
package observability

import (
	"fmt"
	"log/slog"
	"time"

	"axial/internal/config"
	"axial/internal/logger"
	"axial/internal/pipeline"

	"github.com/posthog/posthog-go"
)

const systemDistinctID = "axial-pipeline"

// enqueuer is the part of posthog.Client this package uses
type enqueuer interface {
	Enqueue(posthog.Message) error
	Close() error
}

// PostHogClient wraps the PostHog SDK for product analytics
type PostHogClient struct {
	client  enqueuer
	enabled bool
	log     *slog.Logger
}

// EventProperties contains properties for an event
type EventProperties map[string]interface{}

// NewPostHogClient creates a PostHog client from the global configuration
func NewPostHogClient() (*PostHogClient, error) {
	return NewPostHogClientWithConfig(config.GetPostHogConfig())
}

// NewPostHogClientWithConfig creates a PostHog client. A disabled
// configuration yields a client whose methods do nothing.
func NewPostHogClientWithConfig(cfg config.PostHogConfig) (*PostHogClient, error) {
	log := logger.Get().With("component", "posthog")

	if !cfg.Enabled {
		return &PostHogClient{enabled: false, log: log}, nil
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("PostHog enabled but missing API key")
	}

	client, err := posthog.NewWithConfig(cfg.APIKey, posthog.Config{
		Endpoint: cfg.Host,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create PostHog client: %w", err)
	}

	return &PostHogClient{client: client, enabled: true, log: log}, nil
}

// IsEnabled returns whether PostHog tracking is enabled
func (p *PostHogClient) IsEnabled() bool {
	return p.enabled
}

// Capture sends an event to PostHog
func (p *PostHogClient) Capture(distinctID string, event string, properties EventProperties) error {
	if !p.enabled {
		return nil
	}

	props := posthog.NewProperties()
	for k, v := range properties {
		props.Set(k, v)
	}

	return p.client.Enqueue(posthog.Capture{
		DistinctId: distinctID,
		Event:      event,
		Properties: props,
	})
}

// capture logs rather than returns enqueue failures; analytics never fail a run
func (p *PostHogClient) capture(event string, properties EventProperties) {
	if err := p.Capture(systemDistinctID, event, properties); err != nil {
		p.log.Warn("Failed to enqueue analytics event", "event", event, "error", err)
	}
}

// RecordSync implements pipeline.Recorder
func (p *PostHogClient) RecordSync(result pipeline.SyncResult, elapsed time.Duration) {
	p.capture("pipeline_sync_completed", EventProperties{
		"fetched":     result.Fetched,
		"new":         result.New,
		"errors":      result.Errors,
		"resumed":     result.Resumed,
		"duration_ms": elapsed.Milliseconds(),
	})
}

// RecordEnrichment implements pipeline.Recorder
func (p *PostHogClient) RecordEnrichment(enriched int, elapsed time.Duration) {
	p.capture("pipeline_enrichment_completed", EventProperties{
		"enriched":    enriched,
		"duration_ms": elapsed.Milliseconds(),
	})
}

// RecordDigest implements pipeline.Recorder
func (p *PostHogClient) RecordDigest(created bool, elapsed time.Duration) {
	p.capture("digest_generated", EventProperties{
		"created":     created,
		"duration_ms": elapsed.Milliseconds(),
	})
}

// RecordBusy implements pipeline.Recorder
func (p *PostHogClient) RecordBusy(stage pipeline.Stage) {
	p.capture("pipeline_stage_busy", EventProperties{"stage": string(stage)})
}

// TrackError tracks when an error occurs
func (p *PostHogClient) TrackError(errorType string, errorMessage string, component string) error {
	return p.Capture(systemDistinctID, "error_occurred", EventProperties{
		"error_type":    errorType,
		"error_message": errorMessage,
		"component":     component,
	})
}

// Shutdown flushes pending events and closes the client
func (p *PostHogClient) Shutdown() error {
	if !p.enabled {
		return nil
	}

	return p.client.Close()
}

var _ pipeline.Recorder = (*PostHogClient)(nil)
