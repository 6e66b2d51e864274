// Package narrative turns clusters into summaries, framing analyses and daily digests
package narrative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"axial/internal/core"
	"axial/internal/llm"
	"axial/internal/logger"

	"golang.org/x/time/rate"
)

// ErrUnavailable is returned when no text generator is configured
var ErrUnavailable = errors.New("text generation unavailable")

// LLMClient defines the interface for LLM operations needed by the narrative service
type LLMClient interface {
	// GenerateText generates text from a prompt
	GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error)
}

// Options tunes generation requests
type Options struct {
	MaxTokens         int32
	Temperature       float32
	RequestsPerMinute int // 0 disables pacing
}

// DefaultOptions returns the generation settings used in production
func DefaultOptions() Options {
	return Options{
		MaxTokens:         512,
		Temperature:       0.3,
		RequestsPerMinute: 30,
	}
}

// Service is the text-generation capability used by enrichment and digests.
// A Service without a client reports itself unavailable.
type Service struct {
	llmClient LLMClient
	limiter   *rate.Limiter
	options   Options
	log       *slog.Logger
}

// NewService creates a narrative service. llmClient may be nil.
func NewService(llmClient LLMClient, options Options) *Service {
	s := &Service{
		llmClient: llmClient,
		options:   options,
		log:       logger.Get().With("component", "narrative"),
	}
	if options.RequestsPerMinute > 0 {
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(options.RequestsPerMinute)), 1)
	}
	return s
}

// Available reports whether text generation can be attempted
func (s *Service) Available() bool {
	return s != nil && s.llmClient != nil
}

func (s *Service) generate(ctx context.Context, prompt, system string, schema bool) (string, error) {
	if !s.Available() {
		return "", ErrUnavailable
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	opts := llm.TextGenerationOptions{
		MaxTokens:    s.options.MaxTokens,
		Temperature:  s.options.Temperature,
		SystemPrompt: system,
	}
	if schema {
		opts.ResponseSchema = biasAnalysisSchema()
	}

	text, err := s.llmClient.GenerateText(ctx, prompt, opts)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Summarize writes a short factual synthesis of a cluster's headlines and snippets
func (s *Service) Summarize(ctx context.Context, members []core.ClusterMember) (string, error) {
	if len(members) == 0 {
		return "", fmt.Errorf("no articles to summarize")
	}
	summary, err := s.generate(ctx, buildSummaryPrompt(members), summarySystemPrompt, false)
	if err != nil {
		return "", fmt.Errorf("failed to summarize cluster: %w", err)
	}
	if summary == "" {
		return "", fmt.Errorf("empty cluster summary")
	}
	return summary, nil
}

// AnalyzeBias compares how left, center and right outlets frame a story.
// Unusable structured output degrades to the pending placeholder without error;
// only a failed request is reported.
func (s *Service) AnalyzeBias(ctx context.Context, topic string, left, center, right []string) (core.BiasAnalysis, error) {
	raw, err := s.generate(ctx, buildBiasPrompt(topic, left, center, right), biasSystemPrompt, true)
	if err != nil {
		return core.BiasAnalysis{}, fmt.Errorf("failed to analyze framing: %w", err)
	}

	analysis, ok := ParseBiasAnalysis(raw)
	if !ok {
		s.log.Warn("Unparseable bias analysis, storing placeholder", "topic", topic)
	}
	return analysis, nil
}

// ComposeDigest writes the ~150 word morning digest for the given stories
func (s *Service) ComposeDigest(ctx context.Context, stories []core.DigestStory) (string, error) {
	if len(stories) == 0 {
		return "", fmt.Errorf("no stories for digest")
	}
	digest, err := s.generate(ctx, buildDigestPrompt(stories), digestSystemPrompt, false)
	if err != nil {
		return "", fmt.Errorf("failed to compose digest: %w", err)
	}
	if digest == "" {
		return "", fmt.Errorf("empty digest")
	}
	return digest, nil
}
