package core

import (
	"strings"
	"time"
)

// BiasLabel is the editorial leaning attached to a source.
type BiasLabel string

const (
	BiasLeft          BiasLabel = "left"
	BiasCenterLeft    BiasLabel = "center-left"
	BiasCenter        BiasLabel = "center"
	BiasCenterRight   BiasLabel = "center-right"
	BiasRight         BiasLabel = "right"
	BiasInternational BiasLabel = "international"
)

// BiasBucket groups bias labels into the four coverage buckets tracked per cluster.
type BiasBucket string

const (
	BucketLeft          BiasBucket = "left"
	BucketCenter        BiasBucket = "center"
	BucketRight         BiasBucket = "right"
	BucketInternational BiasBucket = "international"
	BucketNone          BiasBucket = ""
)

// ParseBiasLabel normalizes s and reports whether it is a known label.
func ParseBiasLabel(s string) (BiasLabel, bool) {
	label := BiasLabel(strings.ToLower(strings.TrimSpace(s)))
	switch label {
	case BiasLeft, BiasCenterLeft, BiasCenter, BiasCenterRight, BiasRight, BiasInternational:
		return label, true
	}
	return "", false
}

// Bucket maps a label onto its coverage bucket. Unknown labels fall in no bucket.
func (b BiasLabel) Bucket() BiasBucket {
	switch b {
	case BiasLeft, BiasCenterLeft:
		return BucketLeft
	case BiasRight, BiasCenterRight:
		return BucketRight
	case BiasCenter:
		return BucketCenter
	case BiasInternational:
		return BucketInternational
	default:
		return BucketNone
	}
}

// Source is a feed the pipeline pulls from.
type Source struct {
	ID            string     `json:"id"`                        // Unique identifier for the source
	Name          string     `json:"name"`                      // Outlet display name
	SubSource     string     `json:"sub_source,omitempty"`      // Section within the outlet (e.g. "world")
	FeedURL       string     `json:"feed_url"`                  // Feed URL, unique across sources
	BiasLabel     BiasLabel  `json:"bias_label"`                // Editorial leaning of the outlet
	IsActive      bool       `json:"is_active"`                 // Inactive sources are skipped by ingestion
	LastFetchedAt *time.Time `json:"last_fetched_at,omitempty"` // Last time ingestion visited this source
	CreatedAt     time.Time  `json:"created_at"`
}

// FeedItem is a normalized candidate item returned by the feed layer.
type FeedItem struct {
	Title       string    `json:"title"`
	Description string    `json:"description"` // HTML stripped, entities decoded, length capped
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"published_at"`
	ImageURL    string    `json:"image_url,omitempty"`
}

// Article is one distinct link ingested from a source.
type Article struct {
	ID             string       `json:"id"`
	SourceID       string       `json:"source_id"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Link           string       `json:"link"` // Global dedup key
	ImageURL       string       `json:"image_url,omitempty"`
	PublishedAt    time.Time    `json:"published_at"`
	FetchedAt      time.Time    `json:"fetched_at"`
	HeatScore      float64      `json:"heat_score"`
	SubstanceScore float64      `json:"substance_score"`
	Keywords       []string     `json:"keywords"`
	ClusterID      *string      `json:"cluster_id,omitempty"` // Nil until assigned
	State          ArticleState `json:"state"`
	IsProcessed    bool         `json:"is_processed"`
}

// Text returns the title and description joined the way scoring and clustering read them.
func (a Article) Text() string {
	return a.Title + " " + a.Description
}

// ClusterMember is an article row joined with its source's bias label.
type ClusterMember struct {
	ArticleID      string    `json:"article_id"`
	SourceID       string    `json:"source_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	BiasLabel      BiasLabel `json:"bias_label"`
	HeatScore      float64   `json:"heat_score"`
	SubstanceScore float64   `json:"substance_score"`
	PublishedAt    time.Time `json:"published_at"`
}

// BiasAnalysis is the four-facet framing breakdown attached to an enriched cluster.
type BiasAnalysis struct {
	LeftEmphasizes      string `json:"leftEmphasizes"`
	RightEmphasizes     string `json:"rightEmphasizes"`
	ConsistentAcrossAll string `json:"consistentAcrossAll"`
	WhatsMissing        string `json:"whatsMissing"`
}

// PendingBiasAnalysis is stored when the model's structured output cannot be used.
func PendingBiasAnalysis() BiasAnalysis {
	const pending = "Analysis pending."
	return BiasAnalysis{
		LeftEmphasizes:      pending,
		RightEmphasizes:     pending,
		ConsistentAcrossAll: pending,
		WhatsMissing:        pending,
	}
}

// ClusterStats holds the fields derived from a cluster's members.
type ClusterStats struct {
	ArticleCount           int       `json:"article_count"`
	SourceCount            int       `json:"source_count"` // Distinct sources
	LeftCount              int       `json:"left_count"`   // Member articles, not sources
	CenterCount            int       `json:"center_count"`
	RightCount             int       `json:"right_count"`
	InternationalCount     int       `json:"international_count"`
	AvgHeat                float64   `json:"avg_heat"`
	AvgSubstance           float64   `json:"avg_substance"`
	FirstArticleAt         time.Time `json:"first_article_at"`
	LastArticleAt          time.Time `json:"last_article_at"`
	RepresentativeHeadline string    `json:"representative_headline"` // Earliest member's title
	TopicSlug              string    `json:"topic_slug"`
}

// Cluster is a live aggregate of articles covering the same story.
type Cluster struct {
	ID                 string        `json:"id"`
	Topic              string        `json:"topic"`
	Summary            *string       `json:"summary,omitempty"`
	BiasAnalysis       *BiasAnalysis `json:"bias_analysis,omitempty"`
	SummaryGeneratedAt *time.Time    `json:"summary_generated_at,omitempty"`
	IsActive           bool          `json:"is_active"`
	ClusterStats
}

// DigestStory is one cluster as presented to the digest writer.
type DigestStory struct {
	Topic        string `json:"topic"`
	Summary      string `json:"summary,omitempty"`
	ArticleCount int    `json:"article_count"`
}

// DefaultClosingLine ends every daily digest unless another is supplied.
const DefaultClosingLine = "You're caught up."

// DailyDigest is the once-per-day narrative over the day's top clusters.
type DailyDigest struct {
	ID           string    `json:"id"`
	DigestDate   string    `json:"digest_date"` // YYYY-MM-DD, UTC
	Summary      string    `json:"summary"`
	KeyTopics    []string  `json:"key_topics"`
	ClosingLine  string    `json:"closing_line"`
	ClusterCount int       `json:"cluster_count"`
	ArticleCount int       `json:"article_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// DigestDate formats t as the UTC calendar date used to key digests.
func DigestDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
