package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"axial/internal/logger"
	"axial/internal/pipeline"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewSyncCmd creates the sync command
func NewSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one ingestion pass over all active sources",
		Long: `Fetch every active source, store new articles, score them and assign
them to story clusters. Articles left half-processed by an earlier run are
resumed first.

Example:
  axial sync`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context())
		},
	}
}

// NewEnrichCmd creates the enrich command
func NewEnrichCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enrich",
		Short: "Summarize the biggest unsummarized story clusters",
		Long: `Summarize up to 10 clusters with at least 3 articles and compare how
left, center and right outlets frame each story. Requires a Gemini API key;
without one this is a no-op.

Example:
  axial enrich`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnrich(cmd.Context())
		},
	}
}

// NewDigestCmd creates the digest command
func NewDigestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Compose today's digest",
		Long: `Compose the digest for the current UTC date from the top clusters of the
last 24 hours. Nothing happens if today's digest already exists.

Example:
  axial digest`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(cmd.Context())
		},
	}
}

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pipeline counters and the latest digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print status as JSON")

	return cmd
}

func runSync(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	result, err := a.pipeline.RunSync(ctx)
	if err != nil {
		return stageError(pipeline.StageSync, err)
	}

	logger.Info("Sync finished", "duration", time.Since(start))
	fmt.Printf("✅ Sync complete: %d fetched, %d new, %d resumed, %d errors\n",
		result.Fetched, result.New, result.Resumed, result.Errors)
	return nil
}

func runEnrich(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.pipeline.AIAvailable() {
		fmt.Println("⚠️  Text generation unavailable (set GEMINI_API_KEY); nothing enriched")
		return nil
	}

	enriched, err := a.pipeline.RunEnrichment(ctx)
	if err != nil {
		return stageError(pipeline.StageEnrich, err)
	}

	fmt.Printf("✅ Enriched %d clusters\n", enriched)
	return nil
}

func runDigest(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	created, err := a.pipeline.RunDigest(ctx)
	if err != nil {
		return stageError(pipeline.StageDigest, err)
	}

	if created {
		fmt.Println("✅ Today's digest created")
	} else {
		fmt.Println("Nothing to do: today's digest already exists or no stories were active")
	}
	return nil
}

func runStatus(ctx context.Context, asJSON bool) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.pipeline.Status(ctx)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	renderStatus(status)
	return nil
}

func renderStatus(status *pipeline.Status) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Pipeline Status")

	t.AppendRow(table.Row{"Active sources", status.ActiveSources})
	t.AppendRow(table.Row{"Total articles", status.TotalArticles})
	t.AppendRow(table.Row{"Articles (24h)", status.ArticlesLast24h})
	t.AppendRow(table.Row{"Pending articles", status.PendingArticles})
	t.AppendRow(table.Row{"Active clusters (7d)", status.ActiveClusters})
	t.AppendRow(table.Row{"Last fetch", formatTime(status.LastFetchAt)})

	lastDigest := "never"
	if status.LastDigest != nil {
		lastDigest = fmt.Sprintf("%s (created %s)", status.LastDigest.Date, status.LastDigest.CreatedAt.Format(time.RFC3339))
	}
	t.AppendRow(table.Row{"Last digest", lastDigest})

	ai := "unavailable"
	if status.AIAvailable {
		ai = "available"
	}
	t.AppendRow(table.Row{"Text generation", ai})

	t.Render()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(time.RFC3339)
}
