package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"axial/internal/config"
	"axial/internal/core"
	"axial/internal/persistence"
	"axial/internal/sources"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewSourceCmd creates the source management command
func NewSourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "source",
		Aliases: []string{"sources", "feed"},
		Short:   "Manage RSS/Atom feed sources",
		Long: `Manage the outlets Axial pulls from.

Subcommands:
  add       Add a new feed source (validated first)
  list      List all feed sources
  enable    Enable a source for ingestion
  disable   Disable a source
  seed      Insert sources from a seed file
  validate  Check that a URL serves a feed
  preview   Show the items a feed currently serves`,
	}

	cmd.AddCommand(newSourceAddCmd())
	cmd.AddCommand(newSourceListCmd())
	cmd.AddCommand(newSourceToggleCmd("enable", "Enable a feed source", true))
	cmd.AddCommand(newSourceToggleCmd("disable", "Disable a feed source", false))
	cmd.AddCommand(newSourceSeedCmd())
	cmd.AddCommand(newSourceValidateCmd())
	cmd.AddCommand(newSourcePreviewCmd())

	return cmd
}

func newSourceAddCmd() *cobra.Command {
	var (
		name string
		bias string
	)

	cmd := &cobra.Command{
		Use:   "add <feed-url>",
		Short: "Add a new RSS/Atom feed source",
		Long: `Add a new feed source for ingestion.

The feed is fetched and parsed before it is stored. The bias label must be
one of left, center-left, center, center-right, right or international.

Examples:
  axial source add https://feeds.bbci.co.uk/news/world/rss.xml --name BBC --bias center
  axial source add https://www.theguardian.com/world/rss --bias left`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSourceAdd(cmd.Context(), args[0], name, bias)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Outlet display name (default: the feed title)")
	cmd.Flags().StringVar(&bias, "bias", "center", "Editorial leaning of the outlet")

	return cmd
}

func newSourceListCmd() *cobra.Command {
	var showInactive bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List feed sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSourceList(cmd.Context(), showInactive)
		},
	}

	cmd.Flags().BoolVar(&showInactive, "all", false, "Include inactive sources")

	return cmd
}

func newSourceToggleCmd(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <source-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSourceToggle(cmd.Context(), args[0], active)
		},
	}
}

func newSourceSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [file]",
		Short: "Insert sources from a YAML or JSON seed file",
		Long: `Insert sources from a seed file. Each entry names an outlet, an optional
section and the feed URL; the bias label comes from the built-in outlet map
unless the entry sets one. Feeds already present are skipped.

The file defaults to feeds.seed_file from the configuration.

Example:
  axial source seed configs/sources.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.GetFeeds().SeedFile
			if len(args) == 1 {
				path = args[0]
			}
			return runSourceSeed(cmd.Context(), path)
		},
	}
}

func newSourceValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <feed-url>",
		Short: "Check that a URL serves a feed, without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSourceValidate(cmd.Context(), args[0])
		},
	}
}

func newSourcePreviewCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "preview <feed-url>",
		Short: "Show the items a feed serves right now, as sync would see them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items := newFetcher().Fetch(cmd.Context(), args[0])
			renderPreview(os.Stdout, items, limit)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of items to show (0 for all)")
	return cmd
}

func newSourceManager() (*sources.Manager, func(), error) {
	db, err := getDatabase()
	if err != nil {
		return nil, nil, err
	}
	return sources.NewManager(db.Sources(), newFetcher()), func() { _ = db.Close() }, nil
}

func runSourceAdd(ctx context.Context, feedURL, name, bias string) error {
	manager, closeDB, err := newSourceManager()
	if err != nil {
		return err
	}
	defer closeDB()

	src, err := manager.Add(ctx, name, feedURL, bias)
	switch {
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("a source with feed URL %s already exists", feedURL)
	case err != nil:
		return err
	}

	fmt.Printf("✅ Added %s (%s, %s)\n", src.Name, src.BiasLabel, src.ID)
	return nil
}

func runSourceList(ctx context.Context, showInactive bool) error {
	manager, closeDB, err := newSourceManager()
	if err != nil {
		return err
	}
	defer closeDB()

	list, err := manager.List(ctx)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Name", "Section", "Bias", "Active", "Last Fetched", "Feed URL"})

	shown := 0
	for _, src := range list {
		if !src.IsActive && !showInactive {
			continue
		}
		active := "yes"
		if !src.IsActive {
			active = "no"
		}
		t.AppendRow(table.Row{src.ID, src.Name, src.SubSource, src.BiasLabel, active, formatTime(src.LastFetchedAt), src.FeedURL})
		shown++
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Total", shown})
	t.Render()

	return nil
}

func runSourceToggle(ctx context.Context, id string, active bool) error {
	manager, closeDB, err := newSourceManager()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := manager.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return fmt.Errorf("source %s not found", id)
		}
		return err
	}

	state := "enabled"
	if !active {
		state = "disabled"
	}
	fmt.Printf("✅ Source %s %s\n", id, state)
	return nil
}

func runSourceSeed(ctx context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("no seed file given and feeds.seed_file is not configured")
	}

	manager, closeDB, err := newSourceManager()
	if err != nil {
		return err
	}
	defer closeDB()

	result, err := manager.SeedFile(ctx, path)
	if err != nil {
		return err
	}

	fmt.Printf("✅ Seeded from %s: %d inserted, %d skipped, %d failed\n", path, result.Inserted, result.Skipped, result.Failed)
	return nil
}

func runSourceValidate(ctx context.Context, feedURL string) error {
	// Validation needs no database
	manager := sources.NewManager(nil, newFetcher())
	result := manager.Validate(ctx, feedURL)
	if !result.Valid {
		return fmt.Errorf("❌ %s is not a valid feed: %s", feedURL, result.Error)
	}

	fmt.Printf("✅ %s: %d items\n", result.Title, result.ItemCount)
	for i, headline := range result.SampleHeadlines {
		fmt.Printf("  %2d. %s\n", i+1, headline)
	}
	return nil
}

// renderPreview prints up to limit items in feed order. A feed that failed to
// fetch or parse shows up as empty.
func renderPreview(w io.Writer, items []core.FeedItem, limit int) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No items (the feed is empty or could not be fetched; see the log)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Published", "Title", "Link"})

	shown := items
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for i, it := range shown {
		t.AppendRow(table.Row{i + 1, formatTime(&it.PublishedAt), it.Title, it.Link})
	}
	t.AppendFooter(table.Row{"", "", "Total", len(items)})
	t.Render()
}
