package handlers

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"axial/internal/persistence"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate command for database migrations
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Manage the PostgreSQL schema.

Migrations are embedded in the binary and tracked in schema_migrations
together with a checksum, so edits to an already applied file are reported.

Examples:
  axial migrate up
  axial migrate status
  axial migrate rollback --force`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), runMigrateUp)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), runMigrateStatus)
		},
	})

	var force bool
	rollback := &cobra.Command{
		Use:   "rollback",
		Short: "Forget the last applied migration",
		Long: `Remove the newest record from schema_migrations.

⚠️  The schema itself is left untouched; revert its changes by hand.
Intended for development only.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force && !confirm("Forget the last applied migration? Schema changes stay in place.") {
				fmt.Println("Rollback cancelled")
				return nil
			}
			return withMigrator(cmd.Context(), runMigrateRollback)
		},
	}
	rollback.Flags().BoolVar(&force, "force", false, "Skip confirmation prompt")
	cmd.AddCommand(rollback)

	return cmd
}

// withMigrator opens the database for the duration of fn
func withMigrator(ctx context.Context, fn func(context.Context, *persistence.MigrationManager) error) error {
	db, err := getDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(ctx, persistence.NewMigrationManager(db))
}

func runMigrateUp(ctx context.Context, migrator *persistence.MigrationManager) error {
	applied, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migration failed after %d applied: %w", applied, err)
	}

	if applied == 0 {
		fmt.Println("✅ Schema already up to date")
		return nil
	}
	fmt.Printf("✅ Applied %d migration(s)\n", applied)
	return nil
}

func runMigrateStatus(ctx context.Context, migrator *persistence.MigrationManager) error {
	status, err := migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Migration Status")
	t.AppendHeader(table.Row{"Version", "Description", "State", "Applied At"})

	pending, modified := 0, 0
	for _, m := range status {
		state, appliedAt := "⏳ pending", ""
		switch {
		case m.Applied && m.Modified:
			state = "⚠️  edited"
			modified++
		case m.Applied:
			state = "✅ applied"
		default:
			pending++
		}
		if m.AppliedAt != nil {
			appliedAt = m.AppliedAt.Local().Format(time.DateTime)
		}
		t.AppendRow(table.Row{fmt.Sprintf("%03d", m.Version), m.Description, state, appliedAt})
	}
	t.AppendFooter(table.Row{"", "Pending", pending, ""})
	t.Render()

	if pending > 0 {
		fmt.Println("\nRun 'axial migrate up' to apply pending migrations")
	}
	if modified > 0 {
		fmt.Println("\nSome applied migrations were edited afterwards; add a new migration instead")
	}
	return nil
}

func runMigrateRollback(ctx context.Context, migrator *persistence.MigrationManager) error {
	version, err := migrator.Rollback(ctx)
	if err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	fmt.Printf("⚠️  Forgot migration %03d; revert its schema changes by hand\n", version)
	return nil
}

// confirm asks a yes/no question on stdin
func confirm(question string) bool {
	fmt.Printf("%s (yes/no): ", question)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), "yes")
}
