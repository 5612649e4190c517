package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solatis/experiences/internal/core/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage storage schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrateUp,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrateStatus,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func openSQL() (*db.Queries, func() error, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Storage.IsSQL() {
		return nil, nil, fmt.Errorf("storage %s has no schema (use sqlite:// or postgres://)", cfg.Storage.Redacted())
	}
	database, err := db.Open(cfg.Storage.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	q, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return q, database.Close, nil
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	q, closeFn, err := openSQL()
	if err != nil {
		return err
	}
	defer closeFn()

	ran, err := db.MigrateUp(q.DB())
	if err != nil {
		return err
	}
	if len(ran) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no pending migrations")
		return nil
	}
	for _, id := range ran {
		fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", id)
	}
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	q, closeFn, err := openSQL()
	if err != nil {
		return err
	}
	defer closeFn()

	statuses, err := db.MigrateStatus(q.DB())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MIGRATION\tSTATUS\tAPPLIED AT")
	for _, s := range statuses {
		state, at := "pending", "-"
		if s.Applied {
			state = "applied"
			if s.AppliedAt != nil {
				at = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, state, at)
	}
	return w.Flush()
}
