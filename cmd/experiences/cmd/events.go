package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/experiences/internal/core/db"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Print the most recent captured events",
	Args:  cobra.NoArgs,
	RunE:  runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().Int("limit", db.DefaultRecentLimit, "number of events to print")
}

func runEvents(cmd *cobra.Command, args []string) error {
	q, closeFn, err := openSQL()
	if err != nil {
		return err
	}
	defer closeFn()

	if err := db.RequireMigrated(q.DB()); err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	events, err := db.NewEventLog(q, nil).Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no events captured")
		return nil
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	return nil
}
