package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset <experience-id>",
	Short: "Clear the frequency counter of an experience",
	Args:  cobra.ExactArgs(1),
	RunE:  runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().String("experiences", "", "experiences file (YAML)")
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("experiences") {
		cfg.Engine.ExperiencesFile, _ = cmd.Flags().GetString("experiences")
	}
	if !cfg.Storage.IsSQL() {
		return fmt.Errorf("memory storage does not outlive the process (use sqlite:// or postgres://)")
	}

	rt, err := openRuntime(cfg, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.service.ResetFrequency(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "frequency reset for %s\n", args[0])
	return nil
}
