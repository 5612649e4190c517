package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/experiences/internal/core/api"
	"github.com/solatis/experiences/internal/types"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate one page view and print the decision",
	Long: `Evaluate runs the decision pipeline once against the configured
experiences and prints the Decision as JSON. With --all it prints one
decision per experience. With --dry-run no shown event is emitted and no
frequency counter changes.`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().String("url", "", "page URL")
	evaluateCmd.Flags().String("referrer", "", "referrer URL")
	evaluateCmd.Flags().String("experiences", "", "experiences file (YAML)")
	evaluateCmd.Flags().Bool("all", false, "evaluate every experience independently")
	evaluateCmd.Flags().Bool("dry-run", false, "preview without recording impressions")
	evaluateCmd.Flags().Bool("grant-consent", false, "grant consent before evaluating")
	evaluateCmd.MarkFlagRequired("url")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("experiences") {
		cfg.Engine.ExperiencesFile, _ = flags.GetString("experiences")
	}
	if cfg.Engine.ExperiencesFile == "" {
		return fmt.Errorf("no experiences file (use --experiences or engine.experiences_file)")
	}

	rt, err := openRuntime(cfg, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	if grant, _ := flags.GetBool("grant-consent"); grant {
		rt.service.SetConsent(true)
	}

	req := api.EvaluateRequest{}
	req.URL, _ = flags.GetString("url")
	req.Referrer, _ = flags.GetString("referrer")
	req.Preview, _ = flags.GetBool("dry-run")

	var out any
	if all, _ := flags.GetBool("all"); all {
		decisions, err := rt.service.EvaluateAll(cmd.Context(), req)
		if err != nil {
			return err
		}
		out = map[string][]types.Decision{"decisions": decisions}
	} else {
		d, err := rt.service.Evaluate(cmd.Context(), req)
		if err != nil {
			return err
		}
		out = d
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
