package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"codex-history/internal/history"
	"codex-history/internal/logger"
	"codex-history/internal/workspace"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the Codex workspace can be browsed",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the status as JSON")
	rootCmd.AddCommand(statusCmd)
}

type statusReport struct {
	workspace.Status
	SessionsRoot string `json:"sessionsRoot"`
	RolloutFiles int    `json:"rolloutFiles"`
	SettingsFile string `json:"settingsFile,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	logger.Configure(logger.LevelFromEnv(), os.Stderr, true)

	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	report := statusReport{
		Status:       workspace.Check(cfg.CodexHome),
		SessionsRoot: cfg.SessionsRoot,
		SettingsFile: cfg.ConfigPath,
	}
	files, err := history.DiscoverRollouts(cfg.SessionsRoot)
	if err != nil {
		logger.Logger.Warn().Err(err).Msg("discover rollouts")
	}
	report.RolloutFiles = len(files)

	out := cmd.OutOrStdout()
	if statusJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	fmt.Fprintln(out, report.Label())
	if report.Err != nil {
		fmt.Fprintf(out, "  error: %v\n", report.Err)
	}
	fmt.Fprintf(out, "sessions root: %s (%d rollout files)\n", report.SessionsRoot, report.RolloutFiles)
	if report.SettingsFile != "" {
		fmt.Fprintf(out, "settings: %s\n", report.SettingsFile)
	} else {
		fmt.Fprintln(out, "settings: defaults")
	}
	return nil
}
