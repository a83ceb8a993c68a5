package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"codex-history/internal/clipboard"
	"codex-history/internal/config"
	"codex-history/internal/export"
	"codex-history/internal/history"
	"codex-history/internal/logger"
	"codex-history/internal/panel"
	"codex-history/internal/ui"
	"codex-history/internal/watch"
	"codex-history/internal/workspace"
)

var (
	codexHomeFlag  string
	configPathFlag string
	exportDirFlag  string
	noWatchFlag    bool
)

var rootCmd = &cobra.Command{
	Use:   "codex-history",
	Short: "Browse Codex conversation history by turn",
	Long: `Browse the turns recorded in Codex session logs.

Turns are read from <CODEX_HOME>/sessions/YYYY/MM/DD/rollout-*.jsonl, grouped
by day and listed newest first. Settings are read from
$XDG_CONFIG_HOME/codex-history/config.yaml or ~/.config/codex-history/config.yaml.`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runBrowser,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&codexHomeFlag, "codex-home", "", "path to CODEX_HOME (default $CODEX_HOME or ~/.codex)")
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "", "path to the settings YAML file")
	rootCmd.Flags().StringVar(&exportDirFlag, "export-dir", "", "directory for exported turns (default ./docs/codex)")
	rootCmd.Flags().BoolVar(&noWatchFlag, "no-watch", false, "do not watch the sessions directory for new activity")
}

func resolveConfig() (config.AppConfig, error) {
	return config.Resolve(codexHomeFlag, configPathFlag, exportDirFlag)
}

// newManager wires the panel to the on-disk index and the settings file.
// Settings are re-read on every Show.
func newManager(cfg config.AppConfig, copier panel.Copier) *panel.Manager {
	return panel.NewManager(panel.Options{
		Load: func(ctx context.Context) (*history.Index, error) {
			return history.BuildIndex(ctx, cfg.SessionsRoot, history.BuildOptions{})
		},
		Settings: func() panel.Settings {
			s := cfg.ReadSettings()
			return panel.Settings{
				MaxHistoryCount:  s.MaxHistoryCount,
				IncludeReasoning: s.IncludeReasoning,
				Locale:           s.Locale,
			}
		},
		Copier: copier,
		Notify: func(text string) {
			logger.Logger.Debug().Int("bytes", len(text)).Msg("copied to clipboard")
		},
	})
}

func runBrowser(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}

	logFile, err := logger.OpenFile(logger.LevelFromEnv(), cfg.LogPath)
	if err != nil {
		return err
	}
	defer logFile.Close()

	exp, err := export.New(cfg.ExportDir)
	if err != nil {
		return err
	}

	status := workspace.Check(cfg.CodexHome)
	if !status.Available {
		logger.Logger.Warn().Err(status.Err).Str("reason", string(status.Reason)).Msg("workspace unavailable")
	}

	var watcher *watch.Watcher
	if !noWatchFlag {
		watcher, err = watch.New(cfg.SessionsRoot, watch.DefaultDebounce)
		if err != nil {
			logger.Logger.Warn().Err(err).Msg("session watcher disabled")
			watcher = nil
		} else {
			watcher.Start()
			defer func() { _ = watcher.Stop() }()
		}
	}

	model := ui.NewModel(ui.Deps{
		Config:    cfg,
		Manager:   newManager(cfg, clipboard.NewSystem()),
		Exporter:  exp,
		Workspace: status,
		Watcher:   watcher,
	})

	logger.Logger.Info().Str("codex_home", cfg.CodexHome).Str("settings", cfg.ConfigPath).Msg("starting browser")
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run browser: %w", err)
	}
	return nil
}
