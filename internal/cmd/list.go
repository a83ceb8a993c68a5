package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"codex-history/internal/clipboard"
	"codex-history/internal/export"
	"codex-history/internal/logger"
	"codex-history/internal/panel"
)

var (
	listQuery  string
	listSelect string
	listJSON   bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the history view for a query and selection",
	Example: `  codex-history list
  codex-history list --query parser
  codex-history list --select <session>:<turn> --json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listQuery, "query", "q", "", "only show turns whose message contains this text")
	listCmd.Flags().StringVar(&listSelect, "select", "", "turn id to show in detail")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print the view model as JSON")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	logger.Configure(logger.LevelFromEnv(), os.Stderr, true)

	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	mgr := newManager(cfg, clipboard.NewSystem())
	defer mgr.Close()

	ctx := cmd.Context()
	vm, err := mgr.Show(ctx)
	if err != nil {
		return err
	}
	if listQuery != "" {
		if vm, err = mgr.Handle(ctx, panel.Search{Query: listQuery}); err != nil {
			return err
		}
	}
	if listSelect != "" {
		if vm, err = mgr.Handle(ctx, panel.SelectTurn{TurnID: listSelect}); err != nil {
			return err
		}
	}

	if listJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(vm)
	}
	return writeView(cmd.OutOrStdout(), vm)
}

func writeView(w io.Writer, vm panel.ViewModel) error {
	if len(vm.Days) == 0 {
		if vm.AppliedQuery != "" {
			_, err := fmt.Fprintf(w, "No turns match %q.\n", vm.AppliedQuery)
			return err
		}
		_, err := fmt.Fprintln(w, "No history yet.")
		return err
	}
	selected := vm.SelectedTurnID()
	for _, day := range vm.Days {
		if _, err := fmt.Fprintln(w, day.DateKey); err != nil {
			return err
		}
		for _, t := range day.Turns {
			marker := " "
			if t.ID == selected {
				marker = ">"
			}
			if _, err := fmt.Fprintf(w, "%s %s %s  (%s)\n", marker, t.LocalTime, t.DisplayMessage, t.ID); err != nil {
				return err
			}
		}
	}
	if vm.SelectedTurn != nil {
		if _, err := fmt.Fprintf(w, "\n%s", export.BuildTurnMarkdown(vm.SelectedTurn)); err != nil {
			return err
		}
	}
	return nil
}
