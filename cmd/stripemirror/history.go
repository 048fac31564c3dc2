package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/stripemirror"
	"github.com/hyperengineering/stripemirror/internal/ledger"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show previous copy runs",
	Long: `List previous copy runs recorded in the run ledger, or the failed
records of one run.

Example:
  stripemirror history
  stripemirror history --limit 5
  stripemirror history --run 01HV3K8Y0M6Q6X2D6J0W9T4Z7B`,
	RunE: runHistory,
}

var (
	historyLimit int
	historyRun   string
)

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Number of runs to show (0 for all)")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "Show the failed records of one run")
}

func runHistory(cmd *cobra.Command, args []string) error {
	// Keys are not needed to read the ledger.
	cfg := stripemirror.ConfigFromEnv().WithDefaults()
	if cfg.LedgerPath == "" {
		return fmt.Errorf("run ledger is disabled (STRIPEMIRROR_LEDGER=off)")
	}

	led, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return err
	}
	defer func() { _ = led.Close() }()

	if historyRun != "" {
		return showRun(cmd, led, historyRun)
	}

	runs, err := led.Runs(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if outputJSON {
		return outputAsJSON(cmd, runs)
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		printMuted(out, "No runs recorded in %s", led.Path())
		return nil
	}

	var b strings.Builder
	b.WriteString("| Run | Started | Mode | Entities | Created | Updated | Errors | Status |\n")
	b.WriteString("|-----|---------|------|----------|--------:|--------:|-------:|--------|\n")
	for _, r := range runs {
		mode := "live"
		if r.DryRun {
			mode = "dry-run"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %d | %d | %d | %s |\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), mode, joinKinds(r.Kinds),
			r.Summary.Created, r.Summary.Updated, r.Summary.Errors, r.Status)
	}
	fmt.Fprintln(out, renderMarkdown(b.String()))
	return nil
}

func showRun(cmd *cobra.Command, led *ledger.Ledger, id string) error {
	run, err := led.Run(cmd.Context(), id)
	if err != nil {
		return err
	}
	failed, err := led.Entries(cmd.Context(), id, true)
	if err != nil {
		return err
	}

	if outputJSON {
		return outputAsJSON(cmd, struct {
			Run    ledger.Run     `json:"run"`
			Failed []ledger.Entry `json:"failed"`
		}{run, failed})
	}

	out := cmd.OutOrStdout()
	printInfo(out, "Run %s (%s): %d created, %d updated, %d errors",
		run.ID, run.Status, run.Summary.Created, run.Summary.Updated, run.Summary.Errors)
	if run.SnapshotPath != "" {
		printMuted(out, "Snapshot: %s", run.SnapshotPath)
	}
	if len(failed) == 0 {
		printSuccess(out, "No failed records")
		return nil
	}
	for _, e := range failed {
		printError(out, "%s %s: %s", e.Kind, e.ProdID, scrubSensitiveData(e.Error))
	}
	return nil
}
