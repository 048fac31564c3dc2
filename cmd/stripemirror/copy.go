package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hyperengineering/stripemirror"
	"github.com/hyperengineering/stripemirror/internal/copier"
	"github.com/hyperengineering/stripemirror/internal/ledger"
	"github.com/hyperengineering/stripemirror/internal/stripeapi"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var copyCmd = &cobra.Command{
	Use:   "copy",
	Short: "Copy entities from production to test",
	Long: `Copy tax rates, products, prices and coupons from the production account
into the test account. Kinds always run in dependency order so prices and
coupons can reference the products copied before them.

Example:
  stripemirror copy --dry-run
  stripemirror copy --entities products,prices
  stripemirror copy --entities coupons --resume mappings/mapping_20240309_140507.json
  stripemirror copy -y --env-file ./stripe.env`,
	RunE: runCopy,
}

var (
	copyDryRun   bool
	copyEntities string
	copyYes      bool
	copyResume   string
)

var (
	errNoKinds   = errors.New("no valid entities to copy")
	errCopyFail  = errors.New("some entities could not be copied")
	errCancelled = errors.New("operation interrupted")
)

func init() {
	copyCmd.Flags().BoolVar(&copyDryRun, "dry-run", false, "Simulate the copy without writing to the test account")
	copyCmd.Flags().StringVar(&copyEntities, "entities", defaultEntities(), "Comma-separated entities to copy")
	copyCmd.Flags().BoolVarP(&copyYes, "yes", "y", false, "Skip the confirmation prompt")
	copyCmd.Flags().StringVar(&copyResume, "resume", "", "Load a previous mapping snapshot before copying")
}

func defaultEntities() string {
	names := make([]string, 0, len(stripemirror.AllKinds()))
	for _, k := range stripemirror.AllKinds() {
		names = append(names, k.String())
	}
	return strings.Join(names, ",")
}

func runCopy(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	log := newLogger(errOut, cfgVerbose)

	if !outputJSON {
		fmt.Fprint(out, renderBanner())
	}

	cfg, err := loadConfig()
	if err != nil {
		printMuted(errOut, "Check that your .env file contains:\n  STRIPE_SECRET_KEY=sk_live_...\n  STRIPE_SECRET_KEY_TEST=sk_test_...")
		return err
	}
	cfg.DryRun = copyDryRun
	log.WithField("config", cfg.String()).Debug("configuration loaded")

	kinds, unknown := stripemirror.ParseKinds(copyEntities)
	for _, name := range unknown {
		printWarning(errOut, "Unknown entity ignored: %s", name)
	}
	if len(kinds) == 0 {
		return errNoKinds
	}

	if !outputJSON {
		printSuccess(out, "Configuration validated")
		printInfo(out, "Entities to copy: %s", joinKinds(kinds))
		if cfg.DryRun {
			fmt.Fprint(out, renderDryRunNotice())
		}
	}

	if !cfg.DryRun {
		printWarning(errOut, "This operation will modify your TEST account. PRODUCTION is only read.")
		if !copyYes {
			ok, err := confirm(cmd.InOrStdin(), errOut, "Do you want to continue?")
			if err != nil {
				return err
			}
			if !ok {
				printWarning(errOut, "Operation cancelled")
				return nil
			}
		}
	}

	mapper := stripemirror.NewMapper(cfg.MappingsDir, log)
	if copyResume != "" {
		if err := mapper.Load(copyResume); err != nil {
			return err
		}
		mapper.ResetStats()
		printInfo(errOut, "Loaded %d mappings from %s", mapper.Len(), copyResume)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	led, runID := openLedger(ctx, cfg, kinds, log)
	if led != nil {
		defer func() { _ = led.Close() }()
	}

	prog := newProgress(errOut, isTTY() && !cfgVerbose && !outputJSON)
	obs := observers{prog}
	if led != nil {
		obs = append(obs, led.Observer(ctx, runID, log))
	}

	client := stripeapi.NewClient(cfg, log)
	c := copier.New(client, mapper, log).WithObserver(obs)

	if !outputJSON {
		printSection(out, "COPY")
	}
	report := copier.NewOrchestrator(c, log).Run(ctx, kinds)
	prog.Done()

	for _, f := range report.Failures {
		printError(errOut, "Error copying %s: %s", f.Kind, scrubSensitiveData(f.Err.Error()))
	}

	var (
		snapshot string
		saveErr  error
	)
	if !cfg.DryRun {
		snapshot, saveErr = mapper.Save()
		if saveErr != nil {
			log.WithError(saveErr).Error("mapping snapshot not saved")
		}
	}

	if led != nil {
		// The run context may be cancelled already; the final status is
		// still written.
		if err := led.FinishRun(context.Background(), runID, runStatus(report), report.Summary, snapshot); err != nil {
			log.WithError(err).Warn("ledger not updated")
		}
	}

	if outputJSON {
		if err := outputAsJSON(cmd, newCopyResult(report, runID, snapshot, cfg.DryRun)); err != nil {
			return err
		}
	} else {
		printCopySummary(out, report, snapshot)
	}

	switch {
	case report.Cancelled:
		return errCancelled
	case !report.OK():
		return errCopyFail
	case saveErr != nil:
		return saveErr
	}
	return nil
}

func printCopySummary(w io.Writer, report copier.Report, snapshot string) {
	if snapshot != "" {
		printSection(w, "MAPPING")
		printSuccess(w, "Mapping saved: %s", snapshot)
	}

	printSection(w, "FINAL STATISTICS")
	fmt.Fprintln(w, renderMarkdown(statsMarkdown(report)))
	fmt.Fprintln(w)

	switch {
	case report.Cancelled:
		printError(w, "Operation interrupted by user")
	case !report.OK():
		printWarning(w, "Some entities could not be copied")
	default:
		printSuccess(w, "Copy completed successfully")
	}
}

// openLedger opens the run ledger and starts a run. The ledger is optional:
// when it is disabled or cannot be opened the copy proceeds without it.
func openLedger(ctx context.Context, cfg stripemirror.Config, kinds []stripemirror.Kind, log logrus.FieldLogger) (*ledger.Ledger, string) {
	if cfg.LedgerPath == "" {
		return nil, ""
	}
	led, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		log.WithError(err).Warn("run ledger unavailable")
		return nil, ""
	}
	runID, err := led.BeginRun(ctx, kinds, cfg.DryRun)
	if err != nil {
		log.WithError(err).Warn("run ledger unavailable")
		_ = led.Close()
		return nil, ""
	}
	log.WithField("run_id", runID).Debug("run started")
	return led, runID
}

func runStatus(report copier.Report) ledger.Status {
	switch {
	case report.Cancelled:
		return ledger.StatusCancelled
	case report.OK():
		return ledger.StatusSucceeded
	default:
		return ledger.StatusFailed
	}
}

// confirm asks a yes/no question on r. Anything other than y/yes is a no.
func confirm(r io.Reader, w io.Writer, question string) (bool, error) {
	fmt.Fprintf(w, "%s [y/N]: ", question)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func joinKinds(kinds []stripemirror.Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, ", ")
}
