package main

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"

	"github.com/hyperengineering/stripemirror"
	"github.com/hyperengineering/stripemirror/internal/stripeapi"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <snapshot>",
	Short: "Check that every mapped test record still exists",
	Long: `Load a mapping snapshot and retrieve every mapped record from the test
account. Records that no longer exist are listed.

Example:
  stripemirror verify mappings/mapping_20240309_140507.json`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

var errVerifyFail = errors.New("some mapped records are missing")

// verifyResult is the outcome of checking one snapshot.
type verifyResult struct {
	Snapshot string                         `json:"snapshot"`
	Checked  int                            `json:"checked"`
	Missing  map[stripemirror.Kind][]string `json:"missing,omitempty"`
	Failed   map[stripemirror.Kind][]string `json:"failed,omitempty"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	log := newLogger(cmd.ErrOrStderr(), cfgVerbose)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mapper := stripemirror.NewMapper(cfg.MappingsDir, log)
	if err := mapper.Load(args[0]); err != nil {
		return err
	}

	client := stripeapi.NewClient(cfg, log)
	ctx := cmd.Context()
	res := verifyResult{Snapshot: args[0]}
	mappings := mapper.Mappings()

	for _, kind := range stripemirror.AllKinds() {
		ids := mappings[kind]
		for _, prodID := range slices.Sorted(maps.Keys(ids)) {
			testID := ids[prodID]
			if err := ctx.Err(); err != nil {
				return err
			}
			res.Checked++

			_, err := client.Retrieve(ctx, kind, testID, stripemirror.Test)
			var apiErr *stripemirror.APIError
			switch {
			case err == nil:
				log.WithField("kind", kind).WithField("prod_id", prodID).Debug("mapped record present")
			case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
				if res.Missing == nil {
					res.Missing = map[stripemirror.Kind][]string{}
				}
				res.Missing[kind] = append(res.Missing[kind], testID)
			default:
				log.WithError(err).WithField("kind", kind).WithField("test_id", testID).Error("retrieve failed")
				if res.Failed == nil {
					res.Failed = map[stripemirror.Kind][]string{}
				}
				res.Failed[kind] = append(res.Failed[kind], testID)
			}
		}
	}

	if outputJSON {
		if err := outputAsJSON(cmd, res); err != nil {
			return err
		}
	} else {
		printVerifyResult(cmd, res)
	}

	if len(res.Missing) > 0 || len(res.Failed) > 0 {
		return errVerifyFail
	}
	return nil
}

func printVerifyResult(cmd *cobra.Command, res verifyResult) {
	out := cmd.OutOrStdout()
	for _, kind := range stripemirror.AllKinds() {
		for _, id := range res.Missing[kind] {
			printError(out, "%s %s: not found in test account", kind, id)
		}
		for _, id := range res.Failed[kind] {
			printWarning(out, "%s %s: could not be retrieved", kind, id)
		}
	}
	if len(res.Missing) == 0 && len(res.Failed) == 0 {
		printSuccess(out, "All %d mapped records exist in the test account", res.Checked)
		return
	}
	fmt.Fprintf(out, "Checked %d mapped records\n", res.Checked)
}
