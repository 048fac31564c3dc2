package main

import (
	"github.com/hyperengineering/stripemirror"
	"github.com/spf13/cobra"
)

var (
	cfgEnvFile string
	cfgVerbose bool
	outputJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "stripemirror",
	Short: "Copy Stripe catalog data from production to test",
	Long: `stripemirror copies tax rates, products, prices and coupons from a
production Stripe account into a test account.

The production account is only ever read. Every copied record is tagged
with metadata[prod_id] so later runs update it instead of duplicating it,
and the production → test id correspondence is saved as a JSON snapshot.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgEnvFile, "env-file", "", "Path to a .env file with the Stripe keys (default: ./.env if present)")
	rootCmd.PersistentFlags().BoolVarP(&cfgVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")

	rootCmd.AddCommand(copyCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(historyCmd)
}

// loadConfig reads the credentials file and environment and remembers the
// keys so they can be scrubbed from printed errors.
func loadConfig() (stripemirror.Config, error) {
	cfg, err := stripemirror.LoadConfig(cfgEnvFile)
	if err != nil {
		return cfg, err
	}
	rememberSecrets(cfg.ProdKey, cfg.TestKey)
	return cfg, nil
}
