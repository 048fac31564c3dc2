package stripemirror

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultAPIBaseURL is the Stripe REST endpoint.
const DefaultAPIBaseURL = "https://api.stripe.com"

// Config configures a copy run.
type Config struct {
	// ProdKey is the secret key of the production (source) account.
	// It is only ever used for reads.
	ProdKey string

	// TestKey is the secret key of the test (destination) account.
	TestKey string

	// APIBaseURL overrides the Stripe endpoint. Defaults to DefaultAPIBaseURL.
	APIBaseURL string

	// MappingsDir is where mapping snapshots are written.
	// Defaults to ./mappings.
	MappingsDir string

	// LedgerPath is the SQLite run ledger. Empty disables the ledger.
	LedgerPath string

	// RateLimit caps API requests per second. Zero means DefaultRateLimit.
	RateLimit float64

	// DryRun simulates every write.
	DryRun bool
}

// DefaultRateLimit stays well below Stripe's live-mode limit.
const DefaultRateLimit = 20

// DefaultConfig returns a Config with sensible defaults and no keys.
func DefaultConfig() Config {
	return Config{
		APIBaseURL:  DefaultAPIBaseURL,
		MappingsDir: "mappings",
		LedgerPath:  DefaultLedgerPath(),
		RateLimit:   DefaultRateLimit,
	}
}

// DefaultLedgerPath returns ~/.stripemirror/ledger.db, falling back to the
// working directory when the home directory is unavailable.
func DefaultLedgerPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, ".stripemirror", "ledger.db")
	}
	return filepath.Join(home, ".stripemirror", "ledger.db")
}

// ConfigFromEnv reads configuration from environment variables.
//
//	STRIPE_SECRET_KEY          → ProdKey
//	STRIPE_SECRET_KEY_TEST     → TestKey
//	STRIPE_API_BASE            → APIBaseURL
//	STRIPEMIRROR_MAPPINGS_DIR  → MappingsDir
//	STRIPEMIRROR_LEDGER        → LedgerPath ("off" disables)
//	STRIPEMIRROR_RATE_LIMIT    → RateLimit
func ConfigFromEnv() Config {
	cfg := Config{
		ProdKey:     strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY")),
		TestKey:     strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY_TEST")),
		APIBaseURL:  strings.TrimSpace(os.Getenv("STRIPE_API_BASE")),
		MappingsDir: strings.TrimSpace(os.Getenv("STRIPEMIRROR_MAPPINGS_DIR")),
		LedgerPath:  strings.TrimSpace(os.Getenv("STRIPEMIRROR_LEDGER")),
	}
	if v := strings.TrimSpace(os.Getenv("STRIPEMIRROR_RATE_LIMIT")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimit = n
		}
	}
	return cfg
}

// LoadConfig loads envFile (or ./.env when envFile is empty) into the process
// environment, then reads, defaults and validates the configuration.
// An explicitly named envFile must exist; the implicit ./.env is optional.
// Variables already set in the environment take precedence over the file.
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, &ConfigError{Field: "EnvFile", Message: err.Error()}
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, &ConfigError{Field: "EnvFile", Message: err.Error()}
	}

	cfg := ConfigFromEnv().WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WithDefaults fills in default values for unset fields.
func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaults.APIBaseURL
	}
	if c.MappingsDir == "" {
		c.MappingsDir = defaults.MappingsDir
	}
	switch strings.ToLower(c.LedgerPath) {
	case "":
		c.LedgerPath = defaults.LedgerPath
	case "off", "none":
		c.LedgerPath = ""
	}
	if c.RateLimit == 0 {
		c.RateLimit = defaults.RateLimit
	}
	return c
}

// Validate checks the configuration for errors.
// Returns *ConfigError for invalid fields.
func (c *Config) Validate() error {
	if c.ProdKey == "" {
		return &ConfigError{Field: "STRIPE_SECRET_KEY", Message: "required: production secret key"}
	}
	if c.TestKey == "" {
		return &ConfigError{Field: "STRIPE_SECRET_KEY_TEST", Message: "required: test secret key"}
	}

	// The destination must be a test-mode key: this is what keeps a
	// misconfigured run from writing into a live account.
	if !strings.HasPrefix(c.TestKey, "sk_test_") && !strings.HasPrefix(c.TestKey, "rk_test_") {
		return &ConfigError{
			Field:   "STRIPE_SECRET_KEY_TEST",
			Message: fmt.Sprintf("must be a test key (sk_test_*), found %s", redact(c.TestKey)),
		}
	}

	if c.ProdKey == c.TestKey {
		return &ConfigError{Field: "STRIPE_SECRET_KEY", Message: "production and test keys must differ"}
	}

	if c.RateLimit < 0 {
		return &ConfigError{Field: "RateLimit", Message: "must be non-negative"}
	}

	return nil
}

// String describes the configuration without exposing the keys.
func (c Config) String() string {
	return fmt.Sprintf("Config(prod_key=%s, test_key=%s, api=%s, dry_run=%t)",
		redact(c.ProdKey), redact(c.TestKey), c.APIBaseURL, c.DryRun)
}

// redact keeps the key prefix (mode and a few characters) only.
func redact(key string) string {
	if len(key) <= 10 {
		return strings.Repeat("*", len(key))
	}
	return key[:10] + "..."
}
