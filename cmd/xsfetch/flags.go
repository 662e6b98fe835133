package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/xsfetch/internal/fetch"
	"github.com/pdiddy/xsfetch/internal/secrets"
	"github.com/pdiddy/xsfetch/pkg/types"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// addSelectionFlags registers the flags that describe what to fetch.
func addSelectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceP("libraries", "l", nil, "libraries in priority order (first wins)")
	cmd.Flags().StringSliceP("isotopes", "i", nil, `isotopes to fetch, or "all" / "stable"`)
	cmd.Flags().StringSliceP("elements", "e", nil, `elements to expand into natural isotopes, or "all" / "stable"`)
	cmd.Flags().StringSliceP("sab", "s", nil, `thermal scattering tables, or "all"`)
	cmd.Flags().StringSliceP("particles", "p", []string{"neutron", "photon"}, "particle types for isotope data")
	cmd.Flags().StringSliceP("materials", "m", nil, "materials.xml or YAML material files to expand")
}

// requestFromFlags builds a LibraryRequest from the selection flags.
func requestFromFlags(cmd *cobra.Command) types.LibraryRequest {
	libraries, _ := cmd.Flags().GetStringSlice("libraries")
	isotopes, _ := cmd.Flags().GetStringSlice("isotopes")
	elements, _ := cmd.Flags().GetStringSlice("elements")
	sab, _ := cmd.Flags().GetStringSlice("sab")
	particles, _ := cmd.Flags().GetStringSlice("particles")
	mats, _ := cmd.Flags().GetStringSlice("materials")

	return types.LibraryRequest{
		Libraries:     libraries,
		Isotopes:      isotopes,
		Elements:      elements,
		ThermalNames:  sab,
		Particles:     particles,
		MaterialFiles: mats,
	}
}

// Viper keys for fetch settings.
const (
	keyConcurrency   = "fetch.concurrency"
	keyAttempts      = "fetch.attempts"
	keyRate          = "fetch.rate"
	keyTimeout       = "fetch.timeout"
	keyVerify        = "fetch.verify"
	keyFailurePolicy = "fetch.failure_policy"
	keyUserAgent     = "fetch.user_agent"
	keyLedger        = "fetch.ledger"
)

func init() {
	def := fetch.DefaultConfig()
	viper.SetDefault(keyConcurrency, def.Concurrency)
	viper.SetDefault(keyAttempts, def.Attempts)
	viper.SetDefault(keyRate, 0.0)
	viper.SetDefault(keyTimeout, def.Timeout)
	viper.SetDefault(keyVerify, string(def.Verify))
	viper.SetDefault(keyFailurePolicy, string(def.FailurePolicy))
	viper.SetDefault(keyUserAgent, "xsfetch/"+version)
	viper.SetDefault(keyLedger, def.Ledger)
}

// fetchConfig reads fetch settings from viper (config file, XSFETCH_*
// environment, bound flags) and validates them.
func fetchConfig() (types.FetchConfig, error) {
	cfg := types.FetchConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   viper.GetDuration(keyTimeout),
			UserAgent: viper.GetString(keyUserAgent),
			AuthToken: secrets.Lookup(loadedSecrets, secrets.GitHubToken, "GITHUB_TOKEN"),
		},
		Attempts:          viper.GetInt(keyAttempts),
		Concurrency:       viper.GetInt(keyConcurrency),
		RequestsPerSecond: viper.GetFloat64(keyRate),
		Verify:            types.VerifyMode(viper.GetString(keyVerify)),
		FailurePolicy:     types.FailurePolicy(viper.GetString(keyFailurePolicy)),
		Ledger:            viper.GetBool(keyLedger),
	}

	if !cfg.Verify.Valid() {
		return cfg, fmt.Errorf("invalid verify mode %q (want exists, size or digest)", cfg.Verify)
	}
	if !cfg.FailurePolicy.Valid() {
		return cfg, fmt.Errorf("invalid failure policy %q (want abort or continue)", cfg.FailurePolicy)
	}
	if cfg.Concurrency < 1 {
		return cfg, fmt.Errorf("concurrency must be at least 1, got %d", cfg.Concurrency)
	}
	if cfg.Attempts < 1 {
		return cfg, fmt.Errorf("attempts must be at least 1, got %d", cfg.Attempts)
	}
	if cfg.Timeout < 0 || cfg.Timeout > 24*time.Hour {
		return cfg, fmt.Errorf("timeout %s out of range", cfg.Timeout)
	}
	return cfg, nil
}
