// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/xsfetch/internal/catalog"
	"github.com/pdiddy/xsfetch/internal/fetch"
	"github.com/pdiddy/xsfetch/internal/library"
	"github.com/pdiddy/xsfetch/internal/manifest"
	"github.com/pdiddy/xsfetch/internal/resolve"
	"github.com/pdiddy/xsfetch/pkg/types"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download cross-section files and write cross_sections.xml",
	Long: `Download selects files from the catalog, fetches them into the
destination directory, and writes a cross_sections.xml listing them.
Files already present are skipped unless --overwrite is given.

Examples:
  xsfetch download -l TENDL-2019 -i Li6 Li7 -d my_library
  xsfetch download -l ENDFB-7.1-NNDC TENDL-2019 -e Fe -p neutron photon
  xsfetch download -l ENDFB-7.1-NNDC -m materials.xml -s all`,
	RunE: runDownload,
}

func init() {
	addSelectionFlags(downloadCmd)
	f := downloadCmd.Flags()
	f.StringP("destination", "d", "", "directory for the library (default: current directory)")
	f.Bool("overwrite", false, "download files even when they already exist")
	f.Bool("no-overwrite", false, "keep existing files (default)")
	f.Int("concurrency", 0, "number of simultaneous downloads (default 1)")
	f.Int("attempts", 0, "attempts per file before giving up (default 3)")
	f.Float64("rate", 0, "maximum requests per second (0 = unlimited)")
	f.Duration("timeout", 0, "timeout for a single download attempt (default 10m)")
	f.String("verify", "", "skip check for existing files: exists, size or digest (default exists)")
	f.Bool("continue-on-error", false, "attempt every file and report all failures at the end")
	f.Bool("no-ledger", false, "do not record downloads in the destination ledger")
	f.Bool("progress", false, "show a progress bar instead of per-file lines")
	downloadCmd.MarkFlagsMutuallyExclusive("overwrite", "no-overwrite")

	for key, flag := range map[string]string{
		keyConcurrency: "concurrency",
		keyAttempts:    "attempts",
		keyRate:        "rate",
		keyTimeout:     "timeout",
		keyVerify:      "verify",
	} {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments %v: use -i, -e, -s or -m to select files", args)
	}
	req := requestFromFlags(cmd)
	req.Destination, _ = cmd.Flags().GetString("destination")
	req.Overwrite, _ = cmd.Flags().GetBool("overwrite")

	cfg, err := fetchConfig()
	if err != nil {
		return err
	}
	if cont, _ := cmd.Flags().GetBool("continue-on-error"); cont {
		cfg.FailurePolicy = types.FailContinue
	}
	if noLedger, _ := cmd.Flags().GetBool("no-ledger"); noLedger {
		cfg.Ledger = false
	}

	cat, err := catalog.Default()
	if err != nil {
		return err
	}
	resolver := resolve.New(cat, resolve.WithLogger(log))

	var out io.Writer = os.Stdout
	var bar *pterm.ProgressbarPrinter
	showProgress, _ := cmd.Flags().GetBool("progress")
	if showProgress {
		out = io.Discard
	}
	fetcher := fetch.New(cfg,
		fetch.WithLogger(log),
		fetch.WithOutput(out),
		fetch.WithObserver(func(it fetch.Item) {
			if bar != nil {
				bar.UpdateTitle(it.Entry.LocalFile)
				bar.Increment()
			}
		}),
	)
	gen := library.New(resolver, fetcher, log)

	plan, err := gen.Plan(req)
	if err != nil {
		return err
	}
	if showProgress && plan.Selection.Len() > 0 {
		bar, err = pterm.DefaultProgressbar.WithTotal(plan.Selection.Len()).WithTitle("Downloading").Start()
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := gen.Run(ctx, plan, req)
	if bar != nil {
		_, _ = bar.Stop()
	}
	if res != nil {
		reportMissing(res.Plan)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Wrote %s (%d files)\n", res.ManifestPath, res.Fetch.Downloaded+res.Fetch.Skipped)
	fmt.Println("Set OPENMC_CROSS_SECTIONS to use this library:")
	fmt.Println("  " + manifest.ExportLine(absPath(res.ManifestPath)))
	return nil
}

func reportMissing(plan library.Plan) {
	if len(plan.UnknownElements) > 0 {
		pterm.Warning.Printfln("no natural abundance data for: %s", strings.Join(plan.UnknownElements, ", "))
	}
	if plan.Selection != nil && len(plan.Selection.Missing) > 0 {
		pterm.Warning.Printfln("not published by the selected libraries: %s", strings.Join(plan.Selection.Missing, ", "))
	}
}
