// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/xsfetch/internal/catalog"
	"github.com/pdiddy/xsfetch/internal/library"
	"github.com/pdiddy/xsfetch/internal/resolve"
	"github.com/pdiddy/xsfetch/pkg/types"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Show which files a download would fetch",
	Long: `Resolve applies the same selection as download without touching the
network: it prints the chosen file for each isotope, element and thermal
scattering table, and which library provides it.`,
	RunE: runResolve,
}

func init() {
	addSelectionFlags(resolveCmd)
	resolveCmd.Flags().Bool("json", false, "output as JSON")
	resolveCmd.Flags().Bool("yaml", false, "output as YAML")
	resolveCmd.MarkFlagsMutuallyExclusive("json", "yaml")

	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	cat, err := catalog.Default()
	if err != nil {
		return err
	}
	gen := library.New(resolve.New(cat, resolve.WithLogger(log)), nil, log)

	plan, err := gen.Plan(requestFromFlags(cmd))
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	yamlOutput, _ := cmd.Flags().GetBool("yaml")
	switch {
	case jsonOutput:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(plan.Selection)
	case yamlOutput:
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(plan.Selection)
	}

	formatSelection(os.Stdout, plan.Selection.Entries)
	reportMissing(*plan)
	return nil
}

func formatSelection(w io.Writer, entries []types.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No files selected.")
		return
	}

	fmt.Fprintf(w, "%-20s  %-8s  %-16s  %s\n", "Key", "Type", "Library", "URL")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, e := range entries {
		fmt.Fprintf(w, "%-20s  %-8s  %-16s  %s\n", e.Key, e.NodeType, e.Library, e.URL)
	}
	fmt.Fprintf(w, "\n%d file(s)\n", len(entries))
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
