// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/xsfetch/internal/catalog"
	"github.com/pdiddy/xsfetch/pkg/types"
)

var listCmd = &cobra.Command{
	Use:       "list {libraries|particles|thermal|elements|isotopes}",
	Short:     "List what the catalog knows about",
	ValidArgs: []string{"libraries", "particles", "thermal", "elements", "isotopes"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE:      runList,
}

func init() {
	listCmd.Flags().String("library", "", "restrict isotopes or thermal tables to one library")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cat, err := catalog.Default()
	if err != nil {
		return err
	}
	lib, _ := cmd.Flags().GetString("library")
	if lib != "" && !cat.HasLibrary(lib) {
		return fmt.Errorf("unknown library %q, options are %s", lib, strings.Join(cat.Libraries(), ", "))
	}
	return listCatalog(os.Stdout, cat, args[0], lib)
}

func listCatalog(w io.Writer, cat *catalog.Catalog, what, lib string) error {
	switch what {
	case "libraries":
		for _, l := range cat.Libraries() {
			fmt.Fprintf(w, "%-16s  %d files\n", l, len(cat.LibraryEntries(l)))
		}
	case "particles":
		for _, p := range cat.Particles() {
			fmt.Fprintln(w, p)
		}
	case "thermal":
		printKeys(w, keysFor(cat, types.ParticleThermal, lib, cat.ThermalNames()))
	case "isotopes":
		printKeys(w, keysFor(cat, types.ParticleNeutron, lib, cat.Isotopes()))
	case "elements":
		for _, el := range cat.AbundanceElements() {
			iso, _ := cat.Abundance(el)
			fmt.Fprintf(w, "%-3s  %s\n", el, strings.Join(iso, " "))
		}
	default:
		return fmt.Errorf("unknown listing %q", what)
	}
	return nil
}

// keysFor returns the keys lib publishes for p, or all when lib is empty.
func keysFor(cat *catalog.Catalog, p types.Particle, lib string, all []string) []string {
	if lib == "" {
		return all
	}
	var out []string
	for _, e := range cat.LibraryEntries(lib) {
		if e.Particle == p {
			out = append(out, e.Key)
		}
	}
	return out
}

func printKeys(w io.Writer, keys []string) {
	for _, k := range keys {
		fmt.Fprintln(w, k)
	}
}
