//go:build mage

package main

import (
	"fmt"

	"github.com/pdiddy/xsfetch/internal/catalog"
	"github.com/pdiddy/xsfetch/pkg/types"
)

// Catalog validates the embedded catalog and prints a per-library summary.
func Catalog() error {
	cat, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("embedded catalog: %w", err)
	}

	fmt.Printf("%-16s  %8s  %8s  %8s\n", "Library", "neutron", "photon", "thermal")
	for _, lib := range cat.Libraries() {
		counts := make(map[types.Particle]int)
		for _, e := range cat.LibraryEntries(lib) {
			counts[e.Particle]++
		}
		fmt.Printf("%-16s  %8d  %8d  %8d\n", lib,
			counts[types.ParticleNeutron], counts[types.ParticlePhoton], counts[types.ParticleThermal])
	}
	fmt.Printf("\n%d entries, %d isotopes, %d stable isotopes, %d thermal names\n",
		cat.Len(), len(cat.Isotopes()), len(cat.StableIsotopes()), len(cat.ThermalNames()))
	return nil
}
