// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/xsfetch/internal/catalog"
	"github.com/pdiddy/xsfetch/pkg/types"
)

const testCatalog = `
libraries:
  - name: LIB_X
    base_url: https://example.com/x/
    tables:
      - particle: neutron
        keys: [Be9, Fe56, Li6]
      - particle: thermal
        path: "sab/"
        keys: [c_Be_in_BeO]
  - name: LIB_Y
    base_url: https://example.com/y/
    tables:
      - particle: neutron
        path: "neutron/"
        keys: [Fe56, Li7, U235]
      - particle: photon
        path: "photon/"
        keys: ["He", "Fe", "Li"]
      - particle: thermal
        path: "neutron/"
        keys: [c_Be_in_BeO, c_H_in_H2O]
thermal_names: [c_Be_in_BeO, c_H_in_H2O, c_Graphite]
natural_abundance:
  "He": [He3, He4]
  "Li": [Li6, Li7]
  "Be": [Be9]
  "Fe": [Fe54, Fe56]
  "U": []
`

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	c, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)
	return New(c)
}

func keysOf(sel *Selection) []string {
	var out []string
	for _, e := range sel.Entries {
		out = append(out, e.Key)
	}
	return out
}

func TestResolveIsotopeInSingleLibrary(t *testing.T) {
	r := newTestResolver(t)
	sel, err := r.ResolveIsotopes([]string{"LIB_X"}, []string{"neutron"}, []string{"Be9"})
	require.NoError(t, err)
	require.Len(t, sel.Entries, 1)
	assert.Equal(t, "Be9", sel.Entries[0].Key)
	assert.Equal(t, "LIB_X", sel.Entries[0].Library)
	assert.Empty(t, sel.Missing)
}

func TestResolveFirstListedLibraryWins(t *testing.T) {
	r := newTestResolver(t)

	sel, err := r.ResolveIsotopes([]string{"LIB_X", "LIB_Y"}, []string{"neutron"}, []string{"Fe56"})
	require.NoError(t, err)
	require.Len(t, sel.Entries, 1)
	assert.Equal(t, "LIB_X", sel.Entries[0].Library)

	sel, err = r.ResolveIsotopes([]string{"LIB_Y", "LIB_X"}, []string{"neutron"}, []string{"Fe56"})
	require.NoError(t, err)
	require.Len(t, sel.Entries, 1)
	assert.Equal(t, "LIB_Y", sel.Entries[0].Library)
}

func TestResolveFallsBackToLowerPriority(t *testing.T) {
	r := newTestResolver(t)
	sel, err := r.ResolveIsotopes([]string{"LIB_X", "LIB_Y"}, []string{"neutron"}, []string{"Li6", "Li7", "U235"})
	require.NoError(t, err)

	libs := make(map[string]string)
	for _, e := range sel.Entries {
		libs[e.Key] = e.Library
	}
	assert.Equal(t, map[string]string{"Li6": "LIB_X", "Li7": "LIB_Y", "U235": "LIB_Y"}, libs)
	assert.Equal(t, "LIB_X", sel.Entries[0].Library, "winners are ordered by priority")
}

func TestResolvePhotonIsKeyedByElement(t *testing.T) {
	r := newTestResolver(t)
	sel, err := r.ResolveIsotopes([]string{"LIB_Y"}, []string{"photon"}, []string{"He4"})
	require.NoError(t, err)
	require.Len(t, sel.Entries, 1)
	assert.Equal(t, "He", sel.Entries[0].Key)
	assert.Equal(t, types.ParticlePhoton, sel.Entries[0].Particle)
}

func TestResolvePhotonIsotopesShareOneEntry(t *testing.T) {
	r := newTestResolver(t)
	sel, err := r.ResolveIsotopes([]string{"LIB_Y"}, []string{"neutron", "photon"}, []string{"Li6", "Li7"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Li7", "Li"}, keysOf(sel))
	assert.Empty(t, sel.Missing, "Li6 is satisfied by the Li photon file")
}

func TestResolveEmptyLibrariesFailsFirst(t *testing.T) {
	r := newTestResolver(t)
	_, err := r.ResolveIsotopes(nil, []string{"bogus"}, nil)
	require.Error(t, err)

	var libErr *InvalidLibraryError
	require.ErrorAs(t, err, &libErr)
	assert.Empty(t, libErr.Value)
	assert.ErrorIs(t, err, ErrInvalidLibrary)
	assert.Contains(t, err.Error(), "LIB_X, LIB_Y")
}

func TestResolveUnknownLibrary(t *testing.T) {
	r := newTestResolver(t)
	_, err := r.ResolveIsotopes([]string{"LIB_X", "coucou"}, []string{"neutron"}, []string{"Be9"})

	var libErr *InvalidLibraryError
	require.ErrorAs(t, err, &libErr)
	assert.Equal(t, "coucou", libErr.Value)
	assert.Equal(t, []string{"LIB_X", "LIB_Y"}, libErr.Valid)
	assert.Contains(t, errors.FlattenHints(err), "valid libraries: LIB_X LIB_Y")
}

func TestResolveInvalidParticles(t *testing.T) {
	r := newTestResolver(t)
	tests := []struct {
		name      string
		particles []string
		value     string
	}{
		{"empty", nil, ""},
		{"unknown", []string{"proton"}, "proton"},
		{"thermal is not an isotope category", []string{"neutron", "thermal"}, "thermal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.ResolveIsotopes([]string{"LIB_X"}, tt.particles, []string{"Be9"})
			var pErr *InvalidParticleCategoryError
			require.ErrorAs(t, err, &pErr)
			assert.Equal(t, tt.value, pErr.Value)
			assert.ErrorIs(t, err, ErrInvalidParticle)
		})
	}
}

func TestResolveEmptyIsotopesIsNotAnError(t *testing.T) {
	r := newTestResolver(t)
	sel, err := r.ResolveIsotopes([]string{"LIB_X"}, []string{"neutron"}, nil)
	require.NoError(t, err)
	assert.Zero(t, sel.Len())
}

func TestResolveMissingKeys(t *testing.T) {
	r := newTestResolver(t)
	sel, err := r.ResolveIsotopes([]string{"LIB_X"}, []string{"neutron"}, []string{"Be9", "Xx999", "Be9"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Be9"}, keysOf(sel))
	assert.Equal(t, []string{"Xx999"}, sel.Missing)
}

func TestResolveSentinels(t *testing.T) {
	r := newTestResolver(t)
	libs := []string{"LIB_X", "LIB_Y"}

	all, err := r.ResolveIsotopes(libs, []string{"neutron"}, []string{All})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Be9", "Fe56", "Li6", "Li7", "U235"}, keysOf(all))
	assert.Empty(t, all.Missing)

	stable, err := r.ResolveIsotopes(libs, []string{"neutron"}, []string{Stable})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Be9", "Fe56", "Li6", "Li7"}, keysOf(stable))
	assert.Empty(t, stable.Missing, "sentinel expansions never report missing keys")

	allURLs := make(map[string]bool)
	for _, e := range all.Entries {
		allURLs[e.URL] = true
	}
	for _, e := range stable.Entries {
		assert.True(t, allURLs[e.URL], "stable entry %s not in all", e.Key)
	}

	mixed, err := r.ResolveIsotopes(libs, []string{"neutron"}, []string{"Be9", All})
	require.NoError(t, err)
	assert.Equal(t, all.Len(), mixed.Len())
}

func TestResolveUniqueness(t *testing.T) {
	r := New(catalog.MustDefault())
	c := r.Catalog()
	sel, err := r.ResolveIsotopes(c.Libraries(), []string{"neutron", "photon"}, []string{All})
	require.NoError(t, err)
	require.NotZero(t, sel.Len())

	groups := make(map[string]bool)
	urls := make(map[string]bool)
	for _, e := range sel.Entries {
		assert.False(t, groups[e.GroupKey()], "duplicate group %s", e.GroupKey())
		assert.False(t, urls[e.URL], "duplicate URL %s", e.URL)
		groups[e.GroupKey()] = true
		urls[e.URL] = true
	}
}

func TestResolveDefaultCatalogPriority(t *testing.T) {
	r := New(catalog.MustDefault())
	sel, err := r.ResolveIsotopes([]string{"TENDL-2019", "ENDFB-7.1-NNDC"}, []string{"neutron"}, []string{"Be9", "Fe56"})
	require.NoError(t, err)
	require.Len(t, sel.Entries, 2)
	for _, e := range sel.Entries {
		assert.Equal(t, "TENDL-2019", e.Library)
	}
}

func TestResolveThermal(t *testing.T) {
	r := newTestResolver(t)

	sel, err := r.ResolveThermal([]string{"LIB_Y", "LIB_X"}, []string{"c_Be_in_BeO"})
	require.NoError(t, err)
	require.Len(t, sel.Entries, 1)
	assert.Equal(t, "LIB_Y", sel.Entries[0].Library)

	sel, err = r.ResolveThermal([]string{"LIB_X"}, []string{"c_Graphite"})
	require.NoError(t, err)
	assert.Zero(t, sel.Len())
	assert.Equal(t, []string{"c_Graphite"}, sel.Missing)

	sel, err = r.ResolveThermal([]string{"LIB_X", "LIB_Y"}, []string{All})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c_Be_in_BeO", "c_H_in_H2O"}, keysOf(sel))
	assert.Empty(t, sel.Missing)
}

func TestResolveThermalInvalidName(t *testing.T) {
	r := newTestResolver(t)
	_, err := r.ResolveThermal([]string{"LIB_X"}, []string{"c_Unobtainium"})

	var nErr *InvalidThermalScatteringNameError
	require.ErrorAs(t, err, &nErr)
	assert.Equal(t, "c_Unobtainium", nErr.Value)
	assert.ErrorIs(t, err, ErrInvalidThermalName)

	_, err = r.ResolveThermal(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidLibrary)
}

func TestExpandElements(t *testing.T) {
	r := newTestResolver(t)

	iso, unknown := r.ExpandElements([]string{"Li", "Fe", "Li", "Zz"})
	assert.Equal(t, []string{"Li6", "Li7", "Fe54", "Fe56"}, iso.Keys())
	assert.Equal(t, iso.Keys(), iso.Explicit())
	assert.Equal(t, []string{"Zz"}, unknown)

	iso, unknown = r.ExpandElements([]string{"U"})
	assert.Zero(t, iso.Len())
	assert.Empty(t, unknown)

	iso, _ = r.ExpandElements([]string{Stable})
	assert.Equal(t, []string{"He3", "He4", "Li6", "Li7", "Be9", "Fe54", "Fe56"}, iso.Keys())
	assert.Empty(t, iso.Explicit())

	iso, _ = r.ExpandElements([]string{Stable, "Fe"})
	assert.Equal(t, []string{"He3", "He4", "Li6", "Li7", "Be9", "Fe54", "Fe56"}, iso.Keys())
	assert.Equal(t, []string{"Fe54", "Fe56"}, iso.Explicit())

	iso, _ = r.ExpandElements(nil)
	assert.Zero(t, iso.Len())
}

func TestElementSentinelsDoNotReportMissing(t *testing.T) {
	r := newTestResolver(t)

	for _, sentinel := range []string{All, Stable} {
		iso, _ := r.ExpandElements([]string{sentinel})
		sel, err := r.ResolveKeys([]string{"LIB_X"}, []string{"neutron"}, iso)
		require.NoError(t, err)
		assert.NotZero(t, sel.Len(), sentinel)
		assert.Empty(t, sel.Missing, sentinel)
	}

	iso, _ := r.ExpandElements([]string{"Li"})
	sel, err := r.ResolveKeys([]string{"LIB_X"}, []string{"neutron"}, iso)
	require.NoError(t, err)
	assert.Equal(t, []string{"Li7"}, sel.Missing)
}

func TestExpandIsotopesMixedList(t *testing.T) {
	r := newTestResolver(t)

	set := r.ExpandIsotopes([]string{Stable, "U235", "Pu239"})
	assert.Contains(t, set.Keys(), "Be9")
	assert.Contains(t, set.Keys(), "U235")
	assert.Contains(t, set.Keys(), "Pu239")
	assert.Equal(t, []string{"U235", "Pu239"}, set.Explicit())

	sel, err := r.ResolveKeys([]string{"LIB_X", "LIB_Y"}, []string{"neutron"}, set)
	require.NoError(t, err)
	assert.Contains(t, keysOf(sel), "U235")
	assert.Equal(t, []string{"Pu239"}, sel.Missing)
}

func TestKeySet(t *testing.T) {
	var a KeySet
	a.Add(false, "Be9", "Li6")
	a.Add(true, "Li6", "Fe56")

	b := &KeySet{}
	b.Add(true, "Be9")
	b.Add(false, "U235")
	a.Union(b)
	a.Union(nil)

	assert.Equal(t, []string{"Be9", "Li6", "Fe56", "U235"}, a.Keys())
	assert.Equal(t, []string{"Be9", "Li6", "Fe56"}, a.Explicit())
	assert.Equal(t, 4, a.Len())

	var empty *KeySet
	assert.Zero(t, empty.Len())
	assert.Nil(t, empty.Keys())
}

func TestSelectionMerge(t *testing.T) {
	r := newTestResolver(t)
	a, err := r.ResolveIsotopes([]string{"LIB_X"}, []string{"neutron"}, []string{"Be9", "Fe56"})
	require.NoError(t, err)
	b, err := r.ResolveThermal([]string{"LIB_X"}, []string{"c_Be_in_BeO"})
	require.NoError(t, err)

	m := a.Merge(b).Merge(a)
	assert.Equal(t, []string{"Be9", "Fe56", "c_Be_in_BeO"}, keysOf(m))
}

func TestUnion(t *testing.T) {
	assert.Equal(t, []string{"Fe56", "Li6", "Li7"}, Union([]string{"Fe56", "Li6"}, []string{"Li6", "Li7"}, nil))
}
