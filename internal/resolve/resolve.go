// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve selects catalog entries for a request, applying library
// priority and de-duplication. Resolution is pure: it never touches the
// filesystem or the network.
package resolve

import (
	"sort"

	"go.uber.org/zap"

	"github.com/pdiddy/xsfetch/internal/catalog"
	"github.com/pdiddy/xsfetch/pkg/types"
)

// Sentinel key values.
const (
	All    = "all"
	Stable = "stable"
)

// isotopeParticles are the categories accepted by ResolveIsotopes.
var isotopeParticles = []types.Particle{types.ParticleNeutron, types.ParticlePhoton}

// Selection is the outcome of a resolution: at most one entry per
// (key, particle) pair, with pairwise distinct URLs.
type Selection struct {
	Entries []types.Entry `json:"entries" yaml:"entries"`

	// Missing lists explicitly requested keys that matched no entry in any
	// selected library. Sentinel expansions never contribute.
	Missing []string `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// Len returns the number of selected entries.
func (s *Selection) Len() int { return len(s.Entries) }

// Merge returns the union of s and other. Entries keep their order; an
// entry whose URL is already present is dropped.
func (s *Selection) Merge(other *Selection) *Selection {
	out := &Selection{}
	seen := make(map[string]bool)
	for _, sel := range []*Selection{s, other} {
		if sel == nil {
			continue
		}
		for _, e := range sel.Entries {
			if seen[e.URL] {
				continue
			}
			seen[e.URL] = true
			out.Entries = append(out.Entries, e)
		}
		out.Missing = append(out.Missing, sel.Missing...)
	}
	return out
}

// Resolver filters a catalog. It holds no mutable state.
type Resolver struct {
	cat *catalog.Catalog
	log *zap.SugaredLogger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for debug output.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(r *Resolver) { r.log = l }
}

// New returns a Resolver over cat.
func New(cat *catalog.Catalog, opts ...Option) *Resolver {
	r := &Resolver{cat: cat, log: zap.NewNop().Sugar()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Catalog returns the underlying catalog.
func (r *Resolver) Catalog() *catalog.Catalog { return r.cat }

// ResolveIsotopes selects neutron and/or photon entries for the given
// isotopes. Libraries are validated first, then particles; an empty
// isotope list yields an empty selection. Photon data is keyed by element,
// so each isotope also matches its element's photon file.
func (r *Resolver) ResolveIsotopes(libraries, particles, isotopes []string) (*Selection, error) {
	return r.ResolveKeys(libraries, particles, r.ExpandIsotopes(isotopes))
}

// ResolveKeys is ResolveIsotopes over an already expanded key set. Only
// the explicit keys of keys can be reported missing.
func (r *Resolver) ResolveKeys(libraries, particles []string, keys *KeySet) (*Selection, error) {
	ranks, err := r.rankLibraries(libraries)
	if err != nil {
		return nil, err
	}
	wantParticle, err := r.validateParticles(particles)
	if err != nil {
		return nil, err
	}
	if keys.Len() == 0 {
		return &Selection{}, nil
	}

	neutronKeys := make(map[string]bool, keys.Len())
	photonKeys := make(map[string]bool)
	for _, k := range keys.Keys() {
		neutronKeys[k] = true
		photonKeys[catalog.ElementOf(k)] = true
	}

	match := func(e types.Entry) bool {
		if !wantParticle[e.Particle] {
			return false
		}
		switch e.Particle {
		case types.ParticleNeutron:
			return neutronKeys[e.Key]
		case types.ParticlePhoton:
			return photonKeys[e.Key]
		}
		return false
	}

	entries := r.choose(ranks, match)
	sel := &Selection{Entries: entries}
	if explicit := keys.Explicit(); len(explicit) > 0 {
		found := make(map[string]bool)
		for _, e := range entries {
			found[e.Key] = true
		}
		for _, k := range explicit {
			hit := (wantParticle[types.ParticleNeutron] && found[k]) ||
				(wantParticle[types.ParticlePhoton] && found[catalog.ElementOf(k)])
			if !hit {
				sel.Missing = append(sel.Missing, k)
			}
		}
	}

	r.log.Debugw("resolved isotopes",
		"libraries", libraries, "particles", particles,
		"requested", keys.Len(), "selected", len(entries), "missing", len(sel.Missing))
	return sel, nil
}

// ResolveThermal selects thermal scattering entries. Names must be
// recognised thermal scattering names, or the sentinel "all".
func (r *Resolver) ResolveThermal(libraries, names []string) (*Selection, error) {
	ranks, err := r.rankLibraries(libraries)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return &Selection{}, nil
	}

	explicit := !contains(names, All)
	if !explicit {
		names = r.cat.ThermalNames()
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if !r.cat.IsThermalName(n) {
			valid := r.cat.ThermalNames()
			return nil, withOptions(&InvalidThermalScatteringNameError{Value: n, Valid: valid}, "thermal scattering names", valid)
		}
		want[n] = true
	}

	entries := r.choose(ranks, func(e types.Entry) bool {
		return e.Particle == types.ParticleThermal && want[e.Key]
	})
	sel := &Selection{Entries: entries}
	if explicit {
		found := make(map[string]bool)
		for _, e := range entries {
			found[e.Key] = true
		}
		for _, n := range dedupe(names) {
			if !found[n] {
				sel.Missing = append(sel.Missing, n)
			}
		}
	}

	r.log.Debugw("resolved thermal scattering",
		"libraries", libraries, "requested", len(want), "selected", len(entries))
	return sel, nil
}

// choose filters the catalog with match, keeps the highest-priority entry
// per (key, particle) and then the first entry per URL. Winners are
// ordered by priority rank, ties in catalog order.
func (r *Resolver) choose(ranks map[string]int, match func(types.Entry) bool) []types.Entry {
	var candidates []types.Entry
	for _, e := range r.cat.All() {
		if _, ok := ranks[e.Library]; ok && match(e) {
			candidates = append(candidates, e)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return ranks[candidates[i].Library] < ranks[candidates[j].Library]
	})

	groups := make(map[string]bool)
	urls := make(map[string]bool)
	out := make([]types.Entry, 0, len(candidates))
	for _, e := range candidates {
		g := e.GroupKey()
		if groups[g] {
			continue
		}
		groups[g] = true
		if urls[e.URL] {
			continue
		}
		urls[e.URL] = true
		out = append(out, e)
	}
	return out
}

// rankLibraries validates libraries and returns each one's 1-based rank.
func (r *Resolver) rankLibraries(libraries []string) (map[string]int, error) {
	valid := r.cat.Libraries()
	if len(libraries) == 0 {
		return nil, withOptions(&InvalidLibraryError{Valid: valid}, "libraries", valid)
	}
	ranks := make(map[string]int, len(libraries))
	for i, lib := range libraries {
		if !r.cat.HasLibrary(lib) {
			return nil, withOptions(&InvalidLibraryError{Value: lib, Valid: valid}, "libraries", valid)
		}
		if _, dup := ranks[lib]; !dup {
			ranks[lib] = i + 1
		}
	}
	return ranks, nil
}

func (r *Resolver) validateParticles(particles []string) (map[types.Particle]bool, error) {
	valid := make([]string, len(isotopeParticles))
	for i, p := range isotopeParticles {
		valid[i] = string(p)
	}
	if len(particles) == 0 {
		return nil, withOptions(&InvalidParticleCategoryError{Valid: valid}, "particles", valid)
	}
	want := make(map[types.Particle]bool, len(particles))
	for _, p := range particles {
		if !contains(valid, p) {
			return nil, withOptions(&InvalidParticleCategoryError{Value: p, Valid: valid}, "particles", valid)
		}
		want[types.Particle(p)] = true
	}
	return want, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
