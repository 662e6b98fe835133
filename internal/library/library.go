// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package library builds a custom cross-section library: it expands the
// request, resolves it against the catalog, fetches the files and writes
// the cross_sections.xml manifest.
package library

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/pdiddy/xsfetch/internal/fetch"
	"github.com/pdiddy/xsfetch/internal/manifest"
	"github.com/pdiddy/xsfetch/internal/materials"
	"github.com/pdiddy/xsfetch/internal/resolve"
	"github.com/pdiddy/xsfetch/pkg/types"
)

// Plan is a resolved request before anything is downloaded.
type Plan struct {
	Selection *resolve.Selection

	// Isotopes and ThermalNames are the merged keys that were resolved.
	Isotopes     []string
	ThermalNames []string

	// UnknownElements lists requested element symbols with no abundance data.
	UnknownElements []string
}

// Result is the outcome of Generate.
type Result struct {
	Plan
	ManifestPath string
	Fetch        *fetch.Result
}

// Generator wires the resolver and fetcher together.
type Generator struct {
	resolver *resolve.Resolver
	fetcher  *fetch.Fetcher
	log      *zap.SugaredLogger
}

// New returns a Generator.
func New(r *resolve.Resolver, f *fetch.Fetcher, log *zap.SugaredLogger) *Generator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Generator{resolver: r, fetcher: f, log: log}
}

// Plan expands and resolves req without touching the network. Library
// names are validated before any material file is read.
func (g *Generator) Plan(req types.LibraryRequest) (*Plan, error) {
	if _, err := g.resolver.ResolveThermal(req.Libraries, nil); err != nil {
		return nil, err
	}

	isotopes := g.resolver.ExpandIsotopes(req.Isotopes)
	fromElements, unknown := g.resolver.ExpandElements(req.Elements)
	if len(unknown) > 0 {
		g.log.Warnw("elements without natural abundance data were ignored", "elements", unknown)
	}
	isotopes.Union(fromElements)

	mats, err := materials.LoadFiles(req.MaterialFiles)
	if err != nil {
		return nil, err
	}
	fromMaterials, err := materials.Isotopes(mats, g.resolver.Catalog())
	if err != nil {
		return nil, err
	}
	isotopes.Add(true, fromMaterials...)

	plan := &Plan{
		Isotopes:        isotopes.Keys(),
		ThermalNames:    resolve.Union(req.ThermalNames, materials.ThermalNames(mats)),
		UnknownElements: unknown,
		Selection:       &resolve.Selection{},
	}

	if isotopes.Len() > 0 {
		sel, err := g.resolver.ResolveKeys(req.Libraries, req.Particles, isotopes)
		if err != nil {
			return nil, err
		}
		plan.Selection = plan.Selection.Merge(sel)
	}
	sel, err := g.resolver.ResolveThermal(req.Libraries, plan.ThermalNames)
	if err != nil {
		return nil, err
	}
	plan.Selection = plan.Selection.Merge(sel)

	if len(plan.Selection.Missing) > 0 {
		g.log.Warnw("requested keys not published by any selected library",
			"libraries", req.Libraries, "missing", plan.Selection.Missing)
	}
	return plan, nil
}

// Generate plans req and runs the plan.
func (g *Generator) Generate(ctx context.Context, req types.LibraryRequest) (*Result, error) {
	plan, err := g.Plan(req)
	if err != nil {
		return nil, err
	}
	return g.Run(ctx, plan, req)
}

// Run fetches the plan's selection into req.Destination and writes
// cross_sections.xml there. When the fetcher continues past failures the
// manifest lists the files that are present and the joined failures are
// returned alongside the result.
func (g *Generator) Run(ctx context.Context, plan *Plan, req types.LibraryRequest) (*Result, error) {
	res := &Result{Plan: *plan}
	if plan.Selection.Len() == 0 {
		g.log.Warnw("no cross-section files matched the request; writing an empty library",
			"libraries", req.Libraries)
	}

	fres, fetchErr := g.fetcher.FetchAll(ctx, plan.Selection.Entries, req.Destination, req.Overwrite)
	res.Fetch = fres
	if fetchErr != nil && (g.fetcher.Config().FailurePolicy == types.FailAbort || ctx.Err() != nil) {
		return res, fetchErr
	}

	var entries []types.Entry
	var paths []string
	for _, it := range fres.Items {
		if it.Outcome == fetch.OutcomeDownloaded || it.Outcome == fetch.OutcomeSkipped {
			entries = append(entries, it.Entry)
			paths = append(paths, it.Path)
		}
	}
	files, err := manifest.FromEntries(entries, paths)
	if err != nil {
		return res, err
	}

	dest := req.Destination
	if dest == "" {
		dest = "."
	}
	res.ManifestPath = filepath.Join(dest, manifest.FileName)
	if err := manifest.Write(res.ManifestPath, files); err != nil {
		return res, fmt.Errorf("writing %s: %w", res.ManifestPath, err)
	}
	g.log.Infow("wrote manifest", "path", res.ManifestPath, "files", len(files))

	if req.SetEnv {
		abs, err := manifest.Register(res.ManifestPath)
		if err != nil {
			return res, err
		}
		res.ManifestPath = abs
	}
	return res, fetchErr
}
