// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/xsfetch/internal/catalog"
	"github.com/pdiddy/xsfetch/internal/fetch"
	"github.com/pdiddy/xsfetch/internal/httputil"
	"github.com/pdiddy/xsfetch/internal/manifest"
	"github.com/pdiddy/xsfetch/internal/resolve"
	"github.com/pdiddy/xsfetch/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = 1 * time.Millisecond
}

const catalogTemplate = `
libraries:
  - name: LIB_X
    base_url: %[1]s/x/
    tables:
      - particle: neutron
        keys: [Be9, Li6, Li7]
  - name: LIB_Y
    base_url: %[1]s/y/
    tables:
      - particle: neutron
        path: "neutron/"
        keys: [Li6, O16, Pu239]
      - particle: photon
        path: "photon/"
        keys: ["Li", "Be"]
      - particle: thermal
        path: "neutron/"
        keys: [c_H_in_H2O]
thermal_names: [c_H_in_H2O, c_Graphite]
natural_abundance:
  "Li": [Li6, Li7]
  "Be": [Be9]
  "O": [O16, O17]
`

type harness struct {
	gen      *Generator
	requests *atomic.Int32
	missing  map[string]bool
}

// newHarness serves every catalog URL except the missing paths, which
// answer 404.
func newHarness(t *testing.T, cfg types.FetchConfig, missing ...string) *harness {
	t.Helper()
	h := &harness{requests: &atomic.Int32{}, missing: map[string]bool{}}
	for _, p := range missing {
		h.missing[p] = true
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.requests.Add(1)
		if h.missing[r.URL.Path] {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "hdf5:%s", r.URL.Path)
	}))
	t.Cleanup(srv.Close)

	cat, err := catalog.Parse([]byte(fmt.Sprintf(catalogTemplate, srv.URL)))
	require.NoError(t, err)
	h.gen = New(resolve.New(cat), fetch.New(cfg), nil)
	return h
}

func testConfig() types.FetchConfig {
	cfg := fetch.DefaultConfig()
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestGenerateEndToEnd(t *testing.T) {
	h := newHarness(t, testConfig())
	dest := filepath.Join(t.TempDir(), "lib")

	res, err := h.gen.Generate(context.Background(), types.LibraryRequest{
		Libraries:    []string{"LIB_X", "LIB_Y"},
		Elements:     []string{"Li"},
		Isotopes:     []string{"O16"},
		ThermalNames: []string{"c_H_in_H2O"},
		Particles:    []string{"neutron", "photon"},
		Destination:  dest,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, manifest.FileName), res.ManifestPath)
	assert.Equal(t, 5, res.Fetch.Downloaded)
	assert.Equal(t, int32(5), h.requests.Load())

	files, err := manifest.Read(res.ManifestPath)
	require.NoError(t, err)
	var got []string
	for _, f := range files {
		got = append(got, f.Type+"/"+f.Materials+"@"+f.Library)
		assert.FileExists(t, f.Path)
	}
	assert.Equal(t, []string{
		"neutron/Li6@LIB_X",
		"neutron/Li7@LIB_X",
		"neutron/O16@LIB_Y",
		"photon/Li@LIB_Y",
		"thermal/c_H_in_H2O@LIB_Y",
	}, got)

	again, err := h.gen.Generate(context.Background(), types.LibraryRequest{
		Libraries:    []string{"LIB_X", "LIB_Y"},
		Elements:     []string{"Li"},
		Isotopes:     []string{"O16"},
		ThermalNames: []string{"c_H_in_H2O"},
		Particles:    []string{"neutron", "photon"},
		Destination:  dest,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, again.Fetch.Skipped)
	assert.Equal(t, int32(5), h.requests.Load(), "rebuild must not download again")
}

func TestGenerateValidatesBeforeIO(t *testing.T) {
	h := newHarness(t, testConfig())
	dest := filepath.Join(t.TempDir(), "lib")

	_, err := h.gen.Generate(context.Background(), types.LibraryRequest{
		Libraries:     []string{"LIB_Z"},
		MaterialFiles: []string{"does-not-exist.xml"},
		Isotopes:      []string{"Be9"},
		Particles:     []string{"neutron"},
		Destination:   dest,
	})
	assert.ErrorIs(t, err, resolve.ErrInvalidLibrary)
	assert.NoDirExists(t, dest)
	assert.Zero(t, h.requests.Load())

	_, err = h.gen.Generate(context.Background(), types.LibraryRequest{
		Libraries:   []string{"LIB_X"},
		Isotopes:    []string{"Be9"},
		Particles:   []string{"gamma"},
		Destination: dest,
	})
	assert.ErrorIs(t, err, resolve.ErrInvalidParticle)
	assert.NoDirExists(t, dest)
}

func TestGenerateFromMaterialsFile(t *testing.T) {
	h := newHarness(t, testConfig())
	dir := t.TempDir()
	matPath := filepath.Join(dir, "materials.xml")
	require.NoError(t, os.WriteFile(matPath, []byte(`<materials>
  <material id="1"><element name="Be"/><sab name="c_H_in_H2O"/></material>
</materials>`), 0o644))

	plan, err := h.gen.Plan(types.LibraryRequest{
		Libraries:     []string{"LIB_Y", "LIB_X"},
		MaterialFiles: []string{matPath},
		Particles:     []string{"neutron"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Be9"}, plan.Isotopes)
	assert.Equal(t, []string{"c_H_in_H2O"}, plan.ThermalNames)

	var keys []string
	for _, e := range plan.Selection.Entries {
		keys = append(keys, e.Library+":"+e.Key)
	}
	assert.Equal(t, []string{"LIB_X:Be9", "LIB_Y:c_H_in_H2O"}, keys)
}

func TestPlanKeepsMaterialIsotopesNextToSentinel(t *testing.T) {
	h := newHarness(t, testConfig())
	matPath := filepath.Join(t.TempDir(), "fuel.xml")
	require.NoError(t, os.WriteFile(matPath, []byte(`<materials>
  <material id="1"><nuclide name="Pu239"/><nuclide name="U238"/></material>
</materials>`), 0o644))

	plan, err := h.gen.Plan(types.LibraryRequest{
		Libraries:     []string{"LIB_X", "LIB_Y"},
		Isotopes:      []string{"stable"},
		MaterialFiles: []string{matPath},
		Particles:     []string{"neutron"},
	})
	require.NoError(t, err)
	assert.Contains(t, plan.Isotopes, "Pu239")
	assert.Contains(t, plan.Isotopes, "Be9")

	var keys []string
	for _, e := range plan.Selection.Entries {
		keys = append(keys, e.Library+":"+e.Key)
	}
	assert.Contains(t, keys, "LIB_Y:Pu239")
	assert.Contains(t, keys, "LIB_X:Be9")
	assert.Equal(t, []string{"U238"}, plan.Selection.Missing, "only explicitly requested keys are missing")
}

func TestPlanElementSentinelsReportNothingMissing(t *testing.T) {
	h := newHarness(t, testConfig())

	for _, sentinel := range []string{"all", "stable"} {
		plan, err := h.gen.Plan(types.LibraryRequest{
			Libraries: []string{"LIB_X"},
			Elements:  []string{sentinel},
			Particles: []string{"neutron"},
		})
		require.NoError(t, err)
		assert.NotZero(t, plan.Selection.Len(), sentinel)
		assert.Empty(t, plan.Selection.Missing, sentinel)
	}
}

func TestRunUsesPlanWithoutReplanning(t *testing.T) {
	h := newHarness(t, testConfig())
	dir := t.TempDir()
	matPath := filepath.Join(dir, "materials.yaml")
	require.NoError(t, os.WriteFile(matPath, []byte("materials:\n  - name: moderator\n    nuclides: [Be9]\n"), 0o644))

	req := types.LibraryRequest{
		Libraries:     []string{"LIB_X"},
		MaterialFiles: []string{matPath},
		Particles:     []string{"neutron"},
		Destination:   filepath.Join(dir, "lib"),
	}
	plan, err := h.gen.Plan(req)
	require.NoError(t, err)
	require.NoError(t, os.Remove(matPath))

	res, err := h.gen.Run(context.Background(), plan, req)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fetch.Downloaded)
	assert.Equal(t, plan.Isotopes, res.Isotopes)
	assert.FileExists(t, res.ManifestPath)
}

func TestGenerateEmptySelectionWritesEmptyManifest(t *testing.T) {
	h := newHarness(t, testConfig())
	dest := t.TempDir()

	res, err := h.gen.Generate(context.Background(), types.LibraryRequest{
		Libraries:   []string{"LIB_X"},
		Particles:   []string{"neutron"},
		Destination: dest,
	})
	require.NoError(t, err)
	assert.Zero(t, res.Selection.Len())
	files, err := manifest.Read(res.ManifestPath)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestGenerateReportsMissingAndUnknown(t *testing.T) {
	h := newHarness(t, testConfig())

	plan, err := h.gen.Plan(types.LibraryRequest{
		Libraries:    []string{"LIB_X"},
		Isotopes:     []string{"U235"},
		Elements:     []string{"Zz"},
		ThermalNames: []string{"c_Graphite"},
		Particles:    []string{"neutron"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Zz"}, plan.UnknownElements)
	assert.Equal(t, []string{"U235", "c_Graphite"}, plan.Selection.Missing)
}

func TestGenerateContinuePolicyWritesPartialManifest(t *testing.T) {
	cfg := testConfig()
	cfg.FailurePolicy = types.FailContinue
	h := newHarness(t, cfg, "/x/Li7.h5")
	dest := t.TempDir()

	res, err := h.gen.Generate(context.Background(), types.LibraryRequest{
		Libraries:   []string{"LIB_X"},
		Isotopes:    []string{"Li6", "Li7"},
		Particles:   []string{"neutron"},
		Destination: dest,
	})
	require.ErrorIs(t, err, fetch.ErrDownloadFailed)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Fetch.Failed)

	files, err := manifest.Read(res.ManifestPath)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "Li6", files[0].Materials)
}

func TestGenerateAbortPolicySkipsManifest(t *testing.T) {
	h := newHarness(t, testConfig(), "/x/Li6.h5")
	dest := t.TempDir()

	res, err := h.gen.Generate(context.Background(), types.LibraryRequest{
		Libraries:   []string{"LIB_X"},
		Isotopes:    []string{"Li6", "Li7"},
		Particles:   []string{"neutron"},
		Destination: dest,
	})
	require.ErrorIs(t, err, fetch.ErrDownloadFailed)
	assert.Empty(t, res.ManifestPath)
	assert.NoFileExists(t, filepath.Join(dest, manifest.FileName))
}

func TestGenerateSetEnv(t *testing.T) {
	h := newHarness(t, testConfig())
	t.Setenv(manifest.EnvVar, "")

	res, err := h.gen.Generate(context.Background(), types.LibraryRequest{
		Libraries:   []string{"LIB_X"},
		Isotopes:    []string{"Be9"},
		Particles:   []string{"neutron"},
		Destination: t.TempDir(),
		SetEnv:      true,
	})
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(res.ManifestPath))
	assert.Equal(t, res.ManifestPath, os.Getenv(manifest.EnvVar))
	assert.True(t, strings.HasSuffix(res.ManifestPath, manifest.FileName))
}
