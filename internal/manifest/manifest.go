// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package manifest writes and reads the cross_sections.xml listing that
// tells OpenMC where each data file lives.
package manifest

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/xsfetch/pkg/types"
)

const (
	// FileName is the conventional manifest name.
	FileName = "cross_sections.xml"

	// EnvVar is the variable OpenMC reads to locate the manifest.
	EnvVar = "OPENMC_CROSS_SECTIONS"
)

// File is one manifest record.
type File struct {
	Path      string // absolute local path
	Library   string
	Materials string // nuclide, element or thermal table name
	Type      string // neutron, photon, thermal or wmp
}

// FromEntries pairs fetched entries with their local paths. The slices
// must be the same length and in the same order.
func FromEntries(entries []types.Entry, paths []string) ([]File, error) {
	if len(entries) != len(paths) {
		return nil, fmt.Errorf("manifest: %d entries but %d paths", len(entries), len(paths))
	}
	files := make([]File, len(entries))
	for i, e := range entries {
		abs, err := filepath.Abs(paths[i])
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", paths[i], err)
		}
		files[i] = File{Path: abs, Library: e.Library, Materials: e.Key, Type: e.NodeType}
	}
	return files, nil
}

type document struct {
	XMLName   xml.Name     `xml:"cross_sections"`
	Libraries []libraryXML `xml:"library"`
}

type libraryXML struct {
	Materials string `xml:"materials,attr"`
	Path      string `xml:"path,attr"`
	Type      string `xml:"type,attr"`
	Source    string `xml:"source,attr,omitempty"`
}

// Write writes files to path as an OpenMC cross_sections.xml. Records are
// sorted by type, materials and library. Paths inside the manifest's
// directory are written relative to it, others absolute. The file is
// replaced atomically.
func Write(path string, files []File) error {
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return fmt.Errorf("resolving manifest directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}

	sorted := append([]File(nil), files...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Materials != b.Materials {
			return a.Materials < b.Materials
		}
		return a.Library < b.Library
	})

	doc := document{Libraries: make([]libraryXML, len(sorted))}
	for i, f := range sorted {
		doc.Libraries[i] = libraryXML{
			Materials: f.Materials,
			Path:      relativeTo(dir, f.Path),
			Type:      f.Type,
			Source:    f.Library,
		}
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	data = append([]byte(xml.Header), data...)
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, ".cross_sections-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing manifest: %w", firstErr(writeErr, closeErr))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming manifest: %w", err)
	}
	return nil
}

// Read parses a cross_sections.xml. Relative paths are resolved against
// the manifest's directory.
func Read(path string) ([]File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolving manifest directory: %w", err)
	}
	files := make([]File, len(doc.Libraries))
	for i, l := range doc.Libraries {
		p := filepath.FromSlash(l.Path)
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		files[i] = File{Path: p, Library: l.Source, Materials: l.Materials, Type: l.Type}
	}
	return files, nil
}

// Register points OpenMC at the manifest by setting EnvVar for this
// process. It returns the absolute path that was set.
func Register(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("registering manifest: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("registering manifest: %s is a directory", abs)
	}
	if err := os.Setenv(EnvVar, abs); err != nil {
		return "", fmt.Errorf("setting %s: %w", EnvVar, err)
	}
	return abs, nil
}

// ExportLine returns the shell command that registers the manifest in a
// user's environment.
func ExportLine(path string) string {
	return fmt.Sprintf("export %s=%s", EnvVar, path)
}

func relativeTo(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
