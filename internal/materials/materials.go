// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package materials reads material descriptions and flattens them into the
// nuclides and thermal scattering tables they need.
package materials

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

var ErrMaterialExpansion = errors.New("material expansion failed")

// MaterialExpansionError reports a material source that could not be read
// or expanded.
type MaterialExpansionError struct {
	Source string
	Err    error
}

func (e *MaterialExpansionError) Error() string {
	return fmt.Sprintf("expanding materials from %s: %v", e.Source, e.Err)
}

func (e *MaterialExpansionError) Unwrap() []error { return []error{ErrMaterialExpansion, e.Err} }

// Material lists what one material is made of.
type Material struct {
	Name         string   `yaml:"name"`
	Nuclides     []string `yaml:"nuclides,omitempty"`
	Elements     []string `yaml:"elements,omitempty"`
	ThermalNames []string `yaml:"sab,omitempty"`

	// Source is the file the material was read from.
	Source string `yaml:"-"`
}

// Abundance looks up the naturally occurring isotopes of an element.
type Abundance interface {
	Abundance(element string) ([]string, bool)
}

// OpenMC materials.xml structures.
type xmlMaterials struct {
	Materials []xmlMaterial `xml:"material"`
}

type xmlMaterial struct {
	ID       string    `xml:"id,attr"`
	Name     string    `xml:"name,attr"`
	Nuclides []xmlName `xml:"nuclide"`
	Elements []xmlName `xml:"element"`
	Sab      []xmlName `xml:"sab"`
}

type xmlName struct {
	Name string `xml:"name,attr"`
}

type yamlDoc struct {
	Materials []Material `yaml:"materials"`
}

// LoadFiles reads every path with LoadFile and concatenates the results.
func LoadFiles(paths []string) ([]Material, error) {
	var all []Material
	for _, p := range paths {
		mats, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		all = append(all, mats...)
	}
	return all, nil
}

// LoadFile reads an OpenMC materials.xml, or a YAML file with a top-level
// "materials" list, chosen by extension.
func LoadFile(path string) ([]Material, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &MaterialExpansionError{Source: path, Err: err}
	}

	var mats []Material
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		mats, err = parseXML(data)
	case ".yaml", ".yml":
		mats, err = parseYAML(data)
	default:
		err = fmt.Errorf("unsupported extension %q (want .xml, .yaml or .yml)", filepath.Ext(path))
	}
	if err != nil {
		return nil, &MaterialExpansionError{Source: path, Err: err}
	}
	for i := range mats {
		mats[i].Source = path
	}
	return mats, nil
}

func parseXML(data []byte) ([]Material, error) {
	var doc xmlMaterials
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	mats := make([]Material, 0, len(doc.Materials))
	for _, xm := range doc.Materials {
		m := Material{Name: xm.Name}
		if m.Name == "" {
			m.Name = xm.ID
		}
		m.Nuclides = names(xm.Nuclides)
		m.Elements = names(xm.Elements)
		m.ThermalNames = names(xm.Sab)
		mats = append(mats, m)
	}
	return mats, nil
}

func names(list []xmlName) []string {
	var out []string
	for _, n := range list {
		if n.Name != "" {
			out = append(out, n.Name)
		}
	}
	return out
}

func parseYAML(data []byte) ([]Material, error) {
	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Materials, nil
}

// Isotopes returns the nuclides of every material, expanding elements by
// natural abundance. Repeats are dropped; first-seen order is kept.
func Isotopes(mats []Material, ab Abundance) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(iso string) {
		if !seen[iso] {
			seen[iso] = true
			out = append(out, iso)
		}
	}

	for _, m := range mats {
		for _, n := range m.Nuclides {
			add(n)
		}
		for _, el := range m.Elements {
			iso, ok := ab.Abundance(el)
			if !ok {
				return nil, &MaterialExpansionError{
					Source: sourceOf(m),
					Err:    fmt.Errorf("material %q: unknown element %q", m.Name, el),
				}
			}
			for _, i := range iso {
				add(i)
			}
		}
	}
	return out, nil
}

// ThermalNames returns the thermal scattering tables of every material.
func ThermalNames(mats []Material) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range mats {
		for _, s := range m.ThermalNames {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

func sourceOf(m Material) string {
	if m.Source != "" {
		return m.Source
	}
	return "material " + m.Name
}
