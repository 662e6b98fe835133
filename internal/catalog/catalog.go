// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog holds the static table of retrievable cross-section
// files and the element abundance data used to expand requests.
package catalog

import (
	_ "embed"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/xsfetch/pkg/types"
)

//go:embed data/catalog.yaml
var embeddedData []byte

// Naming schemes for remote file names.
const (
	namingKey  = ""     // remote file is "{key}.h5"
	namingZAID = "zaid" // key is a ZAID; the entry key becomes the isotope name
)

const fileExt = ".h5"

// document is the on-disk schema of the catalog data.
type document struct {
	Libraries        []libraryDoc `yaml:"libraries"`
	ThermalNames     []string     `yaml:"thermal_names"`
	NaturalAbundance yaml.Node    `yaml:"natural_abundance"`
	Elements         []string     `yaml:"elements"`
}

type libraryDoc struct {
	Name    string     `yaml:"name"`
	BaseURL string     `yaml:"base_url"`
	Tables  []tableDoc `yaml:"tables"`
}

type tableDoc struct {
	Particle types.Particle `yaml:"particle"`
	Path     string         `yaml:"path"`
	NodeType string         `yaml:"node_type"`
	Naming   string         `yaml:"naming"`
	Keys     []string       `yaml:"keys"`
}

// Catalog is an immutable, queryable set of entries. It is safe for
// concurrent use.
type Catalog struct {
	entries   []types.Entry
	libraries []string
	thermal   []string
	elements  []string // index is the atomic number

	abundance      map[string][]string
	abundanceOrder []string
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the catalog built from the embedded data. The data is
// parsed once per process.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Parse(embeddedData)
	})
	return defaultCat, defaultErr
}

// MustDefault is like Default but panics on malformed embedded data.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse builds a catalog from a YAML document. It enforces that every URL
// is unique and that (key, particle, library) is unique.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	c := &Catalog{
		thermal:   doc.ThermalNames,
		elements:  doc.Elements,
		abundance: make(map[string][]string),
	}
	if err := c.loadAbundance(&doc.NaturalAbundance); err != nil {
		return nil, err
	}

	seenURL := make(map[string]string)
	seenKey := make(map[string]bool)
	seenLib := make(map[string]bool)

	for _, lib := range doc.Libraries {
		if lib.Name == "" {
			return nil, fmt.Errorf("catalog library without a name")
		}
		if !seenLib[lib.Name] {
			seenLib[lib.Name] = true
			c.libraries = append(c.libraries, lib.Name)
		}
		for _, tbl := range lib.Tables {
			if !tbl.Particle.Valid() {
				return nil, fmt.Errorf("library %s: unknown particle %q", lib.Name, tbl.Particle)
			}
			for _, key := range tbl.Keys {
				e, err := c.newEntry(lib, tbl, key)
				if err != nil {
					return nil, err
				}
				if prev, ok := seenURL[e.URL]; ok {
					return nil, fmt.Errorf("duplicate catalog URL %s (%s and %s)", e.URL, prev, e.Key)
				}
				id := e.Library + "|" + e.GroupKey()
				if seenKey[id] {
					return nil, fmt.Errorf("duplicate catalog entry %s %s in %s", e.Particle, e.Key, e.Library)
				}
				seenURL[e.URL] = e.Key
				seenKey[id] = true
				c.entries = append(c.entries, e)
			}
		}
	}
	return c, nil
}

// loadAbundance decodes the abundance mapping preserving document order.
func (c *Catalog) loadAbundance(node *yaml.Node) error {
	if node.Kind == 0 {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("natural_abundance must be a mapping")
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		element := node.Content[i].Value
		var isotopes []string
		if err := node.Content[i+1].Decode(&isotopes); err != nil {
			return fmt.Errorf("natural_abundance %s: %w", element, err)
		}
		c.abundance[element] = isotopes
		c.abundanceOrder = append(c.abundanceOrder, element)
	}
	return nil
}

func (c *Catalog) newEntry(lib libraryDoc, tbl tableDoc, key string) (types.Entry, error) {
	e := types.Entry{
		Key:        key,
		Particle:   tbl.Particle,
		Library:    lib.Name,
		RemoteFile: key + fileExt,
		NodeType:   tbl.NodeType,
	}
	if e.NodeType == "" {
		e.NodeType = string(tbl.Particle)
	}

	switch tbl.Naming {
	case namingKey:
	case namingZAID:
		iso, err := c.ZAIDToIsotope(key)
		if err != nil {
			return types.Entry{}, fmt.Errorf("library %s: %w", lib.Name, err)
		}
		e.Key = iso
	default:
		return types.Entry{}, fmt.Errorf("library %s: unknown naming %q", lib.Name, tbl.Naming)
	}

	switch tbl.Particle {
	case types.ParticlePhoton:
		e.Element = e.Key
	case types.ParticleNeutron:
		e.Element = ElementOf(e.Key)
	}

	e.URL = lib.BaseURL + tbl.Path + e.RemoteFile
	e.LocalFile = lib.Name + "_" + e.RemoteFile
	return e, nil
}

// All returns every entry in catalog order. The slice is a copy.
func (c *Catalog) All() []types.Entry {
	out := make([]types.Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

// Libraries returns the known library names in catalog order.
func (c *Catalog) Libraries() []string {
	return append([]string(nil), c.libraries...)
}

// HasLibrary reports whether name is a known library.
func (c *Catalog) HasLibrary(name string) bool {
	for _, l := range c.libraries {
		if l == name {
			return true
		}
	}
	return false
}

// Particles returns the fixed set of particle categories.
func (c *Catalog) Particles() []types.Particle {
	return append([]types.Particle(nil), types.Particles...)
}

// ThermalNames returns every recognised thermal scattering name, including
// names no catalogued library currently publishes.
func (c *Catalog) ThermalNames() []string {
	return append([]string(nil), c.thermal...)
}

// IsThermalName reports whether name is a recognised thermal scattering name.
func (c *Catalog) IsThermalName(name string) bool {
	for _, n := range c.thermal {
		if n == name {
			return true
		}
	}
	return false
}

// Keys returns the distinct keys of the given particle category, in
// first-seen catalog order.
func (c *Catalog) Keys(p types.Particle) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range c.entries {
		if e.Particle != p || seen[e.Key] {
			continue
		}
		seen[e.Key] = true
		out = append(out, e.Key)
	}
	return out
}

// Isotopes returns every neutron isotope published by any library. This is
// the expansion of the "all" sentinel and is a superset of StableIsotopes.
func (c *Catalog) Isotopes() []string {
	return c.Keys(types.ParticleNeutron)
}

// LibraryEntries returns the entries published by one library.
func (c *Catalog) LibraryEntries(library string) []types.Entry {
	var out []types.Entry
	for _, e := range c.entries {
		if e.Library == library {
			out = append(out, e)
		}
	}
	return out
}

// Abundance returns the naturally occurring isotopes of element, and
// whether the element is in the abundance table.
func (c *Catalog) Abundance(element string) ([]string, bool) {
	iso, ok := c.abundance[element]
	return append([]string(nil), iso...), ok
}

// AbundanceElements returns the elements of the abundance table in order.
func (c *Catalog) AbundanceElements() []string {
	return append([]string(nil), c.abundanceOrder...)
}

// StableIsotopes returns every naturally occurring isotope, element by
// element. This is the expansion of the "stable" sentinel.
func (c *Catalog) StableIsotopes() []string {
	var out []string
	for _, el := range c.abundanceOrder {
		out = append(out, c.abundance[el]...)
	}
	return out
}

// Symbol returns the element symbol for atomic number z.
func (c *Catalog) Symbol(z int) (string, bool) {
	if z < 0 || z >= len(c.elements) {
		return "", false
	}
	return c.elements[z], true
}

// zaidPattern matches "ZZZAAA" with an optional metastable suffix.
var zaidPattern = regexp.MustCompile(`^(\d{1,3})(\d{3})(m\d)?$`)

// ZAIDToIsotope converts a ZAID file stem such as "026056" to "Fe56".
// Metastable states become "_m1" suffixes.
func (c *Catalog) ZAIDToIsotope(zaid string) (string, error) {
	m := zaidPattern.FindStringSubmatch(zaid)
	if m == nil {
		return "", fmt.Errorf("malformed ZAID %q", zaid)
	}
	z, _ := strconv.Atoi(m[1])
	a, _ := strconv.Atoi(m[2])
	sym, ok := c.Symbol(z)
	if !ok {
		return "", fmt.Errorf("ZAID %q: unknown atomic number %d", zaid, z)
	}
	iso := sym + strconv.Itoa(a)
	if m[3] != "" {
		iso += "_" + m[3]
	}
	return iso, nil
}

// ElementOf returns the element symbol of an isotope name: the leading
// letters of "Fe56" or "Ag110_m1". A bare element symbol is returned as is.
func ElementOf(isotope string) string {
	i := strings.IndexFunc(isotope, func(r rune) bool { return r >= '0' && r <= '9' })
	if i < 0 {
		return isotope
	}
	return isotope[:i]
}
