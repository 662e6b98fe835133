// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Particle identifies the kind of interaction data a file encodes.
type Particle string

const (
	ParticleNeutron Particle = "neutron"
	ParticlePhoton  Particle = "photon"
	ParticleThermal Particle = "thermal"
)

// Particles lists every particle category in display order.
var Particles = []Particle{ParticleNeutron, ParticlePhoton, ParticleThermal}

// Valid reports whether p is a known particle category.
func (p Particle) Valid() bool {
	switch p {
	case ParticleNeutron, ParticlePhoton, ParticleThermal:
		return true
	default:
		return false
	}
}

func (p Particle) String() string { return string(p) }

// Entry is one retrievable cross-section file in the catalog.
// Entries are built once from static data and never mutated.
type Entry struct {
	// Key is the lookup name: an isotope ("Be9", "Ag110_m1"), an element
	// symbol for photon data ("Fe"), or a thermal scattering name
	// ("c_H_in_H2O").
	Key string `json:"key" yaml:"key"`

	// Particle is the data category.
	Particle Particle `json:"particle" yaml:"particle"`

	// Library is the evaluated data library that publishes the file.
	Library string `json:"library" yaml:"library"`

	// Element is the element symbol for Key. Empty for thermal data.
	Element string `json:"element,omitempty" yaml:"element,omitempty"`

	// RemoteFile is the upstream file name (e.g. "Be9.h5", "004009.h5").
	RemoteFile string `json:"remote_file" yaml:"remote_file"`

	// URL is the fully qualified download location. Unique per catalog.
	URL string `json:"url" yaml:"url"`

	// LocalFile is "{Library}_{RemoteFile}", so libraries that publish
	// same-named files never collide on disk.
	LocalFile string `json:"local_file" yaml:"local_file"`

	// NodeType is the cross_sections.xml library type: neutron, photon,
	// thermal or wmp.
	NodeType string `json:"node_type" yaml:"node_type"`
}

// GroupKey returns the (key, particle) pair used for de-duplication.
func (e Entry) GroupKey() string {
	return string(e.Particle) + "/" + e.Key
}
