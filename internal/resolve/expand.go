package resolve

import "slices"

// KeySet is an ordered set of isotope keys. A key added as explicit is
// reported in Selection.Missing when no selected library publishes it;
// keys that only came from a sentinel expansion are not.
type KeySet struct {
	keys     []string
	explicit map[string]bool
}

// Add appends keys not yet in the set. A key already present becomes
// explicit if explicit is true; it never loses that mark.
func (s *KeySet) Add(explicit bool, keys ...string) {
	if s.explicit == nil {
		s.explicit = make(map[string]bool, len(keys))
	}
	for _, k := range keys {
		was, seen := s.explicit[k]
		if !seen {
			s.keys = append(s.keys, k)
		}
		s.explicit[k] = was || explicit
	}
}

// Union adds every key of other, keeping its explicit marks.
func (s *KeySet) Union(other *KeySet) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		s.Add(other.explicit[k], k)
	}
}

// Keys returns the keys in first-added order.
func (s *KeySet) Keys() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.keys)
}

// Explicit returns the explicit keys in first-added order.
func (s *KeySet) Explicit() []string {
	if s == nil {
		return nil
	}
	var out []string
	for _, k := range s.keys {
		if s.explicit[k] {
			out = append(out, k)
		}
	}
	return out
}

// Len returns the number of keys.
func (s *KeySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// ExpandIsotopes turns an isotope request into concrete keys. "all"
// contributes every catalogued neutron isotope and "stable" every
// naturally occurring one; any other value is an explicit key.
func (r *Resolver) ExpandIsotopes(isotopes []string) *KeySet {
	set := &KeySet{}
	for _, k := range isotopes {
		switch k {
		case All:
			set.Add(false, r.cat.Isotopes()...)
		case Stable:
			set.Add(false, r.cat.StableIsotopes()...)
		default:
			set.Add(true, k)
		}
	}
	return set
}

// ExpandElements expands element symbols into their naturally occurring
// isotopes for neutron data. "all" contributes every catalogued neutron
// isotope and "stable" every naturally occurring one. Isotopes of a named
// element are explicit. Symbols missing from the abundance table are
// returned in unknown.
func (r *Resolver) ExpandElements(elements []string) (isotopes *KeySet, unknown []string) {
	isotopes = &KeySet{}
	for _, el := range dedupe(elements) {
		switch el {
		case All:
			isotopes.Add(false, r.cat.Isotopes()...)
		case Stable:
			isotopes.Add(false, r.cat.StableIsotopes()...)
		default:
			iso, ok := r.cat.Abundance(el)
			if !ok {
				unknown = append(unknown, el)
				continue
			}
			isotopes.Add(true, iso...)
		}
	}
	return isotopes, unknown
}

// Union concatenates lists, dropping repeats and keeping first-seen order.
func Union(lists ...[]string) []string {
	var all []string
	for _, l := range lists {
		all = append(all, l...)
	}
	return dedupe(all)
}

func dedupe(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, v := range list {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
