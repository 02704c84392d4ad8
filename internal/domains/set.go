package domains

import (
	"sort"
)

// Set is an ordered collection of domain keys, deduplicated by canonical
// string.
type Set struct {
	keys map[string]Key
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{keys: make(map[string]Key)}
}

// Add inserts the key; duplicates are ignored.
func (s *Set) Add(k Key) {
	s.keys[k.Canon()] = k
}

// AddAll inserts every key of other.
func (s *Set) AddAll(other *Set) {
	if other == nil {
		return
	}
	for c, k := range other.keys {
		s.keys[c] = k
	}
}

// Len returns the number of distinct keys.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Contains reports whether the exact canonical key is present.
func (s *Set) Contains(k Key) bool {
	_, ok := s.keys[k.Canon()]
	return ok
}

// CoveredBy reports whether every key in s is covered by some key in decl,
// honoring wildcard ancestry.
func (s *Set) CoveredBy(decl *Set) bool {
	for _, k := range s.keys {
		if !decl.coversKey(k) {
			return false
		}
	}
	return true
}

func (s *Set) coversKey(k Key) bool {
	for _, d := range s.keys {
		if d.Covers(k) {
			return true
		}
	}
	return false
}

// Uncovered returns the keys of s not covered by decl, sorted canonically.
func (s *Set) Uncovered(decl *Set) []Key {
	var out []Key
	for _, k := range s.keys {
		if !decl.coversKey(k) {
			out = append(out, k)
		}
	}
	sortKeys(out)
	return out
}

// Touches reports whether any key in s conflicts (overlaps) with k.
func (s *Set) Touches(k Key) bool {
	if s == nil {
		return false
	}
	for _, sk := range s.keys {
		if sk.ConflictsWith(k) {
			return true
		}
	}
	return false
}

// Sorted returns the keys in canonical order.
func (s *Set) Sorted() []Key {
	if s == nil {
		return nil
	}
	out := make([]Key, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, k)
	}
	sortKeys(out)
	return out
}

// Hashes returns the hashed identifiers in canonical key order.
func (s *Set) Hashes(tab *Intern) []Hash {
	sorted := s.Sorted()
	out := make([]Hash, 0, len(sorted))
	for _, k := range sorted {
		out = append(out, tab.Hash(k))
	}
	return out
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	out := NewSet()
	out.AddAll(s)
	return out
}

// Equal reports whether both sets hold the same canonical keys.
func (s *Set) Equal(other *Set) bool {
	if s.Len() != other.Len() {
		return false
	}
	for c := range s.keys {
		if _, ok := other.keys[c]; !ok {
			return false
		}
	}
	return true
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Canon() < keys[j].Canon()
	})
}

// FuncDomains is the sealed analysis output for one function.
type FuncDomains struct {
	Reads  *Set
	Writes *Set
	// Declared is true when an author override replaced the computed
	// aggregate.
	Declared bool
}

// Conflicts implements the scheduler's rule over two functions' domain
// sets: they conflict iff the sets intersect and at least one side of the
// intersection is a write. Symmetric by construction.
func Conflicts(a, b FuncDomains) bool {
	for _, w := range a.Writes.Sorted() {
		if b.Writes.Touches(w) || b.Reads.Touches(w) {
			return true
		}
	}
	for _, w := range b.Writes.Sorted() {
		if a.Reads.Touches(w) {
			return true
		}
	}
	return false
}
