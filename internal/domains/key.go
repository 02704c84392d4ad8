// Package domains implements the conflict-domain analyzer: it resolves
// persistent-state accesses in SSA form to canonical domain keys, hashes
// them to fixed-width identifiers, and aggregates per-function read/write
// sets over the call graph. The emitted sets are the static facts the
// runtime scheduler uses to run non-conflicting transactions in parallel.
package domains

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Hash is the fixed-width identifier of one domain key: the first 16 bytes
// of the BLAKE2b-256 digest of the canonical string. A pure function of the
// input bytes, so identical keys hash identically across runs and hosts.
type Hash [16]byte

func (h Hash) String() string {
	return fmt.Sprintf("%x", h[:])
}

// Key is a structured domain key. The canonical string form is
// "<unit>.<namespace>" for singleton namespaces, "<unit>.<namespace>:<key>"
// for keyed entries, and "<unit>.<namespace>:*" for the wildcard covering a
// whole namespace.
type Key struct {
	Unit      string
	Namespace string
	Entry     string
	Wildcard  bool
}

// Singleton reports whether the key names an unkeyed namespace.
func (k Key) Singleton() bool {
	return !k.Wildcard && k.Entry == ""
}

// Canon returns the canonical string form.
func (k Key) Canon() string {
	switch {
	case k.Wildcard:
		return k.Unit + "." + k.Namespace + ":*"
	case k.Entry == "":
		return k.Unit + "." + k.Namespace
	default:
		return k.Unit + "." + k.Namespace + ":" + k.Entry
	}
}

// Hash hashes the canonical string.
func (k Key) Hash() Hash {
	sum := blake2b.Sum256([]byte(k.Canon()))
	var h Hash
	copy(h[:], sum[:16])
	return h
}

// Covers reports whether k grants access to other: they are equal, or k is
// the wildcard-namespace ancestor of other.
func (k Key) Covers(other Key) bool {
	if k.Unit != other.Unit || k.Namespace != other.Namespace {
		return false
	}
	if k.Wildcard {
		return true
	}
	return k == other
}

// ConflictsWith reports whether two keys name overlapping state: equal, or
// either is the wildcard ancestor of the other. Read/write semantics are
// the caller's concern.
func (k Key) ConflictsWith(other Key) bool {
	return k.Covers(other) || other.Covers(k)
}

// ParseKey parses an author-declared key "namespace", "namespace:entry" or
// "namespace:*", qualifying it with the unit ID.
func ParseKey(unit, raw string) (Key, error) {
	ns, entry, keyed := strings.Cut(raw, ":")
	if ns == "" {
		return Key{}, fmt.Errorf("empty namespace in domain key %q", raw)
	}
	if strings.ContainsAny(ns, ".*") {
		return Key{}, fmt.Errorf("invalid namespace in domain key %q", raw)
	}
	k := Key{Unit: unit, Namespace: ns}
	if !keyed {
		return k, nil
	}
	if entry == "*" {
		k.Wildcard = true
		return k, nil
	}
	if entry == "" {
		return Key{}, fmt.Errorf("empty entry in domain key %q", raw)
	}
	k.Entry = entry
	return k, nil
}
