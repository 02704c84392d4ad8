// Package manifest emits the scheduler-facing metadata for a compiled
// unit: per-function domain sets, gas estimates, payability, and proof
// obligation references. The scheduler admits two transactions in the
// same block exactly when their write sets touch no domain the other
// reads or writes, so the manifest is the contract between compiler and
// runtime and its output must be byte-stable across runs.
package manifest

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"sort"

	"sable/internal/bytecode"
	"sable/internal/hir"
	"sable/internal/ssa"
)

// Schema is the manifest format version.
const Schema = 1

// Entry describes one compiled function.
type Entry struct {
	Public  bool `json:"public"`
	Payable bool `json:"payable,omitempty"`
	// Reads and Writes are hex-encoded domain hashes, sorted. An author
	// override is authoritative here even when the analyzer warned about
	// divergence from the computed sets.
	Reads    []string `json:"reads"`
	Writes   []string `json:"writes"`
	Declared bool     `json:"declared,omitempty"`
	// Gas is the static per-invocation estimate from the backend.
	Gas    uint64   `json:"gas"`
	Proofs []string `json:"proofs,omitempty"`
}

// Manifest is the full unit manifest, keyed by mangled function name.
type Manifest struct {
	Schema    int              `json:"schema"`
	Unit      string           `json:"unit"`
	Functions map[string]Entry `json:"functions"`
}

func hexHashes(hs []ssa.DomainHash) []string {
	out := make([]string, 0, len(hs))
	for _, h := range hs {
		out = append(out, hex.EncodeToString(h[:]))
	}
	sort.Strings(out)
	return out
}

// Build assembles the manifest for a unit whose domain sets have been
// sealed and whose artifact has been lowered.
func Build(sm *ssa.Module, art *bytecode.Module) *Manifest {
	m := &Manifest{
		Schema:    Schema,
		Unit:      sm.UnitID,
		Functions: make(map[string]Entry),
	}
	for _, fn := range sm.Funcs {
		if fn == nil {
			continue
		}
		mangled := bytecode.Mangle(sm.UnitID, fn.Name)
		e := Entry{
			Public:   fn.Flags.HasFlag(hir.FuncPublic),
			Payable:  fn.Payable,
			Reads:    hexHashes(fn.Domains.Reads),
			Writes:   hexHashes(fn.Domains.Writes),
			Declared: fn.Domains.Declared,
			Proofs:   fn.ProofIDs,
		}
		if bfn, ok := art.Lookup(mangled); ok {
			e.Gas = bfn.Gas
		}
		m.Functions[mangled] = e
	}
	return m
}

// Encode renders the manifest as indented JSON with a trailing newline.
// Map keys marshal sorted, so equal manifests encode identically.
func (m *Manifest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses an encoded manifest.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
