package ast

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// DecodeUnit reads a serialized typed AST unit produced by the front end.
func DecodeUnit(r io.Reader) (*Unit, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var u Unit
	if err := dec.Decode(&u); err != nil {
		return nil, fmt.Errorf("decode unit: %w", err)
	}
	if u.UnitID == "" {
		return nil, fmt.Errorf("decode unit: missing unit_id")
	}
	return &u, nil
}

// LoadUnit reads a unit from disk.
func LoadUnit(path string) (*Unit, error) {
	// #nosec G304 -- path is provided by the caller
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	u, err := DecodeUnit(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return u, nil
}

// EncodeUnit writes the unit in the interchange form. Used by tests and by
// front-end tooling.
func EncodeUnit(w io.Writer, u *Unit) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(u)
}
