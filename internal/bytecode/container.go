package bytecode

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode serializes the module to its container form.
func Encode(m *Module) ([]byte, error) {
	if m.Magic != Magic || m.Schema != Schema {
		return nil, fmt.Errorf("module prologue %q/%d does not match %q/%d",
			m.Magic, m.Schema, Magic, Schema)
	}
	data, err := msgpack.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return data, nil
}

// Decode parses a container and validates its prologue and internal
// references.
func Decode(data []byte) (*Module, error) {
	var m Module
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if m.Magic != Magic {
		return nil, fmt.Errorf("bad magic %q", m.Magic)
	}
	if m.Schema != Schema {
		return nil, fmt.Errorf("unsupported schema %d, want %d", m.Schema, Schema)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Module) validate() error {
	for _, e := range m.Exports {
		if int(e.Func) >= len(m.Funcs) {
			return fmt.Errorf("export %q references function %d of %d", e.Name, e.Func, len(m.Funcs))
		}
	}
	for fi := range m.Funcs {
		fn := &m.Funcs[fi]
		if fn.NumParams > fn.NumLocals {
			return fmt.Errorf("function %q: %d params exceed %d locals", fn.Name, fn.NumParams, fn.NumLocals)
		}
		code, err := DecodeCode(fn.Code)
		if err != nil {
			return fmt.Errorf("function %q: %w", fn.Name, err)
		}
		for i, in := range code {
			switch in.Op {
			case OpConst, OpMemPut:
				if int(in.A) >= len(m.Consts) {
					return fmt.Errorf("function %q instr %d: constant %d out of range", fn.Name, i, in.A)
				}
			case OpLocalGet, OpLocalSet, OpLocalTee:
				if in.A >= fn.NumLocals {
					return fmt.Errorf("function %q instr %d: local %d out of range", fn.Name, i, in.A)
				}
			case OpCall:
				if int(in.A) >= len(m.Funcs) {
					return fmt.Errorf("function %q instr %d: callee %d out of range", fn.Name, i, in.A)
				}
			case OpHostCall:
				if int(in.A) >= len(m.Imports) {
					return fmt.Errorf("function %q instr %d: import %d out of range", fn.Name, i, in.A)
				}
			}
		}
	}
	return nil
}
