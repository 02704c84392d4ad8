// Package vm is the reference interpreter for compiled artifacts. It
// executes one transaction deterministically against a Host, metering gas
// with the same cost model the backend uses for its static estimate. It
// exists to pin bytecode semantics in tests; production execution happens
// in the scheduler's native runtime.
package vm

import (
	"bytes"
	"encoding/binary"
)

// Value is one operand-stack word: a 64-bit scalar, or a buffer (strings,
// byte blobs, addresses, wide integers).
type Value struct {
	Bytes []byte
	Word  uint64
	// IsBytes distinguishes an empty buffer from the zero word.
	IsBytes bool
}

// WordValue wraps a scalar.
func WordValue(w uint64) Value { return Value{Word: w} }

// BytesValue wraps a buffer.
func BytesValue(b []byte) Value { return Value{Bytes: b, IsBytes: true} }

// BoolValue wraps a boolean as 0/1.
func BoolValue(b bool) Value {
	if b {
		return Value{Word: 1}
	}
	return Value{}
}

// Truthy reports whether the value branches as true.
func (v Value) Truthy() bool {
	if v.IsBytes {
		return len(v.Bytes) > 0
	}
	return v.Word != 0
}

// Equal compares two values; a buffer never equals a scalar.
func (v Value) Equal(o Value) bool {
	if v.IsBytes != o.IsBytes {
		return false
	}
	if v.IsBytes {
		return bytes.Equal(v.Bytes, o.Bytes)
	}
	return v.Word == o.Word
}

// Encode renders the value's canonical byte form, used for digests and
// state storage.
func (v Value) Encode() []byte {
	if v.IsBytes {
		return v.Bytes
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v.Word)
	return b[:]
}
