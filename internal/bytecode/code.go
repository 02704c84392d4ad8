package bytecode

import (
	"encoding/binary"
	"fmt"
)

// Instr is one decoded instruction. A and B are the immediates; unused
// ones stay zero.
type Instr struct {
	Op Opcode
	A  uint32
	B  uint32
}

func (in Instr) String() string {
	switch in.Op.Immediates() {
	case 2:
		return fmt.Sprintf("%s %d %d", in.Op, in.A, in.B)
	case 1:
		return fmt.Sprintf("%s %d", in.Op, in.A)
	default:
		return in.Op.String()
	}
}

// EncodeCode serializes an instruction stream: one opcode byte followed by
// its immediates as unsigned varints.
func EncodeCode(code []Instr) []byte {
	var buf []byte
	var tmp [binary.MaxVarintLen32]byte
	for _, in := range code {
		buf = append(buf, byte(in.Op))
		switch in.Op.Immediates() {
		case 2:
			buf = append(buf, tmp[:binary.PutUvarint(tmp[:], uint64(in.A))]...)
			buf = append(buf, tmp[:binary.PutUvarint(tmp[:], uint64(in.B))]...)
		case 1:
			buf = append(buf, tmp[:binary.PutUvarint(tmp[:], uint64(in.A))]...)
		}
	}
	return buf
}

// DecodeCode parses an instruction stream back. Branch targets are
// validated against the decoded length.
func DecodeCode(data []byte) ([]Instr, error) {
	var code []Instr
	pos := 0
	operand := func() (uint32, error) {
		v, n := binary.Uvarint(data[pos:])
		if n <= 0 {
			return 0, fmt.Errorf("truncated operand at byte %d", pos)
		}
		if v > 0xFFFFFFFF {
			return 0, fmt.Errorf("operand out of range at byte %d", pos)
		}
		pos += n
		return uint32(v), nil
	}
	for pos < len(data) {
		op := Opcode(data[pos])
		pos++
		if !op.Valid() {
			return nil, fmt.Errorf("bad opcode 0x%02x at byte %d", byte(op), pos-1)
		}
		in := Instr{Op: op}
		var err error
		switch op.Immediates() {
		case 2:
			if in.A, err = operand(); err != nil {
				return nil, err
			}
			if in.B, err = operand(); err != nil {
				return nil, err
			}
		case 1:
			if in.A, err = operand(); err != nil {
				return nil, err
			}
		}
		code = append(code, in)
	}
	for i, in := range code {
		switch in.Op {
		case OpBr, OpBrIf, OpBrIfNot:
			if int(in.A) >= len(code) {
				return nil, fmt.Errorf("instr %d: branch target %d out of range", i, in.A)
			}
		}
	}
	return code, nil
}

// StaticGas sums the cost model over an instruction stream. Loops make
// this a per-pass floor, not a bound; the interpreter meters the real
// cost.
func StaticGas(code []Instr) uint64 {
	var total uint64
	for _, in := range code {
		total += in.Op.Gas()
	}
	return total
}
