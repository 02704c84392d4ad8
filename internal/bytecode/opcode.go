// Package bytecode defines the stack-machine instruction set and artifact
// container the backend targets. Instructions carry at most two unsigned
// immediates; bodies are byte streams with varint-encoded operands; the
// container is a msgpack document with a magic/schema prologue.
package bytecode

import "fmt"

// Opcode is one VM opcode. Arithmetic is raw two's-complement: the
// compiler injects overflow checks in front of default-mode operations,
// the VM itself only traps on division by zero.
type Opcode uint8

const (
	OpNop Opcode = iota

	// Stack and locals. A indexes the constant pool or local slot.
	OpConst    // push consts[A]
	OpLocalGet // push locals[A]
	OpLocalSet // locals[A] = pop
	OpLocalTee // locals[A] = top (keeps the value)
	OpDup      // push top
	OpDrop     // pop

	// Frame memory, word-granular. A is a static byte offset into the
	// function frame.
	OpMemLoad  // push mem[A]
	OpMemStore // mem[A] = pop
	// OpMemPut copies consts[A] (a bytes constant) into frame memory at
	// offset B, then pushes nothing. Used to stage host-call buffers.
	OpMemPut

	// Arithmetic, 64-bit words.
	OpAdd
	OpSub
	OpMul
	OpDivU
	OpDivS
	OpRemU
	OpRemS
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShrU
	OpShrS

	// Comparisons, push 0 or 1.
	OpEq
	OpNe
	OpLtU
	OpLtS
	OpLeU
	OpLeS
	OpGtU
	OpGtS
	OpGeU
	OpGeS
	OpEqz // logical not

	// Control. Branch targets are absolute instruction indices within the
	// function body.
	OpBr          // jump to A
	OpBrIf        // pop cond; jump to A when non-zero
	OpBrIfNot     // pop cond; jump to A when zero
	OpCall        // call function A
	OpHostCall    // call host import A
	OpReturn      // return, result (if any) on top of stack
	OpUnreachable // trap

	opCount
)

var opNames = [...]string{
	OpNop: "nop",

	OpConst:    "const",
	OpLocalGet: "local.get",
	OpLocalSet: "local.set",
	OpLocalTee: "local.tee",
	OpDup:      "dup",
	OpDrop:     "drop",

	OpMemLoad:  "mem.load",
	OpMemStore: "mem.store",
	OpMemPut:   "mem.put",

	OpAdd:  "add",
	OpSub:  "sub",
	OpMul:  "mul",
	OpDivU: "div.u",
	OpDivS: "div.s",
	OpRemU: "rem.u",
	OpRemS: "rem.s",
	OpAnd:  "and",
	OpOr:   "or",
	OpXor:  "xor",
	OpShl:  "shl",
	OpShrU: "shr.u",
	OpShrS: "shr.s",

	OpEq:  "eq",
	OpNe:  "ne",
	OpLtU: "lt.u",
	OpLtS: "lt.s",
	OpLeU: "le.u",
	OpLeS: "le.s",
	OpGtU: "gt.u",
	OpGtS: "gt.s",
	OpGeU: "ge.u",
	OpGeS: "ge.s",
	OpEqz: "eqz",

	OpBr:          "br",
	OpBrIf:        "br_if",
	OpBrIfNot:     "br_ifn",
	OpCall:        "call",
	OpHostCall:    "host.call",
	OpReturn:      "return",
	OpUnreachable: "unreachable",
}

func (op Opcode) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool { return op < opCount }

// immCounts gives the number of immediates per opcode; everything absent
// from the map has zero.
var immCounts = map[Opcode]int{
	OpConst:    1,
	OpLocalGet: 1,
	OpLocalSet: 1,
	OpLocalTee: 1,
	OpMemLoad:  1,
	OpMemStore: 1,
	OpMemPut:   2,
	OpBr:       1,
	OpBrIf:     1,
	OpBrIfNot:  1,
	OpCall:     1,
	OpHostCall: 1,
}

// Immediates returns how many operand words follow the opcode byte.
func (op Opcode) Immediates() int { return immCounts[op] }

// gasCosts is the deterministic per-opcode cost model used for the static
// gas estimate and by the interpreter's meter. Unlisted opcodes cost
// gasBase.
const gasBase = 1

var gasCosts = map[Opcode]uint64{
	OpMul:      4,
	OpDivU:     5,
	OpDivS:     5,
	OpRemU:     5,
	OpRemS:     5,
	OpMemPut:   3,
	OpCall:     8,
	OpHostCall: 32,
}

// Gas returns the cost of executing op once.
func (op Opcode) Gas() uint64 {
	if g, ok := gasCosts[op]; ok {
		return g
	}
	return gasBase
}
