package vm

import (
	"fmt"
	"math"

	"sable/internal/bytecode"
	"sable/internal/hostabi"
)

// Trap is a deterministic abort: overflow, division by zero, bounds,
// resource exhaustion. All state effects of the transaction are void.
type Trap struct {
	Code hostabi.AbortCode
}

func (t *Trap) Error() string {
	return fmt.Sprintf("trap: %s", t.Code)
}

// RevertError is a guided abort carrying the contract's message. Like a
// trap it voids state effects, but gas spent stays consumed.
type RevertError struct {
	Msg string
}

func (r *RevertError) Error() string {
	return fmt.Sprintf("revert: %s", r.Msg)
}

const maxCallDepth = 256

// VM executes one artifact against a host.
type VM struct {
	mod  *bytecode.Module
	host Host

	gasLimit uint64
	gasUsed  uint64

	code    [][]bytecode.Instr
	exports map[string]uint32
	depth   int
}

// New decodes every function body up front and returns a ready machine.
func New(mod *bytecode.Module, host Host, gasLimit uint64) (*VM, error) {
	vm := &VM{
		mod:      mod,
		host:     host,
		gasLimit: gasLimit,
		code:     make([][]bytecode.Instr, len(mod.Funcs)),
		exports:  make(map[string]uint32, len(mod.Exports)),
	}
	for i := range mod.Funcs {
		c, err := bytecode.DecodeCode(mod.Funcs[i].Code)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", mod.Funcs[i].Name, err)
		}
		vm.code[i] = c
	}
	for _, e := range mod.Exports {
		vm.exports[e.Name] = e.Func
	}
	return vm, nil
}

// GasUsed reports the meter after the last Call.
func (vm *VM) GasUsed() uint64 { return vm.gasUsed }

// Call runs an exported function. Results are the function's stack words
// in declaration order.
func (vm *VM) Call(export string, args ...Value) ([]Value, error) {
	idx, ok := vm.exports[export]
	if !ok {
		return nil, fmt.Errorf("no export %q", export)
	}
	if want := int(vm.mod.Funcs[idx].NumParams); len(args) != want {
		return nil, fmt.Errorf("export %q takes %d words, got %d", export, want, len(args))
	}
	return vm.callFunc(idx, args)
}

func (vm *VM) spend(op bytecode.Opcode) error {
	vm.gasUsed += op.Gas()
	if vm.gasUsed > vm.gasLimit {
		return &Trap{Code: hostabi.AbortResource}
	}
	return nil
}

func (vm *VM) callFunc(idx uint32, args []Value) ([]Value, error) {
	vm.depth++
	defer func() { vm.depth-- }()
	if vm.depth > maxCallDepth {
		return nil, &Trap{Code: hostabi.AbortResource}
	}

	fn := &vm.mod.Funcs[idx]
	code := vm.code[idx]
	locals := make([]Value, fn.NumLocals)
	copy(locals, args)
	mem := make([]Value, fn.FrameBytes/8)
	var stack []Value

	pop := func() Value {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}
	push := func(v Value) { stack = append(stack, v) }

	for pc := 0; pc < len(code); pc++ {
		in := code[pc]
		if err := vm.spend(in.Op); err != nil {
			return nil, err
		}
		switch in.Op {
		case bytecode.OpNop:

		case bytecode.OpConst:
			push(vm.constValue(in.A))
		case bytecode.OpLocalGet:
			push(locals[in.A])
		case bytecode.OpLocalSet:
			locals[in.A] = pop()
		case bytecode.OpLocalTee:
			locals[in.A] = stack[len(stack)-1]
		case bytecode.OpDup:
			push(stack[len(stack)-1])
		case bytecode.OpDrop:
			pop()

		case bytecode.OpMemLoad:
			push(mem[in.A/8])
		case bytecode.OpMemStore:
			mem[in.A/8] = pop()
		case bytecode.OpMemPut:
			mem[in.B/8] = vm.constValue(in.A)

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpAnd,
			bytecode.OpOr, bytecode.OpXor, bytecode.OpShl, bytecode.OpShrU,
			bytecode.OpShrS:
			y, x := pop().Word, pop().Word
			push(WordValue(rawArith(in.Op, x, y)))
		case bytecode.OpDivU, bytecode.OpRemU:
			y, x := pop().Word, pop().Word
			if y == 0 {
				return nil, &Trap{Code: hostabi.AbortDivByZero}
			}
			if in.Op == bytecode.OpDivU {
				push(WordValue(x / y))
			} else {
				push(WordValue(x % y))
			}
		case bytecode.OpDivS, bytecode.OpRemS:
			y, x := int64(pop().Word), int64(pop().Word) //nolint:gosec // two's complement
			if y == 0 {
				return nil, &Trap{Code: hostabi.AbortDivByZero}
			}
			if x == math.MinInt64 && y == -1 {
				return nil, &Trap{Code: hostabi.AbortOverflow}
			}
			if in.Op == bytecode.OpDivS {
				push(WordValue(uint64(x / y))) //nolint:gosec // two's complement
			} else {
				push(WordValue(uint64(x % y))) //nolint:gosec // two's complement
			}

		case bytecode.OpEq:
			y, x := pop(), pop()
			push(BoolValue(x.Equal(y)))
		case bytecode.OpNe:
			y, x := pop(), pop()
			push(BoolValue(!x.Equal(y)))
		case bytecode.OpEqz:
			push(BoolValue(!pop().Truthy()))
		case bytecode.OpLtU, bytecode.OpLeU, bytecode.OpGtU, bytecode.OpGeU:
			y, x := pop().Word, pop().Word
			push(BoolValue(compareU(in.Op, x, y)))
		case bytecode.OpLtS, bytecode.OpLeS, bytecode.OpGtS, bytecode.OpGeS:
			y, x := int64(pop().Word), int64(pop().Word) //nolint:gosec // two's complement
			push(BoolValue(compareS(in.Op, x, y)))

		case bytecode.OpBr:
			pc = int(in.A) - 1
		case bytecode.OpBrIf:
			if pop().Truthy() {
				pc = int(in.A) - 1
			}
		case bytecode.OpBrIfNot:
			if !pop().Truthy() {
				pc = int(in.A) - 1
			}

		case bytecode.OpCall:
			callee := &vm.mod.Funcs[in.A]
			n := int(callee.NumParams)
			callArgs := make([]Value, n)
			for i := n - 1; i >= 0; i-- {
				callArgs[i] = pop()
			}
			res, err := vm.callFunc(in.A, callArgs)
			if err != nil {
				return nil, err
			}
			stack = append(stack, res...)

		case bytecode.OpHostCall:
			var err error
			stack, err = vm.hostCall(vm.mod.Imports[in.A], stack)
			if err != nil {
				return nil, err
			}

		case bytecode.OpReturn:
			n := int(fn.ResultWords)
			res := make([]Value, n)
			for i := n - 1; i >= 0; i-- {
				res[i] = pop()
			}
			return res, nil

		case bytecode.OpUnreachable:
			return nil, &Trap{Code: hostabi.AbortUnreachable}

		default:
			return nil, fmt.Errorf("function %s: unimplemented opcode %s", fn.Name, in.Op)
		}
	}
	return nil, fmt.Errorf("function %s: fell off the end of the body", fn.Name)
}

func (vm *VM) constValue(idx uint32) Value {
	c := &vm.mod.Consts[idx]
	if c.Kind == bytecode.ConstBytes {
		return BytesValue(c.Bytes)
	}
	return WordValue(c.Word)
}

func rawArith(op bytecode.Opcode, x, y uint64) uint64 {
	switch op {
	case bytecode.OpAdd:
		return x + y
	case bytecode.OpSub:
		return x - y
	case bytecode.OpMul:
		return x * y
	case bytecode.OpAnd:
		return x & y
	case bytecode.OpOr:
		return x | y
	case bytecode.OpXor:
		return x ^ y
	case bytecode.OpShl:
		return x << (y & 63)
	case bytecode.OpShrU:
		return x >> (y & 63)
	case bytecode.OpShrS:
		return uint64(int64(x) >> (y & 63)) //nolint:gosec // two's complement
	}
	panic("unreachable")
}

func compareU(op bytecode.Opcode, x, y uint64) bool {
	switch op {
	case bytecode.OpLtU:
		return x < y
	case bytecode.OpLeU:
		return x <= y
	case bytecode.OpGtU:
		return x > y
	default:
		return x >= y
	}
}

func compareS(op bytecode.Opcode, x, y int64) bool {
	switch op {
	case bytecode.OpLtS:
		return x < y
	case bytecode.OpLeS:
		return x <= y
	case bytecode.OpGtS:
		return x > y
	default:
		return x >= y
	}
}
