package vm

import (
	"fmt"

	"sable/internal/bytecode"
	"sable/internal/hostabi"
)

// hostCall demarshals one capability call per the hostabi wire table,
// dispatches it, and remarshals the results: output words first, then the
// status word for status-returning calls. Compiled code checks that
// status before consuming any output, so an erroring call may push
// nothing besides it.
func (vm *VM) hostCall(imp bytecode.Import, stack []Value) ([]Value, error) {
	sym := imp.Symbol()
	idx, ok := hostabi.Lookup(sym)
	if !ok {
		return stack, fmt.Errorf("unknown host symbol %q", sym)
	}
	sig := hostabi.Table()[idx]

	pop := func() Value {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}
	popWords := func(n int) []Value {
		out := make([]Value, n)
		for i := n - 1; i >= 0; i-- {
			out[i] = pop()
		}
		return out
	}

	// Arguments arrive in reverse push order.
	var (
		bufs    []Value
		words   []uint64
		payload []Value
	)
	for i := len(sig.Wire) - 1; i >= 0; i-- {
		switch sig.Wire[i] {
		case hostabi.WireBytes:
			bufs = append(bufs, pop())
		case hostabi.WireWord, hostabi.WireCap:
			words = append(words, pop().Word)
		case hostabi.WireWords:
			payload = popWords(int(pop().Word))
		}
	}
	for i, j := 0, len(bufs)-1; i < j; i, j = i+1, j-1 {
		bufs[i], bufs[j] = bufs[j], bufs[i]
	}
	for i, j := 0, len(words)-1; i < j; i, j = i+1, j-1 {
		words[i], words[j] = words[j], words[i]
	}

	var out []Value
	status := hostabi.StatusOK
	switch sym {
	case "state/1.read":
		out, status = vm.host.StateRead(bufs[0].Encode(), bufs[1].Encode(), int(words[0]))
	case "state/1.write":
		status = vm.host.StateWrite(bufs[0].Encode(), bufs[1].Encode(), payload)
	case "state/1.exists":
		present, st := vm.host.StateExists(bufs[0].Encode(), bufs[1].Encode())
		out, status = []Value{BoolValue(present)}, st
	case "state/1.delete":
		status = vm.host.StateDelete(bufs[0].Encode(), bufs[1].Encode())
	case "ctx/1.sender":
		out = []Value{vm.host.Sender()}
	case "ctx/1.unit":
		out = []Value{vm.host.Unit()}
	case "ctx/1.gas_left":
		out = []Value{WordValue(vm.gasLimit - vm.gasUsed)}
	case "ctx/1.value":
		out = []Value{WordValue(vm.host.TxValue())}
	case "crypto/1.digest":
		out = []Value{Digest(bufs[0])}
	case "log/1.emit":
		status = vm.host.Emit(bufs[0].Encode(), payload)
	case "sys/1.abort":
		return stack, &Trap{Code: hostabi.AbortCode(words[0])}
	case "sys/1.revert":
		return stack, &RevertError{Msg: string(bufs[0].Encode())}
	default:
		return stack, fmt.Errorf("unhandled host symbol %q", sym)
	}

	stack = append(stack, out...)
	if sig.Result == hostabi.ResultStatus {
		stack = append(stack, WordValue(uint64(int64(status)))) //nolint:gosec // status wire form
	}
	return stack, nil
}
