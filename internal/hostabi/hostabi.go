// Package hostabi declares the host capability surface contracts are
// compiled against: versioned capability modules, the signature of every
// host function, and the shared status-code convention. The backend
// consults this table to marshal host calls; the bytecode container groups
// its import section by these modules.
package hostabi

import "fmt"

// Status is the i32 result convention shared by buffer-returning host
// calls: zero is success, a positive value reports the full size of a
// datum that did not fit the caller's buffer, and negatives are errors.
type Status int32

const (
	StatusOK              Status = 0
	StatusNotFound        Status = -1
	StatusInvalidArgument Status = -2
	StatusBufferTooSmall  Status = -3
	StatusLimitExceeded   Status = -4
	StatusOutOfResource   Status = -5
	StatusInternal        Status = -6
)

func (s Status) String() string {
	switch {
	case s > 0:
		return fmt.Sprintf("size(%d)", int32(s))
	case s == StatusOK:
		return "ok"
	case s == StatusNotFound:
		return "not_found"
	case s == StatusInvalidArgument:
		return "invalid_argument"
	case s == StatusBufferTooSmall:
		return "buffer_too_small"
	case s == StatusLimitExceeded:
		return "limit_exceeded"
	case s == StatusOutOfResource:
		return "out_of_resource"
	case s == StatusInternal:
		return "internal"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// Err reports whether the status is an error.
func (s Status) Err() bool { return s < 0 }

// ParamKind classifies one host-call parameter word.
type ParamKind uint8

const (
	// ParamWord is a plain 64-bit scalar.
	ParamWord ParamKind = iota
	// ParamPtr is a linear-memory offset; always paired with a following
	// ParamLen for the same buffer.
	ParamPtr
	// ParamLen is the byte length of the preceding ParamPtr buffer.
	ParamLen
	// ParamCap is the capacity of a caller-provided output buffer.
	ParamCap
)

// Param is one parameter of a host function.
type Param struct {
	Name string
	Kind ParamKind
}

// ResultKind classifies what a host function returns.
type ResultKind uint8

const (
	// ResultNone: no result word.
	ResultNone ResultKind = iota
	// ResultStatus: an i32 Status.
	ResultStatus
	// ResultWord: a plain 64-bit scalar.
	ResultWord
	// ResultNever: the call does not return (trap/abort/revert).
	ResultNever
)

// WireKind classifies one operand-stack slot group in the marshalled
// form of a host call. On a boxed stack a ParamPtr/ParamLen pair
// collapses to a single buffer value; word-expanded payloads travel with
// a trailing count word so the host can pop them without type knowledge.
type WireKind uint8

const (
	// WireBytes is one buffer value.
	WireBytes WireKind = iota
	// WireWords is a word-expanded payload plus its trailing count word.
	WireWords
	// WireWord is one scalar word.
	WireWord
	// WireCap is the output capacity, in words.
	WireCap
)

// OutByCap marks calls whose output word count equals the WireCap
// argument.
const OutByCap = -1

// Func is the signature of one host function. Params describe the flat
// ABI form; Wire describes the marshalled stack form the compiler emits
// (push order) and Out how many output words precede the status word.
type Func struct {
	Module  string
	Version uint16
	Name    string
	Params  []Param
	Result  ResultKind
	Wire    []WireKind
	Out     int
}

// Symbol returns the import symbol, e.g. "state/1.read".
func (f Func) Symbol() string {
	return fmt.Sprintf("%s/%d.%s", f.Module, f.Version, f.Name)
}

func ptr(name string) Param { return Param{Name: name, Kind: ParamPtr} }
func ln(name string) Param  { return Param{Name: name, Kind: ParamLen} }
func cp(name string) Param  { return Param{Name: name, Kind: ParamCap} }
func word(name string) Param {
	return Param{Name: name, Kind: ParamWord}
}

func buf(name string) []Param {
	return []Param{ptr(name + "_off"), ln(name + "_len")}
}

func out(name string) []Param {
	return []Param{ptr(name + "_off"), cp(name + "_cap")}
}

func sig(params ...[]Param) []Param {
	var flat []Param
	for _, p := range params {
		flat = append(flat, p...)
	}
	return flat
}

// table is the full capability surface, in import-section order.
var table = []Func{
	// state/1: keyed persistent storage. Namespace and key arrive as raw
	// bytes; singleton namespaces pass an empty key.
	{Module: "state", Version: 1, Name: "read",
		Params: sig(buf("ns"), buf("key"), out("val")), Result: ResultStatus,
		Wire:   []WireKind{WireBytes, WireBytes, WireCap}, Out: OutByCap},
	{Module: "state", Version: 1, Name: "write",
		Params: sig(buf("ns"), buf("key"), buf("val")), Result: ResultStatus,
		Wire:   []WireKind{WireBytes, WireBytes, WireWords}},
	{Module: "state", Version: 1, Name: "exists",
		Params: sig(buf("ns"), buf("key")), Result: ResultStatus,
		Wire:   []WireKind{WireBytes, WireBytes}, Out: 1},
	{Module: "state", Version: 1, Name: "delete",
		Params: sig(buf("ns"), buf("key")), Result: ResultStatus,
		Wire:   []WireKind{WireBytes, WireBytes}},

	// ctx/1: transaction environment queries.
	{Module: "ctx", Version: 1, Name: "sender",
		Params: out("addr"), Result: ResultStatus,
		Wire:   []WireKind{WireCap}, Out: OutByCap},
	{Module: "ctx", Version: 1, Name: "unit",
		Params: out("id"), Result: ResultStatus,
		Wire:   []WireKind{WireCap}, Out: OutByCap},
	{Module: "ctx", Version: 1, Name: "gas_left",
		Result: ResultWord, Out: 1},
	{Module: "ctx", Version: 1, Name: "value",
		Result: ResultWord, Out: 1},

	// crypto/1.
	{Module: "crypto", Version: 1, Name: "digest",
		Params: sig(buf("in"), out("digest")), Result: ResultStatus,
		Wire:   []WireKind{WireBytes, WireCap}, Out: OutByCap},

	// log/1.
	{Module: "log", Version: 1, Name: "emit",
		Params: sig(buf("event"), buf("payload")), Result: ResultStatus,
		Wire:   []WireKind{WireBytes, WireWords}},

	// sys/1: neither call returns. abort carries a trap code (overflow,
	// bounds, resource); revert carries a caller message.
	{Module: "sys", Version: 1, Name: "abort",
		Params: []Param{word("code")}, Result: ResultNever,
		Wire:   []WireKind{WireWord}},
	{Module: "sys", Version: 1, Name: "revert",
		Params: buf("msg"), Result: ResultNever,
		Wire:   []WireKind{WireBytes}},
}

var bySymbol = func() map[string]int {
	m := make(map[string]int, len(table))
	for i, f := range table {
		m[f.Symbol()] = i
	}
	return m
}()

// Table returns the capability surface in canonical order. Callers must
// not modify the returned slice.
func Table() []Func { return table }

// Lookup resolves a symbol like "state/1.read" to its table index.
func Lookup(symbol string) (int, bool) {
	i, ok := bySymbol[symbol]
	return i, ok
}

// MustIndex resolves a symbol or panics; for compiler-internal references
// that are spelled inline.
func MustIndex(symbol string) int {
	i, ok := bySymbol[symbol]
	if !ok {
		panic(fmt.Sprintf("hostabi: unknown symbol %q", symbol))
	}
	return i
}

// AbortCode enumerates sys/1.abort trap reasons.
type AbortCode uint32

const (
	AbortOverflow AbortCode = iota + 1
	AbortDivByZero
	AbortBounds
	AbortResource
	AbortUnreachable
	// AbortHost is the escalation of a non-success host status.
	AbortHost
)

func (c AbortCode) String() string {
	switch c {
	case AbortOverflow:
		return "overflow"
	case AbortDivByZero:
		return "div_by_zero"
	case AbortBounds:
		return "bounds"
	case AbortResource:
		return "resource"
	case AbortUnreachable:
		return "unreachable"
	case AbortHost:
		return "host"
	default:
		return fmt.Sprintf("abort(%d)", uint32(c))
	}
}
