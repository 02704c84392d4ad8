package bytecode

import "fmt"

// Magic and Schema identify the artifact container. Schema bumps on any
// incompatible layout change.
const (
	Magic  = "SBLC"
	Schema = uint16(1)
)

// ConstKind discriminates constant-pool entries.
type ConstKind uint8

const (
	// ConstWord is a 64-bit scalar (integers, bools, addresses that fit).
	ConstWord ConstKind = iota
	// ConstBytes is raw data: strings, addresses, wide integers, staged
	// host-call buffers.
	ConstBytes
)

// Const is one constant-pool entry.
type Const struct {
	_msgpack struct{} `msgpack:",as_array"`

	Kind  ConstKind
	Word  uint64
	Bytes []byte
}

// Import names one host function the module links against, grouped by
// capability module and version.
type Import struct {
	_msgpack struct{} `msgpack:",as_array"`

	Module  string
	Version uint16
	Name    string
}

// Symbol renders the canonical import symbol, e.g. "state/1.read".
func (im Import) Symbol() string {
	return fmt.Sprintf("%s/%d.%s", im.Module, im.Version, im.Name)
}

// Export maps a mangled public name to a function index.
type Export struct {
	_msgpack struct{} `msgpack:",as_array"`

	Name string
	Func uint32
}

// Func is one compiled function body.
type Func struct {
	_msgpack struct{} `msgpack:",as_array"`

	// Name is the mangled name, present for every function so stack
	// traces and the disassembler stay readable.
	Name      string
	NumParams uint32
	// NumLocals counts named local slots, parameters included.
	NumLocals uint32
	// ResultWords is how many stack words the function returns.
	ResultWords uint32
	// FrameBytes is the frame-memory reservation for values that spill
	// out of locals and for host-call buffers.
	FrameBytes uint32
	// Code is the varint-encoded instruction stream.
	Code []byte
	// Gas is the static worst-case-per-iteration cost estimate.
	Gas uint64
}

// Module is the compiled artifact for one unit.
type Module struct {
	_msgpack struct{} `msgpack:",as_array"`

	Magic  string
	Schema uint16

	UnitID string
	// MemoryPages bounds total linear memory at run time.
	MemoryPages uint32

	Consts  []Const
	Imports []Import
	Funcs   []Func
	Exports []Export
}

// NewModule returns an empty module with the prologue filled in.
func NewModule(unitID string, memoryPages uint32) *Module {
	return &Module{
		Magic:       Magic,
		Schema:      Schema,
		UnitID:      unitID,
		MemoryPages: memoryPages,
	}
}

// Mangle produces the exported symbol for a public function.
func Mangle(unitID, name string) string {
	return unitID + "::" + name
}

// Lookup resolves an export by mangled name.
func (m *Module) Lookup(name string) (*Func, bool) {
	for _, e := range m.Exports {
		if e.Name == name {
			if int(e.Func) < len(m.Funcs) {
				return &m.Funcs[e.Func], true
			}
			return nil, false
		}
	}
	return nil, false
}
