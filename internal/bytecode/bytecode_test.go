package bytecode_test

import (
	"bytes"
	"testing"

	"sable/internal/bytecode"
)

func TestCodeRoundTrip(t *testing.T) {
	code := []bytecode.Instr{
		{Op: bytecode.OpLocalGet, A: 0},
		{Op: bytecode.OpConst, A: 300}, // forces a multi-byte varint
		{Op: bytecode.OpAdd},
		{Op: bytecode.OpLocalTee, A: 1},
		{Op: bytecode.OpBrIfNot, A: 6},
		{Op: bytecode.OpMemPut, A: 2, B: 128},
		{Op: bytecode.OpReturn},
	}
	enc := bytecode.EncodeCode(code)
	dec, err := bytecode.DecodeCode(enc)
	if err != nil {
		t.Fatal(err)
	}
	if len(dec) != len(code) {
		t.Fatalf("decoded %d instrs, want %d", len(dec), len(code))
	}
	for i := range code {
		if dec[i] != code[i] {
			t.Fatalf("instr %d: %v != %v", i, dec[i], code[i])
		}
	}
	// Determinism.
	if !bytes.Equal(enc, bytecode.EncodeCode(code)) {
		t.Fatal("encoding is not deterministic")
	}
}

func TestDecodeCode_Rejects(t *testing.T) {
	if _, err := bytecode.DecodeCode([]byte{0xFF}); err == nil {
		t.Fatal("bad opcode accepted")
	}
	if _, err := bytecode.DecodeCode([]byte{byte(bytecode.OpConst)}); err == nil {
		t.Fatal("truncated operand accepted")
	}
	// Branch past the end.
	bad := bytecode.EncodeCode([]bytecode.Instr{{Op: bytecode.OpBr, A: 9}})
	if _, err := bytecode.DecodeCode(bad); err == nil {
		t.Fatal("out-of-range branch accepted")
	}
}

func testModule() *bytecode.Module {
	m := bytecode.NewModule("bank", 4)
	m.Consts = []bytecode.Const{
		{Kind: bytecode.ConstWord, Word: 42},
		{Kind: bytecode.ConstBytes, Bytes: []byte("acct")},
	}
	m.Imports = []bytecode.Import{
		{Module: "state", Version: 1, Name: "write"},
		{Module: "sys", Version: 1, Name: "abort"},
	}
	code := bytecode.EncodeCode([]bytecode.Instr{
		{Op: bytecode.OpLocalGet, A: 0},
		{Op: bytecode.OpConst, A: 0},
		{Op: bytecode.OpAdd},
		{Op: bytecode.OpReturn},
	})
	m.Funcs = []bytecode.Func{{
		Name:      bytecode.Mangle("bank", "bump"),
		NumParams: 1,
		NumLocals: 1,
		Code:      code,
		Gas:       bytecode.StaticGas([]bytecode.Instr{{Op: bytecode.OpAdd}}),
	}}
	m.Exports = []bytecode.Export{{Name: "bank::bump", Func: 0}}
	return m
}

func TestContainerRoundTrip(t *testing.T) {
	m := testModule()
	data, err := bytecode.Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	back, err := bytecode.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if back.UnitID != "bank" || back.MemoryPages != 4 {
		t.Fatalf("prologue lost: %+v", back)
	}
	fn, ok := back.Lookup("bank::bump")
	if !ok || fn.NumParams != 1 {
		t.Fatalf("export lost: %+v", back.Exports)
	}
	if back.Imports[0].Symbol() != "state/1.write" {
		t.Fatalf("import symbol %q", back.Imports[0].Symbol())
	}
}

func TestDecode_ValidatesReferences(t *testing.T) {
	m := testModule()
	m.Exports[0].Func = 7
	data, err := bytecode.Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bytecode.Decode(data); err == nil {
		t.Fatal("dangling export accepted")
	}

	m = testModule()
	m.Funcs[0].Code = bytecode.EncodeCode([]bytecode.Instr{
		{Op: bytecode.OpConst, A: 99},
		{Op: bytecode.OpReturn},
	})
	data, err = bytecode.Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bytecode.Decode(data); err == nil {
		t.Fatal("dangling constant accepted")
	}
}

func TestDecode_RejectsBadPrologue(t *testing.T) {
	m := testModule()
	m.Magic = "NOPE"
	if _, err := bytecode.Encode(m); err == nil {
		t.Fatal("bad magic encoded")
	}
	m = testModule()
	data, err := bytecode.Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bytecode.Decode(data[:len(data)/2]); err == nil {
		t.Fatal("truncated container accepted")
	}
}
