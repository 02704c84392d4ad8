// Package ast defines the typed AST handed to the compiler core by the
// front end. Parsing and name/type resolution happen outside this module;
// every expression arrives with a resolved type and every function with a
// resolved signature. Annotation text is attached raw and interpreted later
// by HIR lowering and the conflict-domain analyzer.
package ast

import (
	"sable/internal/source"
)

// Unit is one compilation unit: a single contract plus its embedded sources.
type Unit struct {
	// UnitID prefixes every domain key produced by this unit.
	UnitID string `json:"unit_id"`
	// Files carries the original source texts so diagnostics can render
	// context. Span.File indexes into this slice.
	Files   []UnitFile   `json:"files"`
	Structs []StructDecl `json:"structs,omitempty"`
	Funcs   []Func       `json:"funcs"`
}

// UnitFile is an embedded source file.
type UnitFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// StructDecl declares a nominal struct type.
type StructDecl struct {
	Name   string      `json:"name"`
	Fields []FieldDecl `json:"fields"`
	Span   source.Span `json:"span"`
}

// FieldDecl is one struct member.
type FieldDecl struct {
	Name string      `json:"name"`
	Type TypeRef     `json:"type"`
	Span source.Span `json:"span"`
}

// Annotation is raw author-supplied metadata, e.g. reads("acct:*"),
// writes("supply"), pure, payable, proof("OB-17").
type Annotation struct {
	Name string      `json:"name"`
	Args []string    `json:"args,omitempty"`
	Span source.Span `json:"span"`
}

// SelfMode describes how a method call binds its receiver, resolved by the
// front end from the callee signature.
type SelfMode uint8

const (
	// SelfNone marks a free function.
	SelfNone SelfMode = iota
	// SelfShared takes the receiver by shared borrow.
	SelfShared
	// SelfExclusive takes the receiver by mutable borrow.
	SelfExclusive
	// SelfValue consumes the receiver.
	SelfValue
)

// Func is a resolved function declaration.
type Func struct {
	Name        string       `json:"name"`
	Public      bool         `json:"public"`
	Annotations []Annotation `json:"annotations,omitempty"`
	Params      []Param      `json:"params"`
	Result      TypeRef      `json:"result"`
	SelfMode    SelfMode     `json:"self_mode,omitempty"`
	Body        []Stmt       `json:"body"`
	Span        source.Span  `json:"span"`
}

// Param is a resolved function parameter.
type Param struct {
	Name string      `json:"name"`
	Type TypeRef     `json:"type"`
	Mut  bool        `json:"mut,omitempty"`
	Span source.Span `json:"span"`
}

// TypeRef is a serializable resolved type expression. Interned to a
// types.TypeID during HIR lowering.
type TypeRef struct {
	// Name is a primitive name (unit, bool, i32/i64/i128, u8/u32/u64/u128,
	// address, string, bytes), a declared struct name, or "tuple".
	Name string `json:"name"`
	// Elems holds tuple element types when Name == "tuple".
	Elems []TypeRef `json:"elems,omitempty"`
}
