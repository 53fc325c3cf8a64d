// Package clarity models Clarity values as returned by a Stacks node and
// normalizes them into plain data.
//
// Values arrive either as consensus wire bytes (usually hex text) or as one of
// the tagged JSON shapes produced by client libraries. Both are parsed into the
// same Value union. Decode then strips response and optional wrappers so that
// callers only deal with the payload.
package clarity

import (
	"math/big"
	"sort"
)

// Type is the consensus type prefix of a serialized value.
type Type byte

const (
	TypeInt               Type = 0x00
	TypeUInt              Type = 0x01
	TypeBuffer            Type = 0x02
	TypeBoolTrue          Type = 0x03
	TypeBoolFalse         Type = 0x04
	TypePrincipalStandard Type = 0x05
	TypePrincipalContract Type = 0x06
	TypeResponseOk        Type = 0x07
	TypeResponseErr       Type = 0x08
	TypeOptionalNone      Type = 0x09
	TypeOptionalSome      Type = 0x0a
	TypeList              Type = 0x0b
	TypeTuple             Type = 0x0c
	TypeStringASCII       Type = 0x0d
	TypeStringUTF8        Type = 0x0e
)

func (t Type) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeUInt:
		return "uint"
	case TypeBuffer:
		return "buffer"
	case TypeBoolTrue, TypeBoolFalse:
		return "bool"
	case TypePrincipalStandard, TypePrincipalContract:
		return "principal"
	case TypeResponseOk:
		return "ok"
	case TypeResponseErr:
		return "err"
	case TypeOptionalNone:
		return "none"
	case TypeOptionalSome:
		return "some"
	case TypeList:
		return "list"
	case TypeTuple:
		return "tuple"
	case TypeStringASCII:
		return "string-ascii"
	case TypeStringUTF8:
		return "string-utf8"
	default:
		return "unknown"
	}
}

// Value is a decoded Clarity value. The concrete types below are the only
// implementations.
type Value interface {
	Type() Type
}

type (
	Int struct{ V *big.Int }
	// UInt holds a 128-bit unsigned integer. V is never negative.
	UInt   struct{ V *big.Int }
	Buffer []byte
	Bool   bool

	ResponseOk  struct{ Inner Value }
	ResponseErr struct{ Inner Value }

	// None is the empty optional. It doubles as the absent sentinel that
	// Decode returns for empty optionals and unrecognized shapes.
	None struct{}
	Some struct{ Inner Value }

	List        []Value
	Tuple       map[string]Value
	StringASCII string
	StringUTF8  string
)

// Absent is returned wherever a value is missing or could not be understood.
var Absent Value = None{}

func (Int) Type() Type         { return TypeInt }
func (UInt) Type() Type        { return TypeUInt }
func (Buffer) Type() Type      { return TypeBuffer }
func (ResponseOk) Type() Type  { return TypeResponseOk }
func (ResponseErr) Type() Type { return TypeResponseErr }
func (None) Type() Type        { return TypeOptionalNone }
func (Some) Type() Type        { return TypeOptionalSome }
func (List) Type() Type        { return TypeList }
func (Tuple) Type() Type       { return TypeTuple }
func (StringASCII) Type() Type { return TypeStringASCII }
func (StringUTF8) Type() Type  { return TypeStringUTF8 }

func (b Bool) Type() Type {
	if b {
		return TypeBoolTrue
	}
	return TypeBoolFalse
}

// IsAbsent reports whether v is nil or the absent sentinel.
func IsAbsent(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(None)
	return ok
}

// Keys returns the tuple field names in wire order (lexicographic).
func (t Tuple) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func NewUInt(n uint64) UInt { return UInt{V: new(big.Int).SetUint64(n)} }

func NewInt(n int64) Int { return Int{V: big.NewInt(n)} }
