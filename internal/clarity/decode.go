package clarity

import (
	"bytes"
	"math/big"
	"strings"
)

// Parse reads raw as wire bytes when its first byte is a type prefix
// (0x00-0x0e), otherwise as tagged JSON. Empty input is Absent.
func Parse(raw []byte) (Value, error) {
	if len(raw) == 0 {
		return Absent, nil
	}
	if raw[0] <= byte(TypeStringUTF8) {
		v, err := Deserialize(raw)
		if err == nil {
			return v, nil
		}
		// 0x09-0x0d double as JSON whitespace.
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || trimmed[0] <= byte(TypeStringUTF8) {
			return nil, err
		}
		raw = trimmed
	}
	return ParseJSON(raw)
}

// Decode parses raw and strips response and optional wrappers. An empty
// optional or an unrecognized shape yields Absent. The ok/err distinction is
// lost here; callers that care check the outer value first with IsErr.
func Decode(raw []byte) (Value, error) {
	v, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return Unwrap(v), nil
}

// DecodeHex is Decode for hex-encoded wire bytes.
func DecodeHex(s string) (Value, error) {
	v, err := DeserializeHex(s)
	if err != nil {
		return nil, err
	}
	return Unwrap(v), nil
}

// Unwrap strips any number of ok/err/some layers.
func Unwrap(v Value) Value {
	for i := 0; i <= maxDepth; i++ {
		switch x := v.(type) {
		case nil, None:
			return Absent
		case ResponseOk:
			v = x.Inner
		case ResponseErr:
			v = x.Inner
		case Some:
			v = x.Inner
		default:
			return v
		}
	}
	return Absent
}

// IsErr reports whether the outermost layer of v is an err response.
func IsErr(v Value) bool {
	_, ok := v.(ResponseErr)
	return ok
}

// BigUint extracts a non-negative integer from v, returning zero when none can
// be found. Tuples are probed for their first uint field in key order, since
// balance-style tuples change field names between contract versions.
func BigUint(v Value) *big.Int {
	switch x := Unwrap(v).(type) {
	case UInt:
		if x.V != nil {
			return new(big.Int).Set(x.V)
		}
	case Int:
		if x.V != nil && x.V.Sign() >= 0 {
			return new(big.Int).Set(x.V)
		}
	case Tuple:
		for _, k := range x.Keys() {
			if u, ok := x[k].(UInt); ok && u.V != nil {
				return new(big.Int).Set(u.V)
			}
		}
	case StringASCII:
		if n, ok := parseRepr(string(x)); ok {
			return n
		}
	case StringUTF8:
		if n, ok := parseRepr(string(x)); ok {
			return n
		}
	}
	return new(big.Int)
}

// Uint64 is BigUint narrowed to uint64. ok is false when v holds no integer
// or the integer does not fit.
func Uint64(v Value) (uint64, bool) {
	switch Unwrap(v).(type) {
	case UInt, Int, Tuple, StringASCII, StringUTF8:
	default:
		return 0, false
	}
	n := BigUint(v)
	if !n.IsUint64() {
		return 0, false
	}
	return n.Uint64(), true
}

// Field returns the named tuple field of v with wrappers stripped. A field
// holding a single-key {value: x} tuple is unwrapped to x. Missing fields are
// Absent.
func Field(v Value, name string) Value {
	t, ok := Unwrap(v).(Tuple)
	if !ok {
		return Absent
	}
	f, ok := t[name]
	if !ok {
		return Absent
	}
	f = Unwrap(f)
	if inner, ok := f.(Tuple); ok && len(inner) == 1 {
		if w, ok := inner["value"]; ok {
			return Unwrap(w)
		}
	}
	return f
}

// Text returns string-like payloads: strings and principals.
func Text(v Value) (string, bool) {
	switch x := Unwrap(v).(type) {
	case StringASCII:
		return string(x), true
	case StringUTF8:
		return string(x), true
	case Principal:
		return x.String(), true
	default:
		return "", false
	}
}

func parseRepr(s string) (*big.Int, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "u")
	if !reDecimal.MatchString(s) || strings.HasPrefix(s, "-") {
		return nil, false
	}
	return new(big.Int).SetString(s, 10)
}
