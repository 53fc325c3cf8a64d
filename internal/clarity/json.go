package clarity

import (
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
)

var (
	jsonAPI = sonic.Config{UseNumber: true}.Froze()

	reReprUInt = regexp.MustCompile(`^u([0-9]+)$`)
	reDecimal  = regexp.MustCompile(`^-?[0-9]+$`)
)

// ParseJSON parses the tagged JSON shapes that client libraries and indexers
// emit for Clarity values:
//
//	{"type":"(optional uint)","value":{"type":"uint","value":"7"}}   cvToJSON
//	{"type":"(response uint uint)","success":true,"value":{...}}     cvToJSON
//	{"type":"tuple","data":{"price":{"type":"uint","value":"10"}}}   object form
//	{"type":1,"value":"7"}                                           numeric type tags
//	"0x0100...07"                                                    wire hex
//	"u7"                                                             repr
//
// Unknown tags decode to Absent. Only invalid JSON or invalid embedded wire
// hex is an error.
func ParseJSON(data []byte) (Value, error) {
	var raw any
	if err := jsonAPI.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return fromJSON(raw, 0)
}

func fromJSON(raw any, depth int) (Value, error) {
	if depth > maxDepth {
		return nil, ErrTooDeep
	}

	switch x := raw.(type) {
	case nil:
		return Absent, nil
	case bool:
		return Bool(x), nil
	case json.Number:
		return numberValue(string(x)), nil
	case float64:
		return numberValue(big.NewFloat(x).Text('f', 0)), nil
	case string:
		return stringValue(x)
	case []any:
		out := make(List, 0, len(x))
		for _, item := range x {
			v, err := fromJSON(item, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case map[string]any:
		if tag, ok := x["type"]; ok {
			return taggedValue(tag, x, depth)
		}
		return tupleFromMap(x, depth)
	default:
		return Absent, nil
	}
}

func stringValue(s string) (Value, error) {
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		return DeserializeHex(s)
	case reReprUInt.MatchString(s):
		return numberValue(s[1:]), nil
	default:
		return StringASCII(s), nil
	}
}

func numberValue(s string) Value {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Absent
	}
	if n.Sign() < 0 {
		return Int{V: n}
	}
	return UInt{V: n}
}

func taggedValue(tag any, m map[string]any, depth int) (Value, error) {
	t, ok := tagType(tag, m)
	if !ok {
		return Absent, nil
	}
	payload := m["value"]

	switch t {
	case TypeResponseOk, TypeResponseErr, TypeOptionalSome:
		inner, err := fromJSON(payload, depth+1)
		if err != nil {
			return nil, err
		}
		switch t {
		case TypeResponseOk:
			return ResponseOk{Inner: inner}, nil
		case TypeResponseErr:
			return ResponseErr{Inner: inner}, nil
		}
		if payload == nil {
			return None{}, nil
		}
		return Some{Inner: inner}, nil

	case TypeOptionalNone:
		return None{}, nil

	case TypeUInt, TypeInt:
		n, ok := scalarInt(payload)
		if !ok {
			return Absent, nil
		}
		if t == TypeInt {
			return Int{V: n}, nil
		}
		if n.Sign() < 0 {
			return Absent, nil
		}
		return UInt{V: n}, nil

	case TypeBoolTrue, TypeBoolFalse:
		if b, ok := payload.(bool); ok {
			return Bool(b), nil
		}
		return Bool(t == TypeBoolTrue), nil

	case TypeBuffer:
		s, _ := payload.(string)
		b, err := decodeHex(s)
		if err != nil {
			return Absent, nil
		}
		return Buffer(b), nil

	case TypeStringASCII:
		s, ok := payload.(string)
		if !ok {
			return Absent, nil
		}
		return StringASCII(s), nil

	case TypeStringUTF8:
		s, ok := payload.(string)
		if !ok {
			return Absent, nil
		}
		return StringUTF8(s), nil

	case TypePrincipalStandard, TypePrincipalContract:
		s, ok := payload.(string)
		if !ok {
			return Absent, nil
		}
		p, err := ParsePrincipal(s)
		if err != nil {
			return Absent, nil
		}
		return p, nil

	case TypeTuple:
		fields, ok := payload.(map[string]any)
		if !ok {
			fields, ok = m["data"].(map[string]any)
		}
		if !ok {
			return Absent, nil
		}
		return tupleFromMap(fields, depth)

	case TypeList:
		items, ok := payload.([]any)
		if !ok {
			items, ok = m["list"].([]any)
		}
		if !ok {
			return Absent, nil
		}
		return fromJSON(items, depth)
	}
	return Absent, nil
}

func tupleFromMap(m map[string]any, depth int) (Value, error) {
	out := make(Tuple, len(m))
	for k, raw := range m {
		v, err := fromJSON(raw, depth+1)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// tagType maps the many historical tag spellings onto wire types.
func tagType(tag any, m map[string]any) (Type, bool) {
	if n, ok := tag.(json.Number); ok {
		i, err := n.Int64()
		if err != nil || i < 0 || i > int64(TypeStringUTF8) {
			return 0, false
		}
		return Type(i), true
	}
	if f, ok := tag.(float64); ok {
		if f < 0 || f > float64(TypeStringUTF8) {
			return 0, false
		}
		return Type(int(f)), true
	}

	s, ok := tag.(string)
	if !ok {
		return 0, false
	}
	s = strings.ToLower(strings.TrimSpace(s))

	switch s {
	case "ok", "responseok", "response_ok":
		return TypeResponseOk, true
	case "err", "responseerr", "response_err":
		return TypeResponseErr, true
	case "none", "(optional none)", "optionalnone", "optional_none":
		return TypeOptionalNone, true
	case "some", "optional", "optionalsome", "optional_some":
		return TypeOptionalSome, true
	case "uint":
		return TypeUInt, true
	case "int":
		return TypeInt, true
	case "true":
		return TypeBoolTrue, true
	case "false", "bool":
		return TypeBoolFalse, true
	case "buffer", "buff":
		return TypeBuffer, true
	case "ascii", "string-ascii", "stringascii":
		return TypeStringASCII, true
	case "utf8", "string-utf8", "stringutf8":
		return TypeStringUTF8, true
	case "principal", "address", "principalstandard":
		return TypePrincipalStandard, true
	case "contract", "principalcontract":
		return TypePrincipalContract, true
	case "tuple":
		return TypeTuple, true
	case "list":
		return TypeList, true
	}

	switch {
	case strings.HasPrefix(s, "(response"):
		if success, _ := m["success"].(bool); success {
			return TypeResponseOk, true
		}
		return TypeResponseErr, true
	case strings.HasPrefix(s, "(optional"):
		return TypeOptionalSome, true
	case strings.HasPrefix(s, "(tuple"):
		return TypeTuple, true
	case strings.HasPrefix(s, "(list"):
		return TypeList, true
	case strings.HasPrefix(s, "(buff"):
		return TypeBuffer, true
	case strings.HasPrefix(s, "(string-ascii"):
		return TypeStringASCII, true
	case strings.HasPrefix(s, "(string-utf8"):
		return TypeStringUTF8, true
	}
	return 0, false
}

func scalarInt(raw any) (*big.Int, bool) {
	var s string
	switch x := raw.(type) {
	case json.Number:
		s = string(x)
	case float64:
		s = big.NewFloat(x).Text('f', 0)
	case string:
		s = strings.TrimPrefix(strings.TrimSpace(x), "u")
	default:
		return nil, false
	}
	if !reDecimal.MatchString(s) {
		return nil, false
	}
	return new(big.Int).SetString(s, 10)
}
