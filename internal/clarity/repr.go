package clarity

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Repr renders v in Clarity literal syntax, e.g. (ok (some u7)).
func Repr(v Value) string {
	var sb strings.Builder
	writeRepr(&sb, v, 0)
	return sb.String()
}

func writeRepr(sb *strings.Builder, v Value, depth int) {
	if depth > maxDepth {
		sb.WriteString("...")
		return
	}
	switch x := v.(type) {
	case nil, None:
		sb.WriteString("none")
	case Int:
		sb.WriteString(bigString(x.V))
	case UInt:
		sb.WriteString("u" + bigString(x.V))
	case Bool:
		sb.WriteString(strconv.FormatBool(bool(x)))
	case Buffer:
		sb.WriteString(hexutil.Encode(x))
	case Principal:
		sb.WriteString("'" + x.String())
	case StringASCII:
		sb.WriteString(strconv.Quote(string(x)))
	case StringUTF8:
		sb.WriteString("u" + strconv.Quote(string(x)))
	case ResponseOk:
		wrapRepr(sb, "ok", x.Inner, depth)
	case ResponseErr:
		wrapRepr(sb, "err", x.Inner, depth)
	case Some:
		wrapRepr(sb, "some", x.Inner, depth)
	case List:
		sb.WriteString("(list")
		for _, e := range x {
			sb.WriteByte(' ')
			writeRepr(sb, e, depth+1)
		}
		sb.WriteByte(')')
	case Tuple:
		sb.WriteString("(tuple")
		for _, k := range x.Keys() {
			sb.WriteString(" (" + k + " ")
			writeRepr(sb, x[k], depth+1)
			sb.WriteByte(')')
		}
		sb.WriteByte(')')
	default:
		sb.WriteString(fmt.Sprintf("<%T>", v))
	}
}

func wrapRepr(sb *strings.Builder, tag string, inner Value, depth int) {
	sb.WriteString("(" + tag + " ")
	writeRepr(sb, inner, depth+1)
	sb.WriteByte(')')
}

func bigString(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}

// ParseArg reads a simple literal as typed on a command line: u7, -3 or i-3,
// true/false, 'SP... or SP... principals, 0x-prefixed wire hex, and "text".
// Anything else is a string-ascii.
func ParseArg(s string) (Value, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "true":
		return Bool(true), nil
	case s == "false":
		return Bool(false), nil
	case s == "none":
		return None{}, nil
	case strings.HasPrefix(s, "0x"):
		return DeserializeHex(s)
	case strings.HasPrefix(s, "'"):
		return ParsePrincipal(s[1:])
	case len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"':
		return StringASCII(s[1 : len(s)-1]), nil
	case strings.HasPrefix(s, "u") && isDigits(s[1:]):
		n, _ := new(big.Int).SetString(s[1:], 10)
		if n.Cmp(maxUint128) > 0 {
			return nil, fmt.Errorf("uint literal %q out of range", s)
		}
		return UInt{V: n}, nil
	case strings.HasPrefix(s, "i") && isSigned(s[1:]), isSigned(s):
		n, _ := new(big.Int).SetString(strings.TrimPrefix(s, "i"), 10)
		if n.Cmp(maxInt128) > 0 || n.Cmp(minInt128) < 0 {
			return nil, fmt.Errorf("int literal %q out of range", s)
		}
		return Int{V: n}, nil
	}
	if p, err := ParsePrincipal(s); err == nil {
		return p, nil
	}
	return StringASCII(s), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isSigned(s string) bool {
	return isDigits(strings.TrimPrefix(s, "-"))
}
