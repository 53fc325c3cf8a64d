package clarity

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// maxDepth bounds recursion on hostile input. Real contract values nest far
// less than this.
const maxDepth = 32

var (
	ErrMalformed = errors.New("clarity: malformed wire value")
	ErrTooDeep   = errors.New("clarity: value nested too deeply")

	two128     = new(big.Int).Lsh(big.NewInt(1), 128)
	maxUint128 = new(big.Int).Sub(two128, big.NewInt(1))
	maxInt128  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minInt128  = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// Deserialize parses one consensus-serialized value. Trailing bytes are an
// error.
func Deserialize(b []byte) (Value, error) {
	r := &wireReader{buf: b}
	v, err := r.value(0)
	if err != nil {
		return nil, err
	}
	if r.off != len(r.buf) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(r.buf)-r.off)
	}
	return v, nil
}

// DeserializeHex accepts hex with or without the 0x prefix.
func DeserializeHex(s string) (Value, error) {
	b, err := decodeHex(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Deserialize(b)
}

type wireReader struct {
	buf []byte
	off int
}

func (r *wireReader) take(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.buf) {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrMalformed, n, r.off, len(r.buf)-r.off)
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *wireReader) u8() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *wireReader) u32() (int, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	n := binary.BigEndian.Uint32(b)
	if int(n) > len(r.buf)-r.off {
		return 0, fmt.Errorf("%w: length %d exceeds remaining input", ErrMalformed, n)
	}
	return int(n), nil
}

func (r *wireReader) value(depth int) (Value, error) {
	if depth > maxDepth {
		return nil, ErrTooDeep
	}
	prefix, err := r.u8()
	if err != nil {
		return nil, err
	}

	switch Type(prefix) {
	case TypeInt, TypeUInt:
		b, err := r.take(16)
		if err != nil {
			return nil, err
		}
		n := new(big.Int).SetBytes(b)
		if Type(prefix) == TypeUInt {
			return UInt{V: n}, nil
		}
		if b[0]&0x80 != 0 {
			n.Sub(n, two128)
		}
		return Int{V: n}, nil

	case TypeBuffer:
		n, err := r.u32()
		if err != nil {
			return nil, err
		}
		b, err := r.take(n)
		if err != nil {
			return nil, err
		}
		return Buffer(append([]byte(nil), b...)), nil

	case TypeBoolTrue:
		return Bool(true), nil
	case TypeBoolFalse:
		return Bool(false), nil

	case TypePrincipalStandard, TypePrincipalContract:
		return r.principal(Type(prefix) == TypePrincipalContract)

	case TypeResponseOk, TypeResponseErr, TypeOptionalSome:
		inner, err := r.value(depth + 1)
		if err != nil {
			return nil, err
		}
		switch Type(prefix) {
		case TypeResponseOk:
			return ResponseOk{Inner: inner}, nil
		case TypeResponseErr:
			return ResponseErr{Inner: inner}, nil
		default:
			return Some{Inner: inner}, nil
		}

	case TypeOptionalNone:
		return None{}, nil

	case TypeList:
		n, err := r.u32()
		if err != nil {
			return nil, err
		}
		out := make(List, 0, n)
		for i := 0; i < n; i++ {
			item, err := r.value(depth + 1)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil

	case TypeTuple:
		n, err := r.u32()
		if err != nil {
			return nil, err
		}
		out := make(Tuple, n)
		for i := 0; i < n; i++ {
			nameLen, err := r.u8()
			if err != nil {
				return nil, err
			}
			name, err := r.take(int(nameLen))
			if err != nil {
				return nil, err
			}
			field, err := r.value(depth + 1)
			if err != nil {
				return nil, err
			}
			out[string(name)] = field
		}
		return out, nil

	case TypeStringASCII, TypeStringUTF8:
		n, err := r.u32()
		if err != nil {
			return nil, err
		}
		b, err := r.take(n)
		if err != nil {
			return nil, err
		}
		if Type(prefix) == TypeStringASCII {
			return StringASCII(b), nil
		}
		if !utf8.Valid(b) {
			return nil, fmt.Errorf("%w: invalid utf-8 string", ErrMalformed)
		}
		return StringUTF8(b), nil

	default:
		return nil, fmt.Errorf("%w: unknown type prefix 0x%02x", ErrMalformed, prefix)
	}
}

func (r *wireReader) principal(contract bool) (Value, error) {
	version, err := r.u8()
	if err != nil {
		return nil, err
	}
	hash, err := r.take(20)
	if err != nil {
		return nil, err
	}
	p := Principal{Version: version}
	copy(p.Hash160[:], hash)
	if !contract {
		return p, nil
	}
	nameLen, err := r.u8()
	if err != nil {
		return nil, err
	}
	name, err := r.take(int(nameLen))
	if err != nil {
		return nil, err
	}
	p.Contract = string(name)
	return p, nil
}

// Serialize encodes v in consensus wire format.
func Serialize(v Value) ([]byte, error) {
	var out []byte
	if err := appendValue(&out, v, 0); err != nil {
		return nil, err
	}
	return out, nil
}

// SerializeHex is cvToHex: 0x-prefixed wire hex.
func SerializeHex(v Value) (string, error) {
	b, err := Serialize(v)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(b), nil
}

func appendValue(out *[]byte, v Value, depth int) error {
	if depth > maxDepth {
		return ErrTooDeep
	}
	if v == nil {
		return errors.New("clarity: cannot serialize nil value")
	}
	*out = append(*out, byte(v.Type()))

	switch x := v.(type) {
	case UInt:
		if x.V == nil || x.V.Sign() < 0 || x.V.Cmp(maxUint128) > 0 {
			return fmt.Errorf("clarity: uint out of range: %v", x.V)
		}
		*out = append(*out, x.V.FillBytes(make([]byte, 16))...)
	case Int:
		if x.V == nil || x.V.Cmp(minInt128) < 0 || x.V.Cmp(maxInt128) > 0 {
			return fmt.Errorf("clarity: int out of range: %v", x.V)
		}
		n := new(big.Int).Set(x.V)
		if n.Sign() < 0 {
			n.Add(n, two128)
		}
		*out = append(*out, n.FillBytes(make([]byte, 16))...)
	case Buffer:
		appendLen(out, len(x))
		*out = append(*out, x...)
	case Bool, None:
	case Principal:
		*out = append(*out, x.Version)
		*out = append(*out, x.Hash160[:]...)
		if x.Contract != "" {
			*out = append(*out, byte(len(x.Contract)))
			*out = append(*out, x.Contract...)
		}
	case ResponseOk:
		return appendValue(out, x.Inner, depth+1)
	case ResponseErr:
		return appendValue(out, x.Inner, depth+1)
	case Some:
		return appendValue(out, x.Inner, depth+1)
	case List:
		appendLen(out, len(x))
		for _, item := range x {
			if err := appendValue(out, item, depth+1); err != nil {
				return err
			}
		}
	case Tuple:
		appendLen(out, len(x))
		for _, k := range x.Keys() {
			if len(k) > 128 {
				return fmt.Errorf("clarity: tuple key too long: %q", k)
			}
			*out = append(*out, byte(len(k)))
			*out = append(*out, k...)
			if err := appendValue(out, x[k], depth+1); err != nil {
				return err
			}
		}
	case StringASCII:
		appendLen(out, len(x))
		*out = append(*out, x...)
	case StringUTF8:
		appendLen(out, len(x))
		*out = append(*out, x...)
	default:
		return fmt.Errorf("clarity: cannot serialize %T", v)
	}
	return nil
}

func appendLen(out *[]byte, n int) {
	*out = binary.BigEndian.AppendUint32(*out, uint32(n))
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}
