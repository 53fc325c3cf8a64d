package clarity

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/minio/sha256-simd"
)

const c32Alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// Address versions used by Stacks single-sig and multi-sig accounts.
const (
	VersionMainnetSingleSig byte = 22
	VersionMainnetMultiSig  byte = 20
	VersionTestnetSingleSig byte = 26
	VersionTestnetMultiSig  byte = 21
)

var ErrInvalidPrincipal = errors.New("clarity: invalid principal")

// Principal is a standard principal, or a contract principal when Contract is set.
type Principal struct {
	Version  byte
	Hash160  [20]byte
	Contract string
}

func (p Principal) Type() Type {
	if p.Contract != "" {
		return TypePrincipalContract
	}
	return TypePrincipalStandard
}

// Address renders the c32check account address without the contract name.
func (p Principal) Address() string {
	return "S" + c32CheckEncode(p.Version, p.Hash160[:])
}

func (p Principal) String() string {
	if p.Contract != "" {
		return p.Address() + "." + p.Contract
	}
	return p.Address()
}

// ParsePrincipal parses "SP..." or "SP....contract-name".
func ParsePrincipal(s string) (Principal, error) {
	s = strings.TrimSpace(s)
	addr, contract, _ := strings.Cut(s, ".")
	if len(addr) < 3 || addr[0] != 'S' {
		return Principal{}, fmt.Errorf("%w: %q", ErrInvalidPrincipal, s)
	}
	if len(contract) > 128 {
		return Principal{}, fmt.Errorf("%w: contract name too long", ErrInvalidPrincipal)
	}

	version, data, err := c32CheckDecode(addr[1:])
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidPrincipal, err)
	}
	if len(data) != 20 {
		return Principal{}, fmt.Errorf("%w: hash160 is %d bytes", ErrInvalidPrincipal, len(data))
	}

	p := Principal{Version: version, Contract: contract}
	copy(p.Hash160[:], data)
	return p, nil
}

// MustPrincipal is ParsePrincipal for constants and tests.
func MustPrincipal(s string) Principal {
	p, err := ParsePrincipal(s)
	if err != nil {
		panic(err)
	}
	return p
}

func c32CheckEncode(version byte, data []byte) string {
	sum := checksum(version, data)
	payload := make([]byte, 0, len(data)+len(sum))
	payload = append(payload, data...)
	payload = append(payload, sum...)
	return string(c32Alphabet[version&0x1f]) + c32Encode(payload)
}

func c32CheckDecode(s string) (byte, []byte, error) {
	s = c32Normalize(s)
	if len(s) < 2 {
		return 0, nil, errors.New("c32check: too short")
	}
	version := strings.IndexByte(c32Alphabet, s[0])
	if version < 0 {
		return 0, nil, fmt.Errorf("c32check: bad version char %q", s[0])
	}
	payload, err := c32Decode(s[1:])
	if err != nil {
		return 0, nil, err
	}
	if len(payload) < 4 {
		return 0, nil, errors.New("c32check: missing checksum")
	}
	data, sum := payload[:len(payload)-4], payload[len(payload)-4:]
	if !bytes.Equal(sum, checksum(byte(version), data)) {
		return 0, nil, errors.New("c32check: checksum mismatch")
	}
	return byte(version), data, nil
}

func checksum(version byte, data []byte) []byte {
	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, version)
	buf = append(buf, data...)
	first := sha256.Sum256(buf)
	second := sha256.Sum256(first[:])
	return second[:4]
}

// c32Encode is base-32 over the big-endian integer, with one '0' per leading
// zero byte.
func c32Encode(data []byte) string {
	zeros := 0
	for zeros < len(data) && data[zeros] == 0 {
		zeros++
	}

	n := new(big.Int).SetBytes(data)
	base := big.NewInt(32)
	mod := new(big.Int)
	var digits []byte
	for n.Sign() > 0 {
		n.DivMod(n, base, mod)
		digits = append(digits, c32Alphabet[mod.Int64()])
	}
	for i := 0; i < zeros; i++ {
		digits = append(digits, '0')
	}
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}

func c32Decode(s string) ([]byte, error) {
	zeros := 0
	for zeros < len(s) && s[zeros] == '0' {
		zeros++
	}

	n := new(big.Int)
	base := big.NewInt(32)
	for i := zeros; i < len(s); i++ {
		d := strings.IndexByte(c32Alphabet, s[i])
		if d < 0 {
			return nil, fmt.Errorf("c32: invalid character %q", s[i])
		}
		n.Mul(n, base)
		n.Add(n, big.NewInt(int64(d)))
	}

	out := make([]byte, zeros, zeros+len(s))
	return append(out, n.Bytes()...), nil
}

func c32Normalize(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "O", "0")
	s = strings.ReplaceAll(s, "L", "1")
	return strings.ReplaceAll(s, "I", "1")
}
