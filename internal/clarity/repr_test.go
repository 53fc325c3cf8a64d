package clarity

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepr(t *testing.T) {
	p := MustPrincipal("ST16W5DG0N8VP85W6DK1ZB4ME3BK3WN2750H78FNX")

	cases := []struct {
		v    Value
		want string
	}{
		{ResponseOk{Inner: Some{Inner: NewUInt(7)}}, "(ok (some u7))"},
		{ResponseErr{Inner: NewUInt(101)}, "(err u101)"},
		{NewInt(-3), "-3"},
		{Bool(true), "true"},
		{None{}, "none"},
		{Buffer{0xde, 0xad}, "0xdead"},
		{StringASCII("hi"), `"hi"`},
		{StringUTF8("hi"), `u"hi"`},
		{p, "'ST16W5DG0N8VP85W6DK1ZB4ME3BK3WN2750H78FNX"},
		{List{NewUInt(1), NewUInt(2)}, "(list u1 u2)"},
		{Tuple{"seller": p, "price": NewUInt(5)}, "(tuple (price u5) (seller 'ST16W5DG0N8VP85W6DK1ZB4ME3BK3WN2750H78FNX))"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Repr(tc.v))
	}
}

func TestParseArg(t *testing.T) {
	cases := []struct {
		in   string
		want Value
	}{
		{"u7", NewUInt(7)},
		{"-3", NewInt(-3)},
		{"i12", NewInt(12)},
		{"true", Bool(true)},
		{"none", None{}},
		{`"hello world"`, StringASCII("hello world")},
		{"plain", StringASCII("plain")},
		{"0x0100000000000000000000000000000009", NewUInt(9)},
		{"ST16W5DG0N8VP85W6DK1ZB4ME3BK3WN2750H78FNX", MustPrincipal("ST16W5DG0N8VP85W6DK1ZB4ME3BK3WN2750H78FNX")},
		{"'ST16W5DG0N8VP85W6DK1ZB4ME3BK3WN2750H78FNX.aria-token-v2", MustPrincipal("ST16W5DG0N8VP85W6DK1ZB4ME3BK3WN2750H78FNX.aria-token-v2")},
	}
	for _, tc := range cases {
		got, err := ParseArg(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	tooBig := "u" + new(big.Int).Lsh(big.NewInt(1), 128).String()
	_, err := ParseArg(tooBig)
	assert.Error(t, err)

	_, err = ParseArg("0xzz")
	assert.ErrorIs(t, err, ErrMalformed)
}
