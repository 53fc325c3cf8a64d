package tg

import (
	"regexp"
	"strings"

	"github.com/pvzzle/stxwatch/internal/clarity"
)

var reTxID = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)

func IsTxID(s string) bool {
	return reTxID.MatchString(strings.TrimSpace(s))
}

// IsPrincipal accepts standard account principals only; contracts hold no
// wallet subscriptions.
func IsPrincipal(s string) bool {
	p, err := clarity.ParsePrincipal(s)
	return err == nil && p.Contract == ""
}
