package tg

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pvzzle/stxwatch/internal/market"
	"github.com/pvzzle/stxwatch/internal/subs"
	"github.com/pvzzle/stxwatch/internal/tracker"
)

const maxListingsShown = 20

func FormatListings(ls []market.Listing) string {
	if len(ls) == 0 {
		return "No active listings."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🏷 Listings (%d)\n\n", len(ls)))
	for i, l := range ls {
		if i == maxListingsShown {
			sb.WriteString(fmt.Sprintf("…and %d more\n", len(ls)-maxListingsShown))
			break
		}
		name := l.Metadata.Name
		if name == "" {
			name = "Token"
		}
		sb.WriteString(fmt.Sprintf("• #%d %s\n  %s STX from %s\n", l.TokenID, name, tracker.MicroToSTX(l.Price), shortenTxID(l.Seller)))
	}
	return sb.String()
}

func FormatBalance(principal string, b market.Balance) string {
	return fmt.Sprintf(
		"💰 %s\n\nWallet: %s\nStaked: %s\nClaimable rewards: %s",
		principal,
		tracker.MicroToSTX(b.Spendable),
		tracker.MicroToSTX(b.Staked),
		tracker.MicroToSTX(b.Claimable),
	)
}

func FormatSubs(u subs.UserSubs, ok bool) string {
	lines := []string{"📌 Your subscriptions:"}

	if !ok || (u.Principal == nil && len(u.TxIDs) == 0) {
		return strings.Join(append(lines, "— no active subscriptions"), "\n")
	}

	if u.Principal != nil {
		lines = append(lines, fmt.Sprintf("— Wallet: %s", *u.Principal))
	} else {
		lines = append(lines, "— Wallet: (none)")
	}

	ids := make([]string, 0, len(u.TxIDs))
	for id := range u.TxIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		lines = append(lines, fmt.Sprintf("— Pending tx: %s", shortenTxID(id)))
	}
	return strings.Join(lines, "\n")
}
