package tg

import (
	"fmt"
	"strings"

	"github.com/pvzzle/stxwatch/internal/storage"
	"github.com/pvzzle/stxwatch/internal/tracker"
)

func FormatHistory(items []storage.HistoryItem) string {
	var sb strings.Builder
	sb.WriteString("🕘 History (last 10)\n\n")

	for _, it := range items {
		state := ""
		switch tracker.State(it.State) {
		case tracker.StateSuccess:
			state = " ✅"
		case tracker.StateAborted:
			state = " ❌"
		case tracker.StateTimedOut:
			state = " ⏳"
		}

		fn := ""
		if it.Function != nil && *it.Function != "" {
			fn = " " + *it.Function
		}

		token := ""
		if it.TokenID != nil {
			token = fmt.Sprintf(" token #%s", *it.TokenID)
		}

		sb.WriteString(fmt.Sprintf(
			"• %s (%s)%s\n  %s%s%s\n",
			shortenTxID(it.TxID), it.EventType, fn, it.State, token, state,
		))
	}

	return sb.String()
}

func shortenTxID(h string) string {
	if len(h) <= 14 {
		return h
	}
	return h[:10] + "…" + h[len(h)-4:]
}
