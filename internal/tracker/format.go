package tracker

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// MicroDecimals is the number of decimals of STX and of the fungible tokens
// this service reads.
const MicroDecimals = 6

func MicroToSTX(micro *big.Int) string {
	if micro == nil {
		return "0"
	}
	return decimal.NewFromBigInt(micro, -MicroDecimals).String()
}

func ExplorerURL(txID, network string) string {
	if network == "" {
		network = "testnet"
	}
	return fmt.Sprintf("https://explorer.hiro.so/txid/%s?chain=%s", txID, network)
}

// FormatOutcome renders a tracking result for humans. Timeouts are worded as
// "check back later", never as success or failure.
func FormatOutcome(o Outcome, network string) string {
	var b strings.Builder

	switch o.State {
	case StateSuccess:
		b.WriteString("✅ Transaction confirmed\n\n")
	case StateAborted:
		b.WriteString("❌ Transaction failed\n\n")
	case StateTimedOut:
		b.WriteString("⏳ No final status yet, check back later\n\n")
	default:
		b.WriteString("🔄 Waiting for confirmation\n\n")
	}

	fmt.Fprintf(&b, "Tx: %s\n", o.TxID)
	if o.Function != "" {
		fmt.Fprintf(&b, "Call: %s\n", o.Function)
	}
	if o.Sender != "" {
		fmt.Fprintf(&b, "Sender: %s\n", o.Sender)
	}

	switch o.State {
	case StateSuccess:
		if o.TokenID != nil {
			fmt.Fprintf(&b, "Token ID: %s\n", o.TokenID)
		} else {
			b.WriteString("Token ID: unknown\n")
		}
	case StateAborted:
		fmt.Fprintf(&b, "Reason: %s\n", o.Status)
	case StateTimedOut:
		fmt.Fprintf(&b, "Polled %d times without a final status.\n", o.Polls)
	}

	fmt.Fprintf(&b, "Explorer: %s", ExplorerURL(o.TxID, network))
	return b.String()
}
