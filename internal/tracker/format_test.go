package tracker

import (
	"math/big"
	"strings"
	"testing"
)

func TestMicroToSTX(t *testing.T) {
	if got := MicroToSTX(big.NewInt(1_000_000)); got != "1" {
		t.Fatalf("expected 1, got %q", got)
	}

	if got := MicroToSTX(big.NewInt(1_500_000)); got != "1.5" {
		t.Fatalf("expected 1.5, got %q", got)
	}

	if got := MicroToSTX(big.NewInt(1)); got != "0.000001" {
		t.Fatalf("expected 0.000001, got %q", got)
	}

	if got := MicroToSTX(nil); got != "0" {
		t.Fatalf("expected 0, got %q", got)
	}
}

func TestFormatOutcome(t *testing.T) {
	txID := "0x" + strings.Repeat("11", 32)

	ok := FormatOutcome(Outcome{TxID: txID, State: StateSuccess, TokenID: big.NewInt(7)}, "testnet")
	if !strings.Contains(ok, "Token ID: 7") {
		t.Fatalf("expected token id in text: %s", ok)
	}
	if !strings.Contains(ok, "https://explorer.hiro.so/txid/"+txID+"?chain=testnet") {
		t.Fatalf("expected explorer link in text: %s", ok)
	}

	unknown := FormatOutcome(Outcome{TxID: txID, State: StateSuccess}, "mainnet")
	if !strings.Contains(unknown, "Token ID: unknown") {
		t.Fatalf("expected unknown token id: %s", unknown)
	}

	failed := FormatOutcome(Outcome{TxID: txID, State: StateAborted, Status: "abort_by_post_condition"}, "testnet")
	if !strings.Contains(failed, "failed") || !strings.Contains(failed, "abort_by_post_condition") {
		t.Fatalf("expected failure with raw status: %s", failed)
	}

	later := FormatOutcome(Outcome{TxID: txID, State: StateTimedOut, Polls: 60}, "testnet")
	if !strings.Contains(later, "check back later") || strings.Contains(later, "failed") || strings.Contains(later, "confirmed") {
		t.Fatalf("timeout must read as neither success nor failure: %s", later)
	}
}
