package subs

import (
	"testing"
)

const (
	walletA = "ST16W5DG0N8VP85W6DK1ZB4ME3BK3WN2750H78FNX"
	walletB = "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7"
	txOne   = "0x1111111111111111111111111111111111111111111111111111111111111111"
)

func TestStore_MatchTx_Watched(t *testing.T) {
	s := NewStore()
	chatID := int64(42)

	s.WatchTx(chatID, "1111111111111111111111111111111111111111111111111111111111111111")

	got := s.MatchTx(txOne, walletB)
	if len(got) != 1 || got[0] != chatID {
		t.Fatalf("expected match for watched tx, got=%v", got)
	}

	got = s.MatchTx("0x2222", walletB)
	if len(got) != 0 {
		t.Fatalf("expected no match for other tx, got=%v", got)
	}
}

func TestStore_MatchTx_Principal(t *testing.T) {
	s := NewStore()
	chatID := int64(7)

	s.SetPrincipal(chatID, walletA)

	got := s.MatchTx("0xabc", walletA)
	if len(got) != 1 || got[0] != chatID {
		t.Fatalf("expected match by sender, got=%v", got)
	}

	got = s.MatchTx("0xabc", walletB)
	if len(got) != 0 {
		t.Fatalf("expected no match for other sender, got=%v", got)
	}

	got = s.MatchTx("0xabc", "")
	if len(got) != 0 {
		t.Fatalf("expected no match for unknown sender, got=%v", got)
	}
}

func TestStore_MatchTx_OrderedAndDeduped(t *testing.T) {
	s := NewStore()
	s.WatchTx(30, txOne)
	s.SetPrincipal(30, walletA)
	s.SetPrincipal(10, walletA)
	s.WatchTx(20, txOne)

	got := s.MatchTx(txOne, walletA)
	if len(got) != 3 || got[0] != 10 || got[1] != 20 || got[2] != 30 {
		t.Fatalf("expected [10 20 30], got=%v", got)
	}
}

func TestStore_ForgetAndCleanup(t *testing.T) {
	s := NewStore()
	chatID := int64(1)

	s.WatchTx(chatID, txOne)
	s.SetPrincipal(chatID, walletA)

	s.ForgetTx(txOne)
	u, ok := s.GetCopy(chatID)
	if !ok || u.Principal == nil || len(u.TxIDs) != 0 {
		t.Fatalf("expected only principal to remain, ok=%v, subs=%+v", ok, u)
	}

	s.ClearPrincipal(chatID)
	_, ok = s.GetCopy(chatID)
	if ok {
		t.Fatalf("expected cleanup (no subs) => no record")
	}

	s.WatchTx(chatID, txOne)
	s.ForgetTx(txOne)
	if _, ok := s.GetCopy(chatID); ok {
		t.Fatalf("expected record removed after last tx forgotten")
	}
}

func TestStore_GetCopy_IsCopy(t *testing.T) {
	s := NewStore()
	chatID := int64(1)

	s.SetPrincipal(chatID, walletA)
	s.WatchTx(chatID, txOne)

	u, ok := s.GetCopy(chatID)
	if !ok || u.Principal == nil {
		t.Fatalf("expected copy")
	}

	*u.Principal = walletB
	delete(u.TxIDs, txOne)

	u2, ok := s.GetCopy(chatID)
	if !ok || *u2.Principal != walletA {
		t.Fatalf("expected stored principal unchanged, got=%v", u2.Principal)
	}
	if _, ok := u2.TxIDs[txOne]; !ok {
		t.Fatalf("expected stored tx set unchanged")
	}
}
