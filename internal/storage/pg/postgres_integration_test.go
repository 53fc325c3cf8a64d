//go:build integration

package pg_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pvzzle/stxwatch/internal/storage"
	"github.com/pvzzle/stxwatch/internal/storage/pg"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestRepo_UpsertAndHistory(t *testing.T) {
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		dsn = os.Getenv("PG_DSN")
	}
	if dsn == "" {
		t.Skip("TEST_PG_DSN/PG_DSN is not set")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)

	repo := pg.New(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	_, _ = pool.Exec(ctx, "TRUNCATE chat_tx, tracked_txs CASCADE")

	txID := "0x" + strings.Repeat("1", 64)
	pending := storage.TxRecord{TxID: txID, Network: "testnet", State: "polling"}
	if err := repo.UpsertTx(ctx, pending); err != nil {
		t.Fatalf("UpsertTx pending: %v", err)
	}

	chatID := int64(42)
	if err := repo.AddChatEvent(ctx, chatID, txID, storage.EventTrack); err != nil {
		t.Fatalf("AddChatEvent: %v", err)
	}

	now := time.Now().UTC()
	fn := "mint"
	sender := "ST16W5DG0N8VP85W6DK1ZB4ME3BK3WN2750H78FNX"
	status := "success"
	tokenID := "340282366920938463463374607431768211455"
	resolved := storage.TxRecord{
		TxID:       txID,
		Network:    "testnet",
		Function:   &fn,
		Sender:     &sender,
		State:      "success",
		Status:     &status,
		TokenID:    &tokenID,
		Polls:      3,
		ResolvedAt: &now,
	}
	if err := repo.UpsertTx(ctx, resolved); err != nil {
		t.Fatalf("UpsertTx resolved: %v", err)
	}

	h, err := repo.ListHistory(ctx, chatID, 10)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(h) != 1 {
		t.Fatalf("expected 1 history item, got=%d", len(h))
	}
	if h[0].TxID != txID {
		t.Fatalf("expected tx=%s got=%s", txID, h[0].TxID)
	}
	if h[0].EventType != storage.EventTrack {
		t.Fatalf("expected event=track got=%s", h[0].EventType)
	}
	if h[0].State != "success" || h[0].Polls != 3 {
		t.Fatalf("unexpected outcome: state=%s polls=%d", h[0].State, h[0].Polls)
	}
	if h[0].TokenID == nil || *h[0].TokenID != tokenID {
		t.Fatalf("expected token id %s, got=%v", tokenID, h[0].TokenID)
	}
}
