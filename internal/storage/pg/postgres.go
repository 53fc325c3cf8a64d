package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/pvzzle/stxwatch/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Postgres { return &Postgres{pool: pool} }

func (r *Postgres) EnsureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS tracked_txs (
  tx_id    TEXT PRIMARY KEY,
  network  TEXT NOT NULL,

  function TEXT NULL,
  sender   TEXT NULL,

  state    TEXT NOT NULL, -- polling|success|aborted|timed_out
  status   TEXT NULL,     -- raw tx_status
  token_id NUMERIC(39,0) NULL,
  polls    INT NOT NULL DEFAULT 0,

  resolved_at   TIMESTAMPTZ NULL,
  first_seen_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chat_tx (
  chat_id BIGINT NOT NULL,
  tx_id TEXT NOT NULL REFERENCES tracked_txs(tx_id) ON DELETE CASCADE,
  event_type TEXT NOT NULL, -- track|notify
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (chat_id, tx_id, event_type)
);

CREATE INDEX IF NOT EXISTS chat_tx_chat_created_idx ON chat_tx(chat_id, created_at DESC);
`
	_, err := r.pool.Exec(ctx, ddl)
	return err
}

func (r *Postgres) UpsertTx(ctx context.Context, tx storage.TxRecord) error {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var (
		function   any = nil
		sender     any = nil
		status     any = nil
		tokenID    any = nil
		resolvedAt any = nil
	)

	if tx.Function != nil {
		function = *tx.Function
	}
	if tx.Sender != nil {
		sender = *tx.Sender
	}
	if tx.Status != nil {
		status = *tx.Status
	}
	if tx.TokenID != nil {
		tokenID = *tx.TokenID // cast to numeric in SQL
	}
	if tx.ResolvedAt != nil {
		resolvedAt = *tx.ResolvedAt
	}

	q := `
INSERT INTO tracked_txs(
  tx_id, network, function, sender,
  state, status, token_id, polls, resolved_at
) VALUES (
  $1, $2, $3, $4,
  $5, $6, $7::numeric, $8, $9
)
ON CONFLICT(tx_id) DO UPDATE SET
  network     = EXCLUDED.network,
  function    = COALESCE(EXCLUDED.function, tracked_txs.function),
  sender      = COALESCE(EXCLUDED.sender,   tracked_txs.sender),
  state       = EXCLUDED.state,
  status      = COALESCE(EXCLUDED.status,   tracked_txs.status),
  token_id    = COALESCE(EXCLUDED.token_id, tracked_txs.token_id),
  polls       = EXCLUDED.polls,
  resolved_at = EXCLUDED.resolved_at,
  updated_at  = now()
`
	_, err := r.pool.Exec(cctx, q,
		tx.TxID, tx.Network, function, sender,
		tx.State, status, tokenID, tx.Polls, resolvedAt,
	)
	return err
}

func (r *Postgres) AddChatEvent(ctx context.Context, chatID int64, txID string, eventType storage.TxEventType) error {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	_, err := r.pool.Exec(cctx,
		`INSERT INTO chat_tx(chat_id, tx_id, event_type) VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`,
		chatID, txID, string(eventType),
	)
	return err
}

func (r *Postgres) ListHistory(ctx context.Context, chatID int64, limit int) ([]storage.HistoryItem, error) {
	if limit <= 0 {
		limit = 10
	}
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	q := `
SELECT
  c.created_at,
  c.event_type,
  t.tx_id,
  t.network,
  t.function,
  t.sender,
  t.state,
  t.status,
  t.token_id::text,
  t.polls,
  t.resolved_at
FROM chat_tx c
JOIN tracked_txs t ON t.tx_id = c.tx_id
WHERE c.chat_id = $1
ORDER BY c.created_at DESC
LIMIT $2
`
	rows, err := r.pool.Query(cctx, q, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.HistoryItem
	for rows.Next() {
		var (
			it    storage.HistoryItem
			etype string
			polls int32
		)

		if err := rows.Scan(
			&it.At, &etype, &it.TxID, &it.Network, &it.Function, &it.Sender,
			&it.State, &it.Status, &it.TokenID, &polls, &it.ResolvedAt,
		); err != nil {
			return nil, err
		}

		it.EventType = storage.TxEventType(etype)
		it.Polls = int(polls)
		out = append(out, it)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return out, nil
}

func (r *Postgres) String() string { return fmt.Sprintf("pgrepo(%p)", r.pool) }
