package storage

import "time"

// TxRecord is one tracked transaction and, once resolved, its outcome.
type TxRecord struct {
	TxID     string
	Network  string
	Function *string // contract function, nil for non contract-call txs
	Sender   *string
	State    string  // polling|success|aborted|timed_out
	Status   *string // raw tx_status as last seen
	TokenID  *string // big.Int as decimal string
	Polls    int

	ResolvedAt *time.Time
}

type TxEventType string

const (
	EventTrack  TxEventType = "track"
	EventNotify TxEventType = "notify"
)

type HistoryItem struct {
	At        time.Time
	EventType TxEventType

	TxID       string
	Network    string
	Function   *string
	Sender     *string
	State      string
	Status     *string
	TokenID    *string
	Polls      int
	ResolvedAt *time.Time
}
