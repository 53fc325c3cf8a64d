package stacks

import (
	"errors"
	"fmt"
)

var (
	// ErrTransientNetwork covers timeouts and connection failures.
	ErrTransientNetwork = errors.New("stacks: transient network failure")
	// ErrProtocolReject means an endpoint answered but refused the request:
	// a non-2xx status or an okay=false envelope.
	ErrProtocolReject = errors.New("stacks: endpoint rejected request")
	// ErrTxNotFound means the indexer does not know the id yet.
	ErrTxNotFound = errors.New("stacks: transaction not found")
)

// BroadcastRejectedError carries the node's diagnostic text for a refused
// broadcast. It matches ErrProtocolReject under errors.Is.
type BroadcastRejectedError struct {
	StatusCode int
	Body       string
}

func (e *BroadcastRejectedError) Error() string {
	return fmt.Sprintf("broadcast rejected (HTTP %d): %s", e.StatusCode, e.Body)
}

func (e *BroadcastRejectedError) Unwrap() error { return ErrProtocolReject }
