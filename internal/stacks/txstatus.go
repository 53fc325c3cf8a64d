package stacks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/pvzzle/stxwatch/internal/logging"
)

// TxStatus is the indexer's tx_status field.
type TxStatus string

const (
	StatusPending              TxStatus = "pending"
	StatusSuccess              TxStatus = "success"
	StatusAbortByResponse      TxStatus = "abort_by_response"
	StatusAbortByPostCondition TxStatus = "abort_by_post_condition"
)

func (s TxStatus) IsSuccess() bool { return s == StatusSuccess }

func (s TxStatus) IsAbort() bool {
	return s == StatusAbortByResponse || s == StatusAbortByPostCondition
}

// IsPending is true for everything that is neither success nor abort,
// including dropped_* mempool states which may still be replaced and mined.
func (s TxStatus) IsPending() bool { return !s.IsSuccess() && !s.IsAbort() }

// EventValue is a Clarity value as rendered by the indexer.
type EventValue struct {
	Hex  string `json:"hex"`
	Repr string `json:"repr"`
}

type AssetEvent struct {
	AssetEventType string      `json:"asset_event_type"`
	AssetID        string      `json:"asset_id"`
	Sender         string      `json:"sender"`
	Recipient      string      `json:"recipient"`
	Amount         string      `json:"amount,omitempty"`
	Value          *EventValue `json:"value,omitempty"`
}

type ContractLog struct {
	ContractID string      `json:"contract_id"`
	Topic      string      `json:"topic"`
	Value      *EventValue `json:"value,omitempty"`
}

// Event is one entry of a transaction's event log. Which of the payload
// pointers is set depends on EventType and on the indexer version.
type Event struct {
	EventIndex    int          `json:"event_index"`
	EventType     string       `json:"event_type"`
	TxID          string       `json:"tx_id"`
	Asset         *AssetEvent  `json:"asset,omitempty"`
	NFTAssetEvent *AssetEvent  `json:"nft_asset_event,omitempty"`
	ContractLog   *ContractLog `json:"contract_log,omitempty"`
}

type ContractCall struct {
	ContractID   string `json:"contract_id"`
	FunctionName string `json:"function_name"`
}

type TxDetail struct {
	TxID          string        `json:"tx_id"`
	TxStatus      TxStatus      `json:"tx_status"`
	TxType        string        `json:"tx_type"`
	SenderAddress string        `json:"sender_address"`
	BlockHeight   uint64        `json:"block_height"`
	BurnBlockTime int64         `json:"burn_block_time"`
	TxResult      *EventValue   `json:"tx_result,omitempty"`
	ContractCall  *ContractCall `json:"contract_call,omitempty"`
	Events        []Event       `json:"events"`
}

// StatusClient reads transaction details from the indexer API.
type StatusClient struct {
	base string
	hc   *http.Client
	log  *zap.Logger
}

func NewStatusClient(baseURL string, hc *http.Client, logger *zap.Logger) *StatusClient {
	if hc == nil {
		hc = DefaultHTTPClient()
	}
	return &StatusClient{
		base: strings.TrimRight(baseURL, "/"),
		hc:   hc,
		log:  logging.OrNop(logger).Named("txstatus"),
	}
}

// GetTransaction returns ErrTxNotFound while the id is not indexed yet.
func (c *StatusClient) GetTransaction(ctx context.Context, txID string) (*TxDetail, error) {
	id := strings.TrimSpace(txID)
	if !strings.HasPrefix(id, "0x") {
		id = "0x" + id
	}

	status, raw, err := get(ctx, c.hc, joinURL(c.base, "extended", "v1", "tx", url.PathEscape(id)))
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrTxNotFound, id)
	case !ok(status):
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrProtocolReject, status, snippet(raw))
	}

	var d TxDetail
	if err := sonic.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("%w: decode tx %s: %v", ErrProtocolReject, id, err)
	}
	if d.TxID == "" {
		d.TxID = id
	}
	return &d, nil
}
