package stacks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/pvzzle/stxwatch/internal/logging"
	"github.com/pvzzle/stxwatch/internal/metrics"
)

// SignedTransaction is anything that can produce canonical transaction bytes.
type SignedTransaction interface {
	Serialize() ([]byte, error)
}

// RawTransaction is an already-serialized transaction.
type RawTransaction []byte

func (r RawTransaction) Serialize() ([]byte, error) {
	if len(r) == 0 {
		return nil, errors.New("empty transaction")
	}
	return []byte(r), nil
}

// ParseRawTransaction accepts hex with or without 0x.
func ParseRawTransaction(s string) (RawTransaction, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("transaction hex: %w", err)
	}
	return RawTransaction(b), nil
}

// Broadcaster posts signed transactions to a node. It never retries: a
// rejection is usually deterministic (nonce, fee, bad signature).
type Broadcaster struct {
	url string
	hc  *http.Client
	log *zap.Logger
}

func NewBroadcaster(baseURL string, hc *http.Client, logger *zap.Logger) *Broadcaster {
	if hc == nil {
		hc = DefaultHTTPClient()
	}
	return &Broadcaster{
		url: joinURL(baseURL, "v2", "transactions"),
		hc:  hc,
		log: logging.OrNop(logger).Named("broadcast"),
	}
}

// Submit broadcasts tx and returns its 0x-prefixed id. A refusal is returned
// as *BroadcastRejectedError carrying the node's text.
func (b *Broadcaster) Submit(ctx context.Context, tx SignedTransaction) (string, error) {
	raw, err := tx.Serialize()
	if err != nil {
		metrics.Broadcasts.WithLabelValues("error").Inc()
		return "", fmt.Errorf("serialize transaction: %w", err)
	}

	body := struct {
		Tx string `json:"tx"`
	}{Tx: strings.TrimPrefix(hexutil.Encode(raw), "0x")}

	status, resp, err := postJSON(ctx, b.hc, b.url, body)
	if err != nil {
		metrics.Broadcasts.WithLabelValues("error").Inc()
		return "", err
	}
	if !ok(status) {
		metrics.Broadcasts.WithLabelValues("rejected").Inc()
		rej := &BroadcastRejectedError{StatusCode: status, Body: strings.TrimSpace(string(resp))}
		b.log.Warn("broadcast rejected", zap.Int("status", status), zap.String("body", snippet(resp)))
		return "", rej
	}

	id, err := NormalizeTxID(string(resp))
	if err != nil {
		metrics.Broadcasts.WithLabelValues("error").Inc()
		return "", err
	}
	metrics.Broadcasts.WithLabelValues("ok").Inc()
	b.log.Info("transaction broadcast", zap.String("tx_id", id))
	return id, nil
}

// NormalizeTxID turns a broadcast response body into a 0x-prefixed id. It
// accepts a JSON string literal, a {"txid": ...} object or bare text.
func NormalizeTxID(body string) (string, error) {
	s := strings.TrimSpace(body)

	if strings.HasPrefix(s, "{") {
		var obj struct {
			TxID string `json:"txid"`
		}
		if err := sonic.UnmarshalString(s, &obj); err != nil {
			return "", fmt.Errorf("broadcast response: %w", err)
		}
		s = obj.TxID
	} else if strings.HasPrefix(s, `"`) {
		var lit string
		if err := sonic.UnmarshalString(s, &lit); err == nil {
			s = lit
		}
	}

	s = strings.Trim(strings.TrimSpace(s), `"'`)
	if s == "" {
		return "", errors.New("broadcast response: empty transaction id")
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	return s, nil
}

// IsTxID reports whether s is a 0x-prefixed 32-byte hex id.
func IsTxID(s string) bool {
	if len(s) != 66 {
		return false
	}
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == 32
}
