package wallet

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/pvzzle/stxwatch/internal/logging"
)

const maxBridgeBody = 1 << 20

// BridgeSigner forwards signing requests to a wallet bridge over HTTP. The
// bridge prompts the user and replies with the broadcast transaction id.
type BridgeSigner struct {
	url string
	hc  *http.Client
	log *zap.Logger
}

func NewBridgeSigner(url string, hc *http.Client, logger *zap.Logger) *BridgeSigner {
	if hc == nil {
		// the user may take a while to approve
		hc = &http.Client{Timeout: 5 * time.Minute}
	}
	return &BridgeSigner{
		url: strings.TrimRight(url, "/"),
		hc:  hc,
		log: logging.OrNop(logger).Named("bridge"),
	}
}

type bridgeReply struct {
	TxID    string `json:"txid"`
	TxIDAlt string `json:"txId"`
	Result  *struct {
		TxID    string `json:"txid"`
		TxIDAlt string `json:"txId"`
	} `json:"result"`
	Message string `json:"message"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *BridgeSigner) RequestSignedCall(ctx context.Context, call ContractCall) (string, error) {
	if s.url == "" {
		return "", fmt.Errorf("%w: no wallet bridge configured", ErrSignerRejected)
	}

	payload, err := sonic.Marshal(call)
	if err != nil {
		return "", fmt.Errorf("encode signing request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build signing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSignerRejected, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBridgeBody))
	if err != nil {
		return "", fmt.Errorf("%w: read reply: %v", ErrSignerRejected, err)
	}

	s.log.Debug("bridge replied", zap.Int("status", resp.StatusCode), zap.String("fn", call.FunctionName))
	return parseBridgeReply(resp.StatusCode, raw)
}

// parseBridgeReply accepts a bare id, a JSON string, {txid} or {result:{txid}}.
// Errors carry {error:{message}} or {message} text.
func parseBridgeReply(status int, raw []byte) (string, error) {
	body := strings.TrimSpace(string(raw))

	if strings.HasPrefix(body, "{") {
		var r bridgeReply
		if err := sonic.UnmarshalString(body, &r); err != nil {
			return "", fmt.Errorf("%w: malformed reply: %v", ErrSignerRejected, err)
		}
		if r.Error != nil && r.Error.Message != "" {
			return "", fmt.Errorf("%w: %s", ErrSignerRejected, r.Error.Message)
		}
		if id := firstNonEmpty(r.TxID, r.TxIDAlt); id != "" && status < 300 {
			return id, nil
		}
		if r.Result != nil {
			if id := firstNonEmpty(r.Result.TxID, r.Result.TxIDAlt); id != "" && status < 300 {
				return id, nil
			}
		}
		if r.Message != "" {
			return "", fmt.Errorf("%w: %s", ErrSignerRejected, r.Message)
		}
		return "", fmt.Errorf("%w: reply has no transaction id (HTTP %d)", ErrSignerRejected, status)
	}

	if status < 200 || status >= 300 {
		if body == "" {
			body = http.StatusText(status)
		}
		return "", fmt.Errorf("%w: %s", ErrSignerRejected, body)
	}
	if strings.HasPrefix(body, `"`) {
		var lit string
		if err := sonic.UnmarshalString(body, &lit); err == nil {
			body = lit
		}
	}
	if body == "" {
		return "", fmt.Errorf("%w: empty reply", ErrSignerRejected)
	}
	return body, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
