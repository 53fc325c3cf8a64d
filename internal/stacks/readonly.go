package stacks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pvzzle/stxwatch/internal/clarity"
	"github.com/pvzzle/stxwatch/internal/logging"
	"github.com/pvzzle/stxwatch/internal/metrics"
)

// ReadOnlyConfig sets the endpoints and retry policy of a ReadOnlyClient.
type ReadOnlyConfig struct {
	// Endpoints are tried in order.
	Endpoints  []string
	MaxRetries int
	Timeout    time.Duration
	BaseDelay  time.Duration
	// RPS paces attempts across all endpoints. Zero disables pacing.
	RPS float64
}

// CallRequest is one read-only contract call. Args are encoded on the wire
// when the call is sent.
type CallRequest struct {
	Contract ContractID
	Function string
	Args     []clarity.Value
	// Sender defaults to the contract address.
	Sender string
}

// ReadOnlyClient calls read-only contract functions across fallback endpoints.
type ReadOnlyClient struct {
	cfg     ReadOnlyConfig
	hc      *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

type callBody struct {
	Sender    string   `json:"sender"`
	Arguments []string `json:"arguments"`
}

type callEnvelope struct {
	Okay   bool   `json:"okay"`
	Result string `json:"result"`
	Cause  string `json:"cause"`
}

func NewReadOnlyClient(cfg ReadOnlyConfig, hc *http.Client, logger *zap.Logger) *ReadOnlyClient {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 7 * time.Second
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = 0
	}
	if hc == nil {
		hc = DefaultHTTPClient()
	}

	c := &ReadOnlyClient{
		cfg: cfg,
		hc:  hc,
		log: logging.OrNop(logger).Named("readonly"),
	}
	if cfg.RPS > 0 {
		burst := int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	return c
}

// Call runs req and returns the decoded payload with response and optional
// wrappers stripped. When every endpoint fails it logs the last error and
// returns clarity.Absent.
func (c *ReadOnlyClient) Call(ctx context.Context, req CallRequest) clarity.Value {
	v, err := c.CallStrict(ctx, req)
	if err != nil {
		c.log.Warn("read-only call degraded to absent",
			zap.String("contract", req.Contract.String()),
			zap.String("function", req.Function),
			zap.Error(err),
		)
		return clarity.Absent
	}
	return clarity.Unwrap(v)
}

// CallStrict runs req and returns the parsed result with its outer wrappers
// intact, so callers can tell ok from err with clarity.IsErr.
func (c *ReadOnlyClient) CallStrict(ctx context.Context, req CallRequest) (clarity.Value, error) {
	start := time.Now()
	defer func() {
		metrics.ReadCallDuration.Observe(time.Since(start).Seconds())
	}()

	path, body, err := encodeCall(req)
	if err != nil {
		metrics.ReadCalls.WithLabelValues("error").Inc()
		return nil, err
	}
	if len(c.cfg.Endpoints) == 0 {
		metrics.ReadCalls.WithLabelValues("error").Inc()
		return nil, errors.New("read-only call: no endpoints configured")
	}

	base := c.cfg.BaseDelay
	var lastErr error
	for _, ep := range c.cfg.Endpoints {
		target := strings.TrimRight(ep, "/") + path

		var out clarity.Value
		err := retry.Do(
			func() error {
				v, err := c.attempt(ctx, target, body)
				if err != nil {
					return err
				}
				out = v
				return nil
			},
			retry.Context(ctx),
			retry.Attempts(uint(c.cfg.MaxRetries)),
			retry.DelayType(linearBackoff(base)),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				c.log.Debug("read-only attempt failed",
					zap.String("endpoint", ep),
					zap.Uint("attempt", n+1),
					zap.Error(err),
				)
			}),
		)
		if err == nil {
			if clarity.IsAbsent(clarity.Unwrap(out)) {
				metrics.ReadCalls.WithLabelValues("absent").Inc()
			} else {
				metrics.ReadCalls.WithLabelValues("ok").Inc()
			}
			return out, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			break
		}
		c.log.Debug("endpoint exhausted", zap.String("endpoint", ep), zap.Error(err))
	}

	metrics.ReadCalls.WithLabelValues("error").Inc()
	return nil, fmt.Errorf("%s::%s: all endpoints failed: %w", req.Contract, req.Function, lastErr)
}

// linearBackoff waits base*k after the k-th failed attempt on an endpoint.
func linearBackoff(base time.Duration) retry.DelayTypeFunc {
	return func(n uint, _ error, _ *retry.Config) time.Duration {
		return base * time.Duration(n+1)
	}
}

// attempt races one HTTP call against the per-attempt timeout. A timeout is
// reported as transient and the request itself is left to finish.
func (c *ReadOnlyClient) attempt(ctx context.Context, target string, body callBody) (clarity.Value, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	type result struct {
		v   clarity.Value
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := c.post(ctx, target, body)
		done <- result{v: v, err: err}
	}()

	timer := time.NewTimer(c.cfg.Timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.v, r.err
	case <-timer.C:
		return nil, fmt.Errorf("%w: no response within %s", ErrTransientNetwork, c.cfg.Timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *ReadOnlyClient) post(ctx context.Context, target string, body callBody) (clarity.Value, error) {
	status, raw, err := postJSON(ctx, c.hc, target, body)
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrProtocolReject, status, snippet(raw))
	}

	var env callEnvelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: bad envelope: %v", ErrProtocolReject, err)
	}
	if !env.Okay {
		return nil, fmt.Errorf("%w: %s", ErrProtocolReject, env.Cause)
	}

	v, err := clarity.DeserializeHex(env.Result)
	if err != nil {
		return nil, fmt.Errorf("%w: result: %w", ErrProtocolReject, err)
	}
	return v, nil
}

func encodeCall(req CallRequest) (string, callBody, error) {
	if err := req.Contract.Validate(); err != nil {
		return "", callBody{}, err
	}
	if req.Function == "" {
		return "", callBody{}, errors.New("read-only call: empty function name")
	}

	args := make([]string, 0, len(req.Args))
	for i, a := range req.Args {
		h, err := clarity.SerializeHex(a)
		if err != nil {
			return "", callBody{}, fmt.Errorf("argument %d: %w", i, err)
		}
		args = append(args, h)
	}

	sender := req.Sender
	if sender == "" {
		sender = req.Contract.Address
	}

	path := "/v2/contracts/call-read/" + req.Contract.Address + "/" + req.Contract.Name + "/" + url.PathEscape(req.Function)
	return path, callBody{Sender: sender, Arguments: args}, nil
}
