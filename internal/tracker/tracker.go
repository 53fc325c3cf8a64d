// Package tracker follows a broadcast transaction until the indexer reports a
// terminal status, and mines the event log for a minted token id.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/pvzzle/stxwatch/internal/logging"
	"github.com/pvzzle/stxwatch/internal/metrics"
	"github.com/pvzzle/stxwatch/internal/stacks"
)

type State string

const (
	StatePolling  State = "polling"
	StateSuccess  State = "success"
	StateAborted  State = "aborted"
	StateTimedOut State = "timed_out"
)

func (s State) Terminal() bool { return s != StatePolling }

// ErrAborted is reported for transactions the ledger executed and rejected.
var ErrAborted = errors.New("transaction aborted")

// Outcome is the result of one tracking run.
type Outcome struct {
	TxID  string
	State State
	// TokenID is nil when no mint event could be read. Success without a
	// token id means "confirmed, identifier unknown".
	TokenID  *big.Int
	Status   stacks.TxStatus
	Sender   string
	Function string
	Polls    int
}

// Err is nil unless the transaction was aborted. A timeout is not an error:
// the transaction may still confirm later.
func (o Outcome) Err() error {
	if o.State == StateAborted {
		return fmt.Errorf("%w: %s", ErrAborted, o.Status)
	}
	return nil
}

type StatusFetcher interface {
	GetTransaction(ctx context.Context, txID string) (*stacks.TxDetail, error)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Config is the polling policy. Zero values take the defaults of New.
type Config struct {
	PollInterval time.Duration
	MaxAttempts  int
}

type Tracker struct {
	fetcher StatusFetcher
	cfg     Config
	sleep   Sleeper
	log     *zap.Logger
}

type Option func(*Tracker)

func WithSleeper(s Sleeper) Option {
	return func(t *Tracker) { t.sleep = s }
}

func New(fetcher StatusFetcher, cfg Config, logger *zap.Logger, opts ...Option) *Tracker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 60
	}
	t := &Tracker{
		fetcher: fetcher,
		cfg:     cfg,
		sleep:   SleepContext,
		log:     logging.OrNop(logger).Named("tracker"),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Track polls txID until a terminal state. Every poll consumes one attempt,
// including polls that fail on the network. Polls are strictly sequential and
// there is no wait after the last one. The error is non-nil only when ctx
// ends first.
func (t *Tracker) Track(ctx context.Context, txID string) (Outcome, error) {
	out := Outcome{TxID: txID, State: StatePolling}

	for attempt := 1; attempt <= t.cfg.MaxAttempts; attempt++ {
		out.Polls = attempt

		d, err := t.fetcher.GetTransaction(ctx, txID)
		if err != nil && ctx.Err() != nil {
			return out, ctx.Err()
		}

		out.State = Step(d, err)
		t.observe(&out, d, err)

		if out.State.Terminal() {
			metrics.TxOutcomes.WithLabelValues(string(out.State)).Inc()
			return out, nil
		}

		if attempt < t.cfg.MaxAttempts {
			if err := t.sleep(ctx, t.cfg.PollInterval); err != nil {
				return out, err
			}
		}
	}

	out.State = StateTimedOut
	metrics.TxOutcomes.WithLabelValues(string(out.State)).Inc()
	t.log.Info("tracking timed out", zap.String("tx_id", txID), zap.Int("polls", out.Polls))
	return out, nil
}

// Step is the transition from Polling for one poll result. Errors of any kind
// keep the machine in Polling.
func Step(d *stacks.TxDetail, err error) State {
	switch {
	case err != nil || d == nil:
		return StatePolling
	case d.TxStatus.IsSuccess():
		return StateSuccess
	case d.TxStatus.IsAbort():
		return StateAborted
	default:
		return StatePolling
	}
}

func (t *Tracker) observe(out *Outcome, d *stacks.TxDetail, err error) {
	switch {
	case errors.Is(err, stacks.ErrTxNotFound):
		metrics.TxPolls.WithLabelValues("not_found").Inc()
		t.log.Debug("transaction not indexed yet", zap.String("tx_id", out.TxID), zap.Int("attempt", out.Polls))
		return
	case err != nil:
		metrics.TxPolls.WithLabelValues("error").Inc()
		t.log.Debug("poll failed, will retry", zap.String("tx_id", out.TxID), zap.Int("attempt", out.Polls), zap.Error(err))
		return
	case d == nil:
		metrics.TxPolls.WithLabelValues("error").Inc()
		return
	}

	out.Status = d.TxStatus
	out.Sender = d.SenderAddress
	if d.ContractCall != nil {
		out.Function = d.ContractCall.FunctionName
	}

	switch out.State {
	case StateSuccess:
		metrics.TxPolls.WithLabelValues("success").Inc()
		out.TokenID = MintedTokenID(d.Events)
		if out.TokenID == nil {
			t.log.Warn("transaction confirmed without a readable mint event", zap.String("tx_id", out.TxID))
		}
	case StateAborted:
		metrics.TxPolls.WithLabelValues("aborted").Inc()
		t.log.Info("transaction aborted", zap.String("tx_id", out.TxID), zap.String("status", string(d.TxStatus)))
	default:
		metrics.TxPolls.WithLabelValues("pending").Inc()
	}
}
