package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pvzzle/stxwatch/internal/bus"
	"github.com/pvzzle/stxwatch/internal/logging"
	"github.com/pvzzle/stxwatch/internal/storage"
	"github.com/pvzzle/stxwatch/internal/subs"
)

// WatcherConfig sizes the worker pool and task queue of a Watcher.
type WatcherConfig struct {
	Workers     int
	TasksBuffer int
	Network     string
}

// TrackTask is one queued tracking job.
type TrackTask struct {
	JobID string
	TxID  string
}

type outcomeTracker interface {
	Track(ctx context.Context, txID string) (Outcome, error)
}

// Watcher runs tracking jobs on a worker pool and delivers each outcome to
// every chat that watches the transaction or its sender.
type Watcher struct {
	tracker outcomeTracker

	subStore *subs.Store
	notifyCh chan<- bus.Notification

	cfg WatcherConfig

	tasks chan TrackTask
	wg    sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]string // tx id -> job id

	repo storage.Repository
	log  *zap.Logger
}

func NewWatcher(
	tr outcomeTracker,
	subStore *subs.Store,
	notifyCh chan<- bus.Notification,
	repo storage.Repository,
	cfg WatcherConfig,
	logger *zap.Logger,
) *Watcher {

	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}

	if cfg.TasksBuffer <= 0 {
		cfg.TasksBuffer = 1024
	}

	return &Watcher{
		tracker:  tr,
		subStore: subStore,
		notifyCh: notifyCh,
		cfg:      cfg,
		tasks:    make(chan TrackTask, cfg.TasksBuffer),
		inflight: make(map[string]string),
		repo:     repo,
		log:      logging.OrNop(logger).Named("watcher"),
	}
}

// Start runs the workers until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	w.startWorkers(ctx)
	<-ctx.Done()
	// tasks stays open: Enqueue may still race with shutdown.
	w.wg.Wait()
	return ctx.Err()
}

// Enqueue schedules txID for tracking on behalf of chatID (0 for none) and
// returns the job id. A transaction already being tracked is not polled twice;
// the chat is attached to the running job instead.
func (w *Watcher) Enqueue(ctx context.Context, txID string, chatID int64) (string, error) {
	id := subs.NormalizeTxID(txID)

	if chatID != 0 {
		w.subStore.WatchTx(chatID, id)
	}

	w.mu.Lock()
	if job, ok := w.inflight[id]; ok {
		w.mu.Unlock()
		w.recordTrack(ctx, id, chatID)
		return job, nil
	}
	job := uuid.NewString()
	w.inflight[id] = job
	w.mu.Unlock()

	if err := w.repo.UpsertTx(ctx, storage.TxRecord{TxID: id, Network: w.cfg.Network, State: string(StatePolling)}); err != nil {
		w.log.Warn("db upsert pending tx", zap.String("tx_id", id), zap.Error(err))
	}
	w.recordTrack(ctx, id, chatID)

	select {
	case w.tasks <- TrackTask{JobID: job, TxID: id}:
		w.log.Debug("tracking queued", zap.String("tx_id", id), zap.String("job_id", job))
		return job, nil
	case <-ctx.Done():
		w.release(id)
		return "", ctx.Err()
	}
}

// Tracking reports whether txID has a job in flight.
func (w *Watcher) Tracking(txID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.inflight[subs.NormalizeTxID(txID)]
	return ok
}

func (w *Watcher) recordTrack(ctx context.Context, txID string, chatID int64) {
	if chatID == 0 {
		return
	}
	if err := w.repo.AddChatEvent(ctx, chatID, txID, storage.EventTrack); err != nil {
		w.log.Warn("db add track event", zap.String("tx_id", txID), zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (w *Watcher) release(txID string) {
	w.mu.Lock()
	delete(w.inflight, txID)
	w.mu.Unlock()
}

func (w *Watcher) startWorkers(ctx context.Context) {
	for i := 0; i < w.cfg.Workers; i++ {
		w.wg.Add(1)
		go func(workerID int) {
			defer w.wg.Done()

			for {
				select {
				case <-ctx.Done():
					return

				case task := <-w.tasks:
					w.handleTask(ctx, task)
				}
			}
		}(i)
	}
}

func (w *Watcher) handleTask(ctx context.Context, task TrackTask) {
	log := w.log.With(zap.String("tx_id", task.TxID), zap.String("job_id", task.JobID))

	out, err := w.tracker.Track(ctx, task.TxID)
	if err != nil {
		w.release(task.TxID)
		log.Info("tracking interrupted", zap.Error(err))
		return
	}

	// 1) persist the outcome
	now := time.Now().UTC()
	rec := storage.TxRecord{
		TxID:       task.TxID,
		Network:    w.cfg.Network,
		State:      string(out.State),
		Polls:      out.Polls,
		ResolvedAt: &now,
	}
	if out.Sender != "" {
		s := out.Sender
		rec.Sender = &s
	}
	if out.Function != "" {
		f := out.Function
		rec.Function = &f
	}
	if out.Status != "" {
		s := string(out.Status)
		rec.Status = &s
	}
	if out.TokenID != nil {
		s := out.TokenID.String()
		rec.TokenID = &s
	}

	if err := w.repo.UpsertTx(ctx, rec); err != nil {
		log.Warn("db upsert outcome", zap.Error(err))
		// keep going, notifications matter more
	}

	// 2) notify every watcher and record it in their history. The job is
	// released first: a chat attaching from here on starts a new job instead
	// of joining one that has already delivered.
	w.release(task.TxID)
	recipients := w.subStore.MatchTx(task.TxID, out.Sender)
	w.subStore.ForgetTx(task.TxID)
	if len(recipients) == 0 {
		return
	}

	text := FormatOutcome(out, w.cfg.Network)

	for _, chatID := range recipients {
		_ = w.repo.AddChatEvent(ctx, chatID, task.TxID, storage.EventNotify)

		select {
		case w.notifyCh <- bus.Notification{ChatID: chatID, Text: text}:
		case <-ctx.Done():
			return
		}
	}
}
