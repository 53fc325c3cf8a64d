// Command loadtest pushes transactions through the tracking watcher against a
// simulated indexer and a real Postgres, and reports enqueue-to-notification
// latency per outcome class.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pvzzle/stxwatch/internal/bus"
	"github.com/pvzzle/stxwatch/internal/logging"
	"github.com/pvzzle/stxwatch/internal/storage"
	"github.com/pvzzle/stxwatch/internal/storage/pg"
	"github.com/pvzzle/stxwatch/internal/subs"
	"github.com/pvzzle/stxwatch/internal/tracker"
)

const fakeSender = "ST16W5DG0N8VP85W6DK1ZB4ME3BK3WN2750H78FNX"

type options struct {
	dsn         string
	txs         int
	rps         float64
	workers     int
	poll        time.Duration
	maxPolls    int
	maxNotFound int
	latency     time.Duration
	walletSubs  int
	mix         []weighted
	deadline    time.Duration
	verify      int
	seed        int64
	logLevel    string
}

func main() {
	var (
		o   options
		mix string
	)
	flag.StringVar(&o.dsn, "dsn", "", "Postgres DSN")
	flag.IntVar(&o.txs, "txs", 2000, "transactions to track")
	flag.Float64Var(&o.rps, "rps", 200, "enqueue rate")
	flag.IntVar(&o.workers, "workers", 32, "watcher workers")
	flag.DurationVar(&o.poll, "poll", 20*time.Millisecond, "tracker poll interval")
	flag.IntVar(&o.maxPolls, "max-polls", 15, "tracker attempt budget")
	flag.IntVar(&o.maxNotFound, "max-not-found", 4, "max polls before the indexer knows a tx, keep below max-polls")
	flag.DurationVar(&o.latency, "node-latency", 5*time.Millisecond, "simulated indexer latency")
	flag.IntVar(&o.walletSubs, "wallet-subs", 0, "extra chats subscribed to the sender principal")
	flag.StringVar(&mix, "mix", "success=70,abort=10,postcond=5,pending=5,flaky=10", "outcome mix weights")
	flag.DurationVar(&o.deadline, "deadline", 5*time.Minute, "give up waiting for notifications after")
	flag.IntVar(&o.verify, "verify", 50, "chats whose history is checked in the db")
	flag.Int64Var(&o.seed, "seed", time.Now().UnixNano(), "random seed")
	flag.StringVar(&o.logLevel, "log-level", "warn", "log level")
	flag.Parse()

	if o.dsn == "" {
		panic("dsn required")
	}
	m, err := parseMix(mix)
	if err != nil {
		panic(err)
	}
	o.mix = m

	log, err := logging.New(o.logLevel, false)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), o.deadline)
	defer cancel()

	pool, err := pgxpool.New(ctx, o.dsn)
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	repo := pg.New(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		panic(err)
	}

	res := run(ctx, o, repo, log)
	printReport(o, res)
}

type classStats struct {
	sent      int
	delivered int
	wrong     int
	latencies []time.Duration
}

type results struct {
	enqueued    int
	enqueueErrs int
	notified    int
	walletHits  int
	polls       int64
	leftSubs    int
	leftJobs    int
	histChecked int
	histBad     int
	byClass     map[txClass]*classStats
	elapsed     time.Duration
}

func run(ctx context.Context, o options, repo storage.Repository, log *zap.Logger) results {
	r := rand.New(rand.NewSource(o.seed))

	idx := newFakeIndexer(o.latency, fakeSender)
	subStore := subs.NewStore()
	notifyCh := make(chan bus.Notification, o.txs)

	// Tracking chats are 1..txs; wallet chats follow them.
	walletBase := int64(o.txs) + 1
	for i := 0; i < o.walletSubs; i++ {
		subStore.SetPrincipal(walletBase+int64(i), fakeSender)
	}

	tr := tracker.New(idx, tracker.Config{PollInterval: o.poll, MaxAttempts: o.maxPolls}, log)
	w := tracker.NewWatcher(tr, subStore, notifyCh, repo, tracker.WatcherConfig{
		Workers:     o.workers,
		TasksBuffer: o.txs,
		Network:     "testnet",
	}, log)

	wctx, stop := context.WithCancel(ctx)
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		if err := w.Start(wctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("watcher stopped", zap.Error(err))
		}
	}()

	res := results{byClass: map[txClass]*classStats{}}
	for _, c := range allClasses {
		res.byClass[c] = &classStats{}
	}

	txIDs := make([]string, o.txs)
	enqueuedAt := make([]time.Time, o.txs)
	for i := range txIDs {
		c := pickClass(r, o.mix)
		txIDs[i] = idx.plan(r, c, o.maxNotFound)
		res.byClass[c].sent++
	}

	start := time.Now()

	var enqueueErrs int
	producerDone := make(chan struct{})

	// producer
	go func() {
		defer close(producerDone)
		lim := rate.NewLimiter(rate.Limit(o.rps), max(1, int(o.rps/10)))
		for i, id := range txIDs {
			if err := lim.Wait(ctx); err != nil {
				return
			}
			enqueuedAt[i] = time.Now()
			if _, err := w.Enqueue(ctx, id, int64(i+1)); err != nil {
				enqueueErrs++
				log.Warn("enqueue", zap.String("tx_id", id), zap.Error(err))
			}
		}
	}()

	// Every tracked tx notifies its own chat and every wallet chat.
	want := o.txs * (1 + o.walletSubs)
wait:
	for res.notified+res.walletHits < want {
		select {
		case n := <-notifyCh:
			if n.ChatID >= walletBase {
				res.walletHits++
				continue
			}
			i := int(n.ChatID - 1)
			st := res.byClass[idx.classOf(txIDs[i])]
			st.delivered++
			st.latencies = append(st.latencies, time.Since(enqueuedAt[i]))
			res.notified++
		case <-ctx.Done():
			fmt.Println("deadline reached before all notifications arrived")
			break wait
		}
	}
	res.elapsed = time.Since(start)

	<-producerDone
	stop()
	<-watcherDone

	res.enqueueErrs = enqueueErrs
	for i, id := range txIDs {
		if !enqueuedAt[i].IsZero() {
			res.enqueued++
		}
		if w.Tracking(id) {
			res.leftJobs++
		}
		if u, ok := subStore.GetCopy(int64(i + 1)); ok && len(u.TxIDs) > 0 {
			res.leftSubs++
		}
	}
	res.polls = idx.total.Load()

	verifyHistory(context.Background(), o, repo, idx, txIDs, &res, log)
	return res
}

// verifyHistory checks that sampled chats have a track and a notify event
// and that the stored state matches the planned class.
func verifyHistory(ctx context.Context, o options, repo storage.Repository, idx *fakeIndexer, txIDs []string, res *results, log *zap.Logger) {
	n := min(o.verify, len(txIDs))
	for i := 0; i < n; i++ {
		chatID := int64(i + 1)
		items, err := repo.ListHistory(ctx, chatID, 10)
		if err != nil {
			log.Warn("list history", zap.Int64("chat_id", chatID), zap.Error(err))
			res.histBad++
			continue
		}
		res.histChecked++

		want := idx.classOf(txIDs[i])
		var tracked, notified, wrong bool
		for _, it := range items {
			if it.TxID != txIDs[i] {
				continue
			}
			switch it.EventType {
			case storage.EventTrack:
				tracked = true
			case storage.EventNotify:
				notified = true
			}
			if it.State != string(want.wantState()) {
				wrong = true
			}
		}
		if wrong {
			res.byClass[want].wrong++
		}
		if !tracked || !notified {
			res.histBad++
		}
	}
}

func printReport(o options, res results) {
	fmt.Printf("\n== REPORT ==\n")
	fmt.Printf("seed=%d txs=%d workers=%d poll=%s max-polls=%d node-latency=%s\n",
		o.seed, o.txs, o.workers, o.poll, o.maxPolls, o.latency)
	fmt.Printf("elapsed: %s\n", res.elapsed)
	fmt.Printf("enqueued=%d enqueue-errors=%d notified=%d wallet-notifications=%d indexer-polls=%d\n",
		res.enqueued, res.enqueueErrs, res.notified, res.walletHits, res.polls)
	if res.elapsed > 0 {
		fmt.Printf("throughput: %.2f outcomes/s\n", float64(res.notified)/res.elapsed.Seconds())
	}
	fmt.Printf("leftover: in-flight jobs=%d watched txs=%d\n", res.leftJobs, res.leftSubs)
	fmt.Printf("history: checked=%d bad=%d\n", res.histChecked, res.histBad)

	fmt.Printf("\n%-9s %6s %9s %6s %10s %10s %10s\n", "class", "sent", "delivered", "wrong", "p50", "p95", "max")
	for _, c := range allClasses {
		st := res.byClass[c]
		if st.sent == 0 {
			continue
		}
		sortDurations(st.latencies)
		var maxLat time.Duration
		if len(st.latencies) > 0 {
			maxLat = st.latencies[len(st.latencies)-1]
		}
		fmt.Printf("%-9s %6d %9d %6d %10s %10s %10s\n",
			c, st.sent, st.delivered, st.wrong,
			percentile(st.latencies, 0.50).Round(time.Millisecond),
			percentile(st.latencies, 0.95).Round(time.Millisecond),
			maxLat.Round(time.Millisecond),
		)
	}
}
