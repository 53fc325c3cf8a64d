package main

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pvzzle/stxwatch/internal/stacks"
	"github.com/pvzzle/stxwatch/internal/tracker"
)

// txClass is how the simulated indexer resolves a transaction.
type txClass string

const (
	classSuccess  txClass = "success"
	classAbort    txClass = "abort"
	classPostCond txClass = "postcond"
	classPending  txClass = "pending"
	classFlaky    txClass = "flaky"
)

var allClasses = []txClass{classSuccess, classAbort, classPostCond, classPending, classFlaky}

// wantState is the tracker state each class must end in.
func (c txClass) wantState() tracker.State {
	switch c {
	case classSuccess, classFlaky:
		return tracker.StateSuccess
	case classAbort, classPostCond:
		return tracker.StateAborted
	default:
		return tracker.StateTimedOut
	}
}

type weighted struct {
	class  txClass
	weight int
}

// parseMix reads "success=70,abort=10,...". Unknown classes are rejected.
func parseMix(s string) ([]weighted, error) {
	known := map[txClass]bool{}
	for _, c := range allClasses {
		known[c] = true
	}

	var out []weighted
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, val, ok := strings.Cut(part, "=")
		if !ok || !known[txClass(name)] {
			return nil, fmt.Errorf("mix entry %q", part)
		}
		w, err := strconv.Atoi(val)
		if err != nil || w < 0 {
			return nil, fmt.Errorf("mix weight %q", part)
		}
		if w > 0 {
			out = append(out, weighted{class: txClass(name), weight: w})
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("mix %q has no positive weights", s)
	}
	return out, nil
}

func pickClass(r *rand.Rand, mix []weighted) txClass {
	total := 0
	for _, m := range mix {
		total += m.weight
	}
	n := r.Intn(total)
	for _, m := range mix {
		if n < m.weight {
			return m.class
		}
		n -= m.weight
	}
	return mix[len(mix)-1].class
}

type script struct {
	class    txClass
	notFound int // polls answered "not indexed yet" before the detail shows up
	function string
	tokenID  int
}

// fakeIndexer plays the /extended/v1/tx endpoint for the tracker.
type fakeIndexer struct {
	latency time.Duration
	sender  string

	mu      sync.Mutex
	scripts map[string]script
	polls   map[string]int

	total atomic.Int64
}

func newFakeIndexer(latency time.Duration, sender string) *fakeIndexer {
	return &fakeIndexer{
		latency: latency,
		sender:  sender,
		scripts: make(map[string]script),
		polls:   make(map[string]int),
	}
}

var fakeFunctions = []string{"mint", "list-asset", "purchase-asset", "stake", "claim-rewards"}

// plan registers a new random transaction and returns its id.
func (f *fakeIndexer) plan(r *rand.Rand, class txClass, maxNotFound int) string {
	txID := fmt.Sprintf("0x%016x%016x%016x%016x", r.Uint64(), r.Uint64(), r.Uint64(), r.Uint64())
	sc := script{
		class:    class,
		function: fakeFunctions[r.Intn(len(fakeFunctions))],
		tokenID:  r.Intn(100_000),
	}
	if maxNotFound > 0 {
		sc.notFound = r.Intn(maxNotFound + 1)
	}

	f.mu.Lock()
	f.scripts[txID] = sc
	f.mu.Unlock()
	return txID
}

func (f *fakeIndexer) GetTransaction(ctx context.Context, txID string) (*stacks.TxDetail, error) {
	f.total.Add(1)
	if f.latency > 0 {
		if err := tracker.SleepContext(ctx, f.latency); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	sc, ok := f.scripts[txID]
	f.polls[txID]++
	n := f.polls[txID]
	f.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", stacks.ErrTxNotFound, txID)
	}
	if n <= sc.notFound {
		if sc.class == classFlaky && n%2 == 0 {
			return nil, fmt.Errorf("%w: connection reset", stacks.ErrTransientNetwork)
		}
		return nil, fmt.Errorf("%w: %s", stacks.ErrTxNotFound, txID)
	}

	d := &stacks.TxDetail{
		TxID:          txID,
		TxType:        "contract_call",
		SenderAddress: f.sender,
		ContractCall:  &stacks.ContractCall{ContractID: f.sender + ".rwa-nft-contract-v4", FunctionName: sc.function},
	}
	switch sc.class {
	case classSuccess, classFlaky:
		d.TxStatus = stacks.StatusSuccess
		if sc.function == "mint" {
			d.Events = []stacks.Event{{
				EventType: "non_fungible_token_asset",
				TxID:      txID,
				Asset: &stacks.AssetEvent{
					AssetEventType: "mint",
					AssetID:        f.sender + ".rwa-nft-contract-v4::rwa-nft",
					Recipient:      f.sender,
					Value:          &stacks.EventValue{Repr: "u" + strconv.Itoa(sc.tokenID)},
				},
			}}
		}
	case classAbort:
		d.TxStatus = stacks.StatusAbortByResponse
	case classPostCond:
		d.TxStatus = stacks.StatusAbortByPostCondition
	default:
		d.TxStatus = stacks.StatusPending
	}
	return d, nil
}

func (f *fakeIndexer) classOf(txID string) txClass {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scripts[txID].class
}

func percentile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[int(q*float64(len(sorted)-1))]
}

func sortDurations(ds []time.Duration) {
	sort.Slice(ds, func(i, j int) bool { return ds[i] < ds[j] })
}
