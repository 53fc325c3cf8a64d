package main

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvzzle/stxwatch/internal/stacks"
	"github.com/pvzzle/stxwatch/internal/tracker"
)

func TestParseMix(t *testing.T) {
	m, err := parseMix("success=3, abort=0 ,pending=1")
	require.NoError(t, err)
	assert.Equal(t, []weighted{{classSuccess, 3}, {classPending, 1}}, m)

	for _, bad := range []string{"", "abort=0", "won=1", "success=x", "success=-1", "success"} {
		_, err := parseMix(bad)
		assert.Error(t, err, bad)
	}
}

func TestPickClass_OnlyWeighted(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	mix := []weighted{{classAbort, 1}, {classFlaky, 1}}
	for i := 0; i < 200; i++ {
		c := pickClass(r, mix)
		assert.Contains(t, []txClass{classAbort, classFlaky}, c)
	}
}

// Each class must drive the real tracker to its expected terminal state.
func TestFakeIndexer_DrivesTracker(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	idx := newFakeIndexer(0, fakeSender)
	noSleep := tracker.WithSleeper(func(context.Context, time.Duration) error { return nil })
	tr := tracker.New(idx, tracker.Config{MaxAttempts: 10}, nil, noSleep)

	for _, c := range allClasses {
		id := idx.plan(r, c, 4)
		out, err := tr.Track(context.Background(), id)
		require.NoError(t, err, c)
		assert.Equal(t, c.wantState(), out.State, c)
		if out.State != tracker.StateTimedOut {
			assert.Equal(t, fakeSender, out.Sender, c)
		}
	}
}

func TestFakeIndexer_MintEvent(t *testing.T) {
	idx := newFakeIndexer(0, fakeSender)
	idx.scripts["0x01"] = script{class: classSuccess, function: "mint", tokenID: 42}

	d, err := idx.GetTransaction(context.Background(), "0x01")
	require.NoError(t, err)
	assert.Equal(t, stacks.StatusSuccess, d.TxStatus)
	assert.Equal(t, "42", tracker.MintedTokenID(d.Events).String())

	_, err = idx.GetTransaction(context.Background(), "0x02")
	assert.ErrorIs(t, err, stacks.ErrTxNotFound)
}
