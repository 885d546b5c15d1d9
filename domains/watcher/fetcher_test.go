package watcher

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFetcherPeriod(t *testing.T) {
	f := NewFetcher(zap.NewNop(), nil, 100*time.Second)
	assert.Equal(t, 110*time.Second, f.Period())
}

func TestFetcherFetchesInBackground(t *testing.T) {
	fx := newFixture(t, "r1", "r2")
	rs, err := fx.load(context.Background())
	require.NoError(t, err)

	f := NewFetcher(zap.NewNop(), rs, 10*time.Millisecond)
	assert.Equal(t, StateStopped, f.State())

	f.Start()
	assert.Equal(t, StateRunning, f.State())
	assert.True(t, f.State().IsActive())

	require.Eventually(t, func() bool {
		return fx.mirrors["r1"].Fetches() >= 2 && fx.mirrors["r2"].Fetches() >= 2
	}, 5*time.Second, 5*time.Millisecond)

	f.Stop()
	assert.Equal(t, StateStopped, f.State())

	n := fx.mirrors["r1"].Fetches()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, n, fx.mirrors["r1"].Fetches())
}

func TestFetcherFetchesOnStart(t *testing.T) {
	fx := newFixture(t, "r1", "r2")
	rs, err := fx.load(context.Background())
	require.NoError(t, err)

	f := NewFetcher(zap.NewNop(), rs, time.Hour)
	f.Start()
	t.Cleanup(f.Stop)

	require.Eventually(t, func() bool {
		return fx.mirrors["r1"].Fetches() == 1 && fx.mirrors["r2"].Fetches() == 1
	}, 5*time.Second, 5*time.Millisecond)
}

func TestFetcherSkipsLockedRepository(t *testing.T) {
	fx := newFixture(t, "r1", "r2")
	rs, err := fx.load(context.Background())
	require.NoError(t, err)

	sess, ok := rs[0].TryLock()
	require.True(t, ok)
	defer sess.Unlock()

	core, logs := observer.New(zap.InfoLevel)
	f := NewFetcher(zap.New(core), rs, time.Second)
	f.fetchAll(context.Background())

	assert.Equal(t, 0, fx.mirrors["r1"].Fetches())
	assert.Equal(t, 1, fx.mirrors["r2"].Fetches())
	assert.Equal(t, 1, logs.FilterMessage("postponing repository fetch").Len())
}

func TestFetcherStopCancelsInFlightFetch(t *testing.T) {
	fx := newFixture(t, "r1", "r2")
	var entered atomic.Bool
	fx.mirrors["r1"].FetchFunc = func(ctx context.Context) error {
		entered.Store(true)
		<-ctx.Done()
		return ctx.Err()
	}
	rs, err := fx.load(context.Background())
	require.NoError(t, err)

	f := NewFetcher(zap.NewNop(), rs, 2*time.Millisecond)
	f.Start()
	require.Eventually(t, entered.Load, 5*time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		f.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stop did not return promptly")
	}

	assert.Equal(t, 0, fx.mirrors["r2"].Fetches())
}

func TestFetcherRecoversFromPanic(t *testing.T) {
	fx := newFixture(t, "r1", "r2")
	fx.mirrors["r1"].FetchFunc = func(context.Context) error { panic("boom") }
	rs, err := fx.load(context.Background())
	require.NoError(t, err)

	f := NewFetcher(zap.NewNop(), rs, time.Second)
	require.NotPanics(t, func() { f.fetchAll(context.Background()) })
	assert.Equal(t, 1, fx.mirrors["r2"].Fetches())

	sess, ok := rs[0].TryLock()
	require.True(t, ok)
	defer sess.Unlock()
	assert.Len(t, sess.DrainErrors(), 1)
}

func TestFetcherDisabled(t *testing.T) {
	f := NewFetcher(zap.NewNop(), nil, 0)
	f.Start()
	assert.Equal(t, StateStopped, f.State())
	f.Stop()
}
