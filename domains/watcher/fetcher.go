// Package watcher keeps repository mirrors fresh and announces new commits.
package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gomantics/gitwatch/domains/repos"
	"go.uber.org/zap"
)

// fetchPeriodFactor offsets the fetch loop from the poll timer so the two do
// not contend for the same repositories on every tick.
const fetchPeriodFactor = 1.1

// Fetcher fetches every repository in the background on its own goroutine.
type Fetcher struct {
	l      *zap.Logger
	repos  []*repos.Repository
	period time.Duration

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFetcher creates a stopped fetcher. pollPeriod is the poll interval; the
// fetch interval is derived from it.
func NewFetcher(l *zap.Logger, rs []*repos.Repository, pollPeriod time.Duration) *Fetcher {
	return &Fetcher{
		l:      l.Named("fetcher"),
		repos:  rs,
		period: time.Duration(float64(pollPeriod) * fetchPeriodFactor),
		state:  StateStopped,
	}
}

// Period is the interval between fetch passes.
func (f *Fetcher) Period() time.Duration {
	return f.period
}

// State reports the lifecycle state.
func (f *Fetcher) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Start launches the fetch loop. Starting a running fetcher is a no-op.
func (f *Fetcher) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateStopped {
		return
	}
	if f.period <= 0 {
		f.l.Info("fetching disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.state = StateRunning

	f.l.Info("starting fetcher",
		zap.Duration("period", f.period),
		zap.Int("repositories", len(f.repos)),
	)

	f.wg.Add(1)
	go f.run(ctx)
}

// Stop cancels any in-flight fetch and waits for the loop to exit.
func (f *Fetcher) Stop() {
	f.mu.Lock()
	if f.state != StateRunning {
		f.mu.Unlock()
		f.wg.Wait()
		return
	}
	f.state = StateStopping
	f.cancel()
	f.mu.Unlock()

	f.wg.Wait()

	f.mu.Lock()
	f.state = StateStopped
	f.mu.Unlock()
	f.l.Info("fetcher stopped")
}

func (f *Fetcher) run(ctx context.Context) {
	defer f.wg.Done()

	// The first pass runs at once and the second half a period later, which
	// keeps later passes out of step with the poll timer.
	next := time.Now().Add(f.period / 2)
	for {
		f.fetchAll(ctx)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		next = time.Now().Add(f.period)
	}
}

func (f *Fetcher) fetchAll(ctx context.Context) {
	for _, r := range f.repos {
		if ctx.Err() != nil {
			return
		}
		f.fetchOne(ctx, r)
	}
}

func (f *Fetcher) fetchOne(ctx context.Context, r *repos.Repository) {
	sess, ok := r.TryLock()
	if !ok {
		f.l.Info("postponing repository fetch", zap.String("repo", r.ShortName), zap.String("reason", "locked"))
		return
	}
	defer sess.Unlock()

	defer func() {
		if rec := recover(); rec != nil {
			f.l.Error("panic while fetching", zap.String("repo", r.ShortName), zap.Any("panic", rec))
			sess.RecordError(fmt.Errorf("fetch panicked: %v", rec))
		}
	}()

	sess.Fetch(ctx)
}
