package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gomantics/gitwatch/domains/format"
	"github.com/gomantics/gitwatch/domains/repos"
	"github.com/gomantics/gitwatch/libs/chat"
	"github.com/gomantics/gitwatch/libs/gitrepo"
	"go.uber.org/zap"
)

var ErrNotStarted = errors.New("watcher not started")

// Settings are the live polling settings, re-read on every run.
type Settings interface {
	PollPeriod() time.Duration
	MaxCommitsAtOnce() int64
}

// Host resolves the channels a repository announces to into the
// destinations currently joined.
type Host interface {
	Destinations(channels []string) []chat.Destination
}

// LoadFunc builds a fresh repository set from configuration.
type LoadFunc func(ctx context.Context) ([]*repos.Repository, error)

// Watcher owns the active repository set, the background Fetcher and the
// poll loop that announces new commits.
type Watcher struct {
	l        *zap.Logger
	settings Settings
	host     Host
	cursors  repos.CursorStore
	load     LoadFunc

	reloadMu sync.Mutex
	pollMu   sync.Mutex

	mu      sync.Mutex
	repos   []*repos.Repository
	fetcher *Fetcher
	period  time.Duration
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func New(l *zap.Logger, settings Settings, host Host, cursors repos.CursorStore, load LoadFunc) *Watcher {
	if cursors == nil {
		cursors = repos.NopCursors{}
	}
	return &Watcher{
		l:        l.Named("watcher"),
		settings: settings,
		host:     host,
		cursors:  cursors,
		load:     load,
	}
}

// Start loads the repository set and starts fetching and polling.
func (w *Watcher) Start(ctx context.Context) error {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	rs, err := w.load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load repositories: %w", err)
	}

	w.mu.Lock()
	w.repos = rs
	w.started = true
	w.mu.Unlock()

	w.l.Info("repositories loaded", zap.Int("count", len(rs)))
	w.schedule(w.settings.PollPeriod())
	return nil
}

// Stop halts polling and fetching and waits for both to finish.
func (w *Watcher) Stop() {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	w.unschedule()

	w.mu.Lock()
	w.started = false
	w.mu.Unlock()
}

// Reload replaces the repository set with a freshly loaded one. On failure
// the previous set stays active and is rescheduled.
func (w *Watcher) Reload(ctx context.Context) (int, error) {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if !started {
		return 0, ErrNotStarted
	}

	w.unschedule()

	rs, err := w.load(ctx)
	if err != nil {
		w.l.Error("failed to reload repositories, keeping previous set", zap.Error(err))
		w.schedule(w.settings.PollPeriod())
		return 0, err
	}

	w.mu.Lock()
	w.repos = rs
	w.mu.Unlock()

	w.l.Info("repositories reloaded", zap.Int("count", len(rs)))
	w.schedule(w.settings.PollPeriod())
	return len(rs), nil
}

// Repositories returns the active repository set. The slice must not be
// modified.
func (w *Watcher) Repositories() []*repos.Repository {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.repos
}

// Period is the poll interval currently scheduled; zero when polling is off.
func (w *Watcher) Period() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.period
}

func (w *Watcher) schedule(period time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.period = period
	if period <= 0 {
		w.l.Info("polling disabled")
		return
	}

	w.fetcher = NewFetcher(w.l, w.repos, period)
	w.fetcher.Start()

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	go w.run(ctx, period)

	w.l.Info("polling scheduled", zap.Duration("period", period))
}

func (w *Watcher) unschedule() {
	w.mu.Lock()
	cancel, fetcher := w.cancel, w.fetcher
	w.cancel, w.fetcher = nil, nil
	w.period = 0
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
	if fetcher != nil {
		fetcher.Stop()
	}
}

func (w *Watcher) run(ctx context.Context, period time.Duration) {
	defer w.wg.Done()

	timer := time.NewTimer(period)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		w.Poll(ctx)

		next := w.settings.PollPeriod()
		if next != period {
			if ctx.Err() != nil {
				return
			}
			w.l.Info("poll period changed, rescheduling",
				zap.Duration("from", period),
				zap.Duration("to", next),
			)
			w.restartFetcher(next)
			if next <= 0 {
				return
			}
			period = next
		}
		timer.Reset(period)
	}
}

func (w *Watcher) restartFetcher(period time.Duration) {
	w.mu.Lock()
	old := w.fetcher
	w.fetcher = nil
	w.period = period
	w.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	if period <= 0 {
		w.l.Info("polling disabled")
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel == nil {
		return
	}
	w.fetcher = NewFetcher(w.l, w.repos, period)
	w.fetcher.Start()
}

// Poll checks every repository once for new commits and delivers them.
// Runs never overlap.
func (w *Watcher) Poll(ctx context.Context) {
	w.pollMu.Lock()
	defer w.pollMu.Unlock()

	limit := int(w.settings.MaxCommitsAtOnce())
	for _, r := range w.Repositories() {
		if ctx.Err() != nil {
			return
		}
		if err := w.pollOne(ctx, r, limit); err != nil {
			w.l.Error("failed to poll repository", zap.String("repo", r.ShortName), zap.Error(err))
		}
	}
}

func (w *Watcher) pollOne(ctx context.Context, r *repos.Repository, limit int) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	l := w.l.With(zap.String("repo", r.ShortName))

	dests := w.host.Destinations(r.Channels)
	if len(dests) == 0 {
		l.Debug("no joined channels, skipping")
		return nil
	}

	commits, last, ok, err := w.collect(l, r)
	if err != nil || !ok || len(commits) == 0 {
		return err
	}

	if err := w.cursors.Save(ctx, r.CursorKey(), last); err != nil {
		l.Warn("failed to persist last-seen commit", zap.Error(err))
	}

	lines := format.Commits(r, commits, limit)
	for _, d := range dests {
		if err := d.Send(ctx, lines); err != nil {
			l.Error("failed to deliver commits", zap.Stringer("destination", d), zap.Error(err))
		}
	}
	return nil
}

// collect reads queued errors and new commits under the repository lock.
func (w *Watcher) collect(l *zap.Logger, r *repos.Repository) ([]gitrepo.Commit, string, bool, error) {
	sess, ok := r.TryLock()
	if !ok {
		l.Info("postponing repository read", zap.String("reason", "locked"))
		return nil, "", false, nil
	}
	defer sess.Unlock()

	for _, err := range sess.DrainErrors() {
		l.Error("unable to fetch", zap.String("url", r.URL), zap.Error(err))
	}

	commits, err := sess.NewCommits()
	if err != nil {
		return nil, "", true, err
	}
	return commits, sess.LastCommit(), true, nil
}
