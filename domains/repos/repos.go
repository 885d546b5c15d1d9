package repos

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gomantics/gitwatch/libs/gitrepo"
	"go.uber.org/zap"
)

var (
	ErrNotFound = errors.New("repository not found")
	// ErrLocked is returned by Lock when the context ends before the
	// repository lock is free.
	ErrLocked = errors.New("repository is locked")
)

// Repository is one monitored repository. The exported fields are fixed at
// load time; the mirror, the last-seen commit and the error queue are only
// reachable through a Session, which holds the repository lock.
type Repository struct {
	ShortName     string
	LongName      string
	URL           string
	Branch        string
	Path          string
	Channels      []string
	CommitLink    string
	CommitMessage string
	CommitReply   string

	l    *zap.Logger
	lock chan struct{}
	st   state
}

type state struct {
	mirror gitrepo.Mirror
	last   string
	errors []error
}

// New creates the repository described by def. The mirror root is created
// when missing, the mirror is cloned when absent, and the last-seen commit
// starts at the branch tip unless cursors has a still-resolvable one.
func New(ctx context.Context, l *zap.Logger, backend gitrepo.Backend, cursors CursorStore, rootDir string, def Definition) (*Repository, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create mirror root %s: %w", rootDir, err)
	}

	r := &Repository{
		ShortName:     def.ShortName,
		LongName:      def.LongName,
		URL:           def.URL,
		Branch:        "origin/" + def.Branch,
		Path:          filepath.Join(rootDir, def.ShortName),
		Channels:      slices.Clone(def.Channels),
		CommitLink:    def.CommitLink,
		CommitMessage: def.CommitMessage,
		CommitReply:   def.CommitReply,
		l:             l.With(zap.String("repo", def.ShortName)),
		lock:          make(chan struct{}, 1),
	}
	if r.CommitMessage == "" {
		r.CommitMessage = DefaultCommitMessage
	}

	mirror, err := backend.Open(ctx, r.URL, r.Path)
	if err != nil {
		return nil, fmt.Errorf("repository %s: %w", r.LongName, err)
	}

	tip, err := mirror.Resolve(r.Branch)
	if err != nil {
		return nil, fmt.Errorf("repository %s: branch %s: %w", r.LongName, r.Branch, err)
	}

	r.st.mirror = mirror
	r.st.last = tip.Hash

	if cursors != nil {
		stored, err := cursors.Load(ctx, r.CursorKey())
		switch {
		case err != nil:
			r.l.Warn("failed to load last-seen commit, starting at tip", zap.Error(err))
		case stored != "":
			if c, err := mirror.Resolve(stored); err == nil {
				r.st.last = c.Hash
				r.l.Info("resuming from stored commit", zap.String("commit", c.Hash))
			} else {
				r.l.Warn("stored commit no longer resolves, starting at tip", zap.String("commit", stored))
			}
		}
	}

	return r, nil
}

// BranchName is the tracked branch without its remote prefix.
func (r *Repository) BranchName() string {
	return r.Branch[strings.LastIndex(r.Branch, "/")+1:]
}

// InChannel reports whether notifications for r go to channel.
func (r *Repository) InChannel(channel string) bool {
	for _, c := range r.Channels {
		if strings.EqualFold(c, channel) {
			return true
		}
	}
	return false
}

func (r *Repository) CursorKey() CursorKey {
	return CursorKey{ShortName: r.ShortName, URL: r.URL, Branch: r.Branch}
}

// TryLock acquires the repository lock without waiting.
func (r *Repository) TryLock() (*Session, bool) {
	select {
	case r.lock <- struct{}{}:
		return &Session{r: r}, true
	default:
		return nil, false
	}
}

// Lock waits for the repository lock until ctx ends.
func (r *Repository) Lock(ctx context.Context) (*Session, error) {
	select {
	case r.lock <- struct{}{}:
		return &Session{r: r}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", ErrLocked, r.ShortName, ctx.Err())
	}
}

// With runs fn holding the repository lock, waiting for it until ctx ends.
// The lock is released when fn returns or panics.
func (r *Repository) With(ctx context.Context, fn func(s *Session) error) error {
	sess, err := r.Lock(ctx)
	if err != nil {
		return err
	}
	defer sess.Unlock()
	return fn(sess)
}

// Session is exclusive access to a repository's mutable state. It must be
// released with Unlock and not used afterwards.
type Session struct {
	r        *Repository
	released bool
}

// Unlock releases the repository lock. Extra calls are ignored.
func (s *Session) Unlock() {
	if s.released {
		return
	}
	s.released = true
	<-s.r.lock
}

// Fetch updates the mirror from the remote. A failure is queued on the
// repository rather than returned.
func (s *Session) Fetch(ctx context.Context) {
	if err := s.r.st.mirror.Fetch(ctx); err != nil {
		s.r.l.Debug("fetch failed", zap.Error(err))
		s.RecordError(err)
	}
}

// CommitByID resolves a user-supplied commit id. Anything that is not a 6 to
// 40 character lowercase hex string, or that does not resolve, is reported
// as not found.
func (s *Session) CommitByID(id string) (gitrepo.Commit, bool) {
	if !IsCommitID(id) {
		return gitrepo.Commit{}, false
	}
	c, err := s.r.st.mirror.Resolve(id)
	if err != nil {
		return gitrepo.Commit{}, false
	}
	return c, true
}

// NewCommits returns the commits after the last-seen commit up to the branch
// tip, oldest first, and moves the last-seen commit to the tip.
func (s *Session) NewCommits() ([]gitrepo.Commit, error) {
	tip, err := s.r.st.mirror.Resolve(s.r.Branch)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", s.r.Branch, err)
	}

	if s.r.st.last == "" {
		s.r.st.last = tip.Hash
		return nil, nil
	}
	if tip.Hash == s.r.st.last {
		return nil, nil
	}

	commits, err := s.r.st.mirror.Between(s.r.st.last, tip.Hash)
	if err != nil {
		return nil, err
	}
	s.r.st.last = tip.Hash

	slices.Reverse(commits)
	return commits, nil
}

// RecentCommits returns up to count commits from the branch tip, newest
// first. The last-seen commit is not touched.
func (s *Session) RecentCommits(count int) ([]gitrepo.Commit, error) {
	return s.r.st.mirror.Log(s.r.Branch, count)
}

// CountCommits counts the commits reachable from the branch tip, stopping
// at limit.
func (s *Session) CountCommits(limit int) (int, error) {
	return s.r.st.mirror.Count(s.r.Branch, limit)
}

// LastCommit is the hash of the last-seen commit.
func (s *Session) LastCommit() string {
	return s.r.st.last
}

// RecordError queues err for the next DrainErrors.
func (s *Session) RecordError(err error) {
	s.r.st.errors = append(s.r.st.errors, err)
}

// DrainErrors returns and clears the queued errors.
func (s *Session) DrainErrors() []error {
	errs := s.r.st.errors
	s.r.st.errors = nil
	return errs
}

// IsCommitID reports whether id looks like an abbreviated or full commit
// hash.
func IsCommitID(id string) bool {
	if len(id) < 6 || len(id) > 40 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Find returns the repository of rs with the given short name.
func Find(rs []*Repository, shortName string) (*Repository, error) {
	for _, r := range rs {
		if r.ShortName == shortName {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, shortName)
}
