package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a revision does not resolve to a commit.
var ErrNotFound = errors.New("commit not found")

// Backend opens local mirrors of remote repositories.
type Backend interface {
	// Open returns the mirror at path, cloning url into it first when the
	// path does not exist yet.
	Open(ctx context.Context, url, path string) (Mirror, error)
}

// Mirror is a local copy of one remote repository. Implementations are not
// safe for concurrent use; callers serialize access.
type Mirror interface {
	// Fetch updates remote-tracking refs from the remote.
	Fetch(ctx context.Context) error

	// Resolve turns a revision (hash, hash prefix or ref) into a commit.
	Resolve(rev string) (Commit, error)

	// Between returns the commits reachable from to but not from from,
	// newest first.
	Between(from, to string) ([]Commit, error)

	// Log returns up to limit commits reachable from rev, newest first.
	Log(rev string, limit int) ([]Commit, error)

	// Count returns how many commits are reachable from rev, stopping at
	// limit.
	Count(rev string, limit int) (int, error)
}

// Options are the backend capabilities chosen once at startup.
type Options struct {
	RemoteName   string
	FetchTimeout time.Duration
}

// DefaultOptions match what a plain `git clone --no-checkout` produces.
func DefaultOptions() Options {
	return Options{
		RemoteName:   git.DefaultRemoteName,
		FetchTimeout: 5 * time.Minute,
	}
}

// Client is the go-git Backend.
type Client struct {
	l    *zap.Logger
	opts Options
}

// NewClient creates a go-git backend.
func NewClient(l *zap.Logger, opts Options) *Client {
	if opts.RemoteName == "" {
		opts.RemoteName = git.DefaultRemoteName
	}
	return &Client{l: l, opts: opts}
}

// Open implements Backend.
func (c *Client) Open(ctx context.Context, url, path string) (Mirror, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := c.clone(ctx, url, path); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat mirror %s: %w", path, err)
	}

	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mirror %s: %w", path, err)
	}

	return &mirror{repo: repo, path: path, opts: c.opts}, nil
}

func (c *Client) clone(ctx context.Context, url, path string) error {
	c.l.Info("cloning repository",
		zap.String("url", url),
		zap.String("dest", path),
	)

	_, err := git.PlainCloneContext(ctx, path, false, &git.CloneOptions{
		URL:        url,
		RemoteName: c.opts.RemoteName,
		NoCheckout: true,
	})
	if err != nil {
		// A half-written clone would be mistaken for a mirror next time.
		if rmErr := os.RemoveAll(path); rmErr != nil {
			c.l.Warn("failed to clean up partial clone", zap.String("path", path), zap.Error(rmErr))
		}
		return fmt.Errorf("failed to clone %s: %w", url, err)
	}

	c.l.Info("repository cloned", zap.String("dest", path))
	return nil
}

type mirror struct {
	repo *git.Repository
	path string
	opts Options
}

func (m *mirror) Fetch(ctx context.Context) error {
	if m.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.FetchTimeout)
		defer cancel()
	}

	err := m.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: m.opts.RemoteName,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to fetch %s: %w", m.path, err)
	}
	return nil
}

func (m *mirror) Resolve(rev string) (Commit, error) {
	c, err := m.commit(rev)
	if err != nil {
		return Commit{}, err
	}
	return toCommit(c), nil
}

func (m *mirror) Between(from, to string) ([]Commit, error) {
	tip, err := m.commit(to)
	if err != nil {
		return nil, err
	}
	base, err := m.commit(from)
	if err != nil {
		return nil, err
	}
	if base.Hash == tip.Hash {
		return nil, nil
	}

	if commits, ok := linear(base, tip); ok {
		return commits, nil
	}

	// Everything reachable from base is excluded, which is what from..to
	// means to git even across merges.
	excluded := make(map[plumbing.Hash]bool)
	err = object.NewCommitPreorderIter(base, nil, nil).ForEach(func(c *object.Commit) error {
		excluded[c.Hash] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk history of %s: %w", from, err)
	}

	var commits []Commit
	err = object.NewCommitPreorderIter(tip, excluded, nil).ForEach(func(c *object.Commit) error {
		commits = append(commits, toCommit(c))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s..%s: %w", from, to, err)
	}

	return commits, nil
}

// linear follows single-parent commits from tip down to base. It reports
// false on reaching a merge or a root.
func linear(base, tip *object.Commit) ([]Commit, bool) {
	var commits []Commit
	for c := tip; c.Hash != base.Hash; {
		if c.NumParents() != 1 {
			return nil, false
		}
		commits = append(commits, toCommit(c))
		parent, err := c.Parent(0)
		if err != nil {
			return nil, false
		}
		c = parent
	}
	return commits, true
}

func (m *mirror) Log(rev string, limit int) ([]Commit, error) {
	if limit <= 0 {
		return nil, nil
	}

	start, err := m.commit(rev)
	if err != nil {
		return nil, err
	}

	iter, err := m.repo.Log(&git.LogOptions{From: start.Hash})
	if err != nil {
		return nil, fmt.Errorf("failed to read log of %s: %w", rev, err)
	}
	defer iter.Close()

	commits := make([]Commit, 0, min(limit, 64))
	err = iter.ForEach(func(c *object.Commit) error {
		commits = append(commits, toCommit(c))
		if len(commits) >= limit {
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read log of %s: %w", rev, err)
	}

	return commits, nil
}

func (m *mirror) Count(rev string, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}

	start, err := m.commit(rev)
	if err != nil {
		return 0, err
	}

	iter, err := m.repo.Log(&git.LogOptions{From: start.Hash})
	if err != nil {
		return 0, fmt.Errorf("failed to read log of %s: %w", rev, err)
	}
	defer iter.Close()

	n := 0
	err = iter.ForEach(func(*object.Commit) error {
		n++
		if n >= limit {
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count commits of %s: %w", rev, err)
	}
	return n, nil
}

func (m *mirror) commit(rev string) (*object.Commit, error) {
	h, err := m.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, rev, err)
	}

	c, err := m.repo.CommitObject(*h)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, rev, err)
	}
	return c, nil
}
