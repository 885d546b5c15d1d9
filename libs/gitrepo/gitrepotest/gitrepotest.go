// Package gitrepotest provides an in-memory gitrepo.Backend for tests.
package gitrepotest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/gomantics/gitwatch/libs/gitrepo"
)

// Backend hands out Mirrors by URL. Unknown URLs fail to clone.
type Backend struct {
	mu      sync.Mutex
	mirrors map[string]*Mirror
	opened  []string
}

func NewBackend() *Backend {
	return &Backend{mirrors: make(map[string]*Mirror)}
}

// Add registers a mirror for url.
func (b *Backend) Add(url string, m *Mirror) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mirrors[url] = m
}

// Opened lists the paths passed to Open, in call order.
func (b *Backend) Opened() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.opened...)
}

func (b *Backend) Open(_ context.Context, url, path string) (gitrepo.Mirror, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.mirrors[url]
	if !ok {
		return nil, fmt.Errorf("failed to clone %s: repository not found", url)
	}
	b.opened = append(b.opened, path)
	return m, nil
}

// Mirror is a linear history per ref. Commits pushed with Push become
// visible on the ref immediately, as if already fetched.
type Mirror struct {
	mu      sync.Mutex
	ref     string
	history []gitrepo.Commit // oldest first

	FetchFunc func(ctx context.Context) error
	fetches   int

	// LogErr, when set, fails every Log and Count.
	LogErr error
}

// NewMirror creates a mirror tracking ref, e.g. "origin/master".
func NewMirror(ref string) *Mirror {
	return &Mirror{ref: ref}
}

// Push appends a commit to the tracked ref and returns it. An empty hash is
// derived from the message.
func (m *Mirror) Push(c gitrepo.Commit) gitrepo.Commit {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.Hash == "" {
		sum := sha1.Sum([]byte(fmt.Sprintf("%d:%s", len(m.history), c.Message)))
		c.Hash = hex.EncodeToString(sum[:])
	}
	m.history = append(m.history, c)
	return c
}

// Fetches counts Fetch calls.
func (m *Mirror) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

func (m *Mirror) Fetch(ctx context.Context) error {
	m.mu.Lock()
	m.fetches++
	fn := m.FetchFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return nil
}

func (m *Mirror) Resolve(rev string) (gitrepo.Commit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, err := m.index(rev)
	if err != nil {
		return gitrepo.Commit{}, err
	}
	return m.history[i], nil
}

func (m *Mirror) Between(from, to string) ([]gitrepo.Commit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lo, err := m.index(from)
	if err != nil {
		return nil, err
	}
	hi, err := m.index(to)
	if err != nil {
		return nil, err
	}
	var out []gitrepo.Commit
	for i := hi; i > lo; i-- {
		out = append(out, m.history[i])
	}
	return out, nil
}

func (m *Mirror) Log(rev string, limit int) ([]gitrepo.Commit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LogErr != nil {
		return nil, m.LogErr
	}
	hi, err := m.index(rev)
	if err != nil {
		return nil, err
	}
	var out []gitrepo.Commit
	for i := hi; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.history[i])
	}
	return out, nil
}

func (m *Mirror) Count(rev string, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LogErr != nil {
		return 0, m.LogErr
	}
	hi, err := m.index(rev)
	if err != nil {
		return 0, err
	}
	return min(hi+1, max(limit, 0)), nil
}

func (m *Mirror) index(rev string) (int, error) {
	if rev == m.ref {
		if len(m.history) == 0 {
			return 0, fmt.Errorf("%w: %s is empty", gitrepo.ErrNotFound, rev)
		}
		return len(m.history) - 1, nil
	}
	found := -1
	for i, c := range m.history {
		if rev != "" && strings.HasPrefix(c.Hash, rev) {
			if found >= 0 && m.history[found].Hash != c.Hash {
				return 0, fmt.Errorf("%w: %s is ambiguous", gitrepo.ErrNotFound, rev)
			}
			found = i
		}
	}
	if found < 0 {
		return 0, fmt.Errorf("%w: %s", gitrepo.ErrNotFound, rev)
	}
	return found, nil
}
