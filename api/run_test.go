package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gomantics/gitwatch/domains/commands"
	"github.com/gomantics/gitwatch/domains/repos"
	"github.com/gomantics/gitwatch/domains/watcher"
	"github.com/gomantics/gitwatch/libs/chat"
	"github.com/gomantics/gitwatch/libs/gitrepo"
	"github.com/gomantics/gitwatch/libs/gitrepo/gitrepotest"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type settings struct{}

func (settings) PollPeriod() time.Duration { return 0 }
func (settings) MaxCommitsAtOnce() int64   { return 5 }
func (settings) SnarfEnabled() bool        { return true }

type server struct {
	e       *echo.Echo
	w       *watcher.Watcher
	reg     *chat.Registry
	mirror  *gitrepotest.Mirror
	initial gitrepo.Commit
}

func newServer(t *testing.T) *server {
	t.Helper()

	m := gitrepotest.NewMirror("origin/master")
	initial := m.Push(gitrepo.Commit{
		Hash:       "deadbeefcdefabcdefabcdefabcdefabcdefabcd",
		AuthorName: "nstark",
		Message:    "Fix bugs.",
	})
	backend := gitrepotest.NewBackend()
	backend.Add("https://example.com/r1.git", m)

	defs := []repos.Definition{{
		LongName:      "Repository One",
		ShortName:     "r1",
		URL:           "https://example.com/r1.git",
		Branch:        "master",
		Channels:      []string{"#test"},
		CommitMessage: repos.DefaultCommitMessage,
	}}
	root := t.TempDir()
	load := func(ctx context.Context) ([]*repos.Repository, error) {
		return repos.Load(ctx, zap.NewNop(), backend, nil, root, defs)
	}

	reg := chat.NewRegistry()
	reg.Register("default", chat.NewLogSink(zap.NewNop()))

	w := watcher.New(zap.NewNop(), settings{}, reg, nil, load)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)

	svc := commands.NewService(zap.NewNop(), w, settings{})
	return &server{e: NewServer(zap.NewNop(), w, svc, reg), w: w, reg: reg, mirror: m, initial: initial}
}

func (s *server) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

type lines struct {
	Lines []string `json:"lines"`
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "disabled", body["database"])
	assert.EqualValues(t, 1, body["repositories"])
}

func TestCommands(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/v1/commands", `{"channel":"#test","text":"log r1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"[r1|master|nstark] Fix bugs."}, decode[lines](t, rec).Lines)

	rec = s.do(t, http.MethodPost, "/v1/commands", `{"channel":"#test","text":"repositories"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"\x02r1\x02 (Repository One, branch: master)"}, decode[lines](t, rec).Lines)

	rec = s.do(t, http.MethodPost, "/v1/commands", `{"channel":"#test","text":"dance"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/commands", `{"channel":"","text":"log r1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessages(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/v1/messages", `{"channel":"#test","text":"look at deadbeef"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"[r1|master|nstark] Fix bugs."}, decode[lines](t, rec).Lines)

	rec = s.do(t, http.MethodPost, "/v1/messages", `{"channel":"#test","text":"nothing here"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[lines](t, rec).Lines)
}

func TestChannels(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPut, "/v1/channels/%23test", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, s.reg.Destinations([]string{"#test"}), 1)

	rec = s.do(t, http.MethodGet, "/v1/channels", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"#test"}, decode[map[string]any](t, rec)["channels"])

	rec = s.do(t, http.MethodDelete, "/v1/channels/%23test", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, s.reg.Destinations([]string{"#test"}))
}

func TestRepositories(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/v1/repositories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, list["total"])

	rec = s.do(t, http.MethodGet, "/v1/repositories?channel=%23other", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode[map[string]any](t, rec)["total"])

	rec = s.do(t, http.MethodGet, "/v1/repositories/r1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[map[string]any](t, rec)
	assert.Equal(t, "r1", got["short_name"])
	assert.Equal(t, s.initial.Hash, got["last_commit_sha"])

	rec = s.do(t, http.MethodGet, "/v1/repositories/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
