package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSink struct {
	mu    sync.Mutex
	lines []Message
	fail  error
}

func (s *recordingSink) Send(_ context.Context, channel, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.lines = append(s.lines, Message{Channel: channel, Text: text})
	return nil
}

func TestRegistryDestinations(t *testing.T) {
	reg := NewRegistry()
	a, b := &recordingSink{}, &recordingSink{}
	reg.Register("b-net", b)
	reg.Register("a-net", a)

	require.NoError(t, reg.Join("a-net", "#Test"))
	require.NoError(t, reg.Join("b-net", "#test"))
	require.NoError(t, reg.Join("b-net", "#other"))

	dests := reg.Destinations([]string{"#test", "#somewhere"})
	require.Len(t, dests, 2)
	assert.Equal(t, "a-net/#test", dests[0].String())
	assert.Equal(t, "b-net/#test", dests[1].String())

	assert.Empty(t, reg.Destinations([]string{"#nowhere"}))
	assert.Equal(t, []string{"#other", "#test"}, reg.Joined("b-net"))
}

func TestRegistryPart(t *testing.T) {
	reg := NewRegistry()
	reg.Register("default", &recordingSink{})
	require.NoError(t, reg.Join("default", "#test"))
	require.NoError(t, reg.Part("default", "#TEST"))

	assert.Empty(t, reg.Destinations([]string{"#test"}))
	assert.Empty(t, reg.Joined("default"))
}

func TestRegistryUnknownConnection(t *testing.T) {
	reg := NewRegistry()
	assert.ErrorIs(t, reg.Join("nope", "#test"), ErrUnknownConnection)
	assert.ErrorIs(t, reg.Part("nope", "#test"), ErrUnknownConnection)
	assert.Nil(t, reg.Joined("nope"))
}

func TestRegisterKeepsJoinedChannels(t *testing.T) {
	reg := NewRegistry()
	first, second := &recordingSink{}, &recordingSink{}
	reg.Register("default", first)
	require.NoError(t, reg.Join("default", "#test"))
	reg.Register("default", second)

	dests := reg.Destinations([]string{"#test"})
	require.Len(t, dests, 1)
	require.NoError(t, dests[0].Send(context.Background(), []string{"hi"}))
	assert.Empty(t, first.lines)
	assert.Len(t, second.lines, 1)
}

func TestDestinationSendStopsOnError(t *testing.T) {
	reg := NewRegistry()
	sink := &recordingSink{fail: errors.New("gone")}
	reg.Register("default", sink)
	require.NoError(t, reg.Join("default", "#test"))

	err := reg.Destinations([]string{"#test"})[0].Send(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "gone")
}

func TestWebhookSink(t *testing.T) {
	var got []Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var m Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&m))
		got = append(got, m)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL)
	require.NoError(t, sink.Send(context.Background(), "#test", "[r1|master|nstark] Fix bugs."))
	assert.Equal(t, []Message{{Channel: "#test", Text: "[r1|master|nstark] Fix bugs."}}, got)
}

func TestWebhookSinkStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookSink(srv.URL).Send(context.Background(), "#test", "x")
	assert.ErrorContains(t, err, "502")
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	require.NoError(t, sink.Send(context.Background(), "#test", "hello"))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "chat", entry.LoggerName)
	assert.Equal(t, "hello", entry.ContextMap()["text"])
}
