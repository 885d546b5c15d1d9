// Package chat tracks chat connections, the channels they have joined, and
// delivers outbound lines to them.
package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
)

var ErrUnknownConnection = errors.New("unknown connection")

// Sink delivers one line of text to a channel.
type Sink interface {
	Send(ctx context.Context, channel, text string) error
}

// Destination is a channel on a joined connection.
type Destination struct {
	Connection string
	Channel    string

	sink Sink
}

// Send delivers lines in order, one message per line, and stops at the
// first failure.
func (d Destination) Send(ctx context.Context, lines []string) error {
	for _, line := range lines {
		if err := d.sink.Send(ctx, d.Channel, line); err != nil {
			return fmt.Errorf("failed to send to %s on %s: %w", d.Channel, d.Connection, err)
		}
	}
	return nil
}

func (d Destination) String() string {
	return d.Connection + "/" + d.Channel
}

type connection struct {
	sink   Sink
	joined map[string]string // folded name -> name as joined
}

// Registry holds the known connections and their joined channels. It is
// safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*connection
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*connection)}
}

// Register adds a connection, or replaces its sink if it already exists.
// Joined channels are kept.
func (r *Registry) Register(name string, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[name]; ok {
		c.sink = sink
		return
	}
	r.conns[name] = &connection{sink: sink, joined: make(map[string]string)}
}

// Join marks channel as joined on the named connection.
func (r *Registry) Join(conn, channel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[conn]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConnection, conn)
	}
	c.joined[strings.ToLower(channel)] = channel
	return nil
}

// Part marks channel as no longer joined on the named connection.
func (r *Registry) Part(conn, channel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[conn]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConnection, conn)
	}
	delete(c.joined, strings.ToLower(channel))
	return nil
}

// Joined lists the channels joined on the named connection, sorted.
func (r *Registry) Joined(conn string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[conn]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(c.joined))
	for _, ch := range c.joined {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Destinations returns every (connection, channel) pair where the connection
// has joined one of channels. Connections are visited in name order and
// channels in the order given.
func (r *Registry) Destinations(channels []string) []Destination {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.conns))
	for name := range r.conns {
		names = append(names, name)
	}
	slices.Sort(names)

	var out []Destination
	for _, name := range names {
		c := r.conns[name]
		for _, ch := range channels {
			if _, ok := c.joined[strings.ToLower(ch)]; ok {
				out = append(out, Destination{Connection: name, Channel: ch, sink: c.sink})
			}
		}
	}
	return out
}
