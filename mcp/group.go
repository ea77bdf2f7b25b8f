package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/richinex/theseus/tools"
)

// Group is a set of sessions used together as one tool and resource source.
type Group struct {
	sessions []*Session
	mux      *tools.Mux
}

// ConnectAll connects every server in order. On failure the sessions
// already opened are closed.
func ConnectAll(ctx context.Context, servers []NamedServer, logger *zap.Logger) (*Group, error) {
	var sessions []*Session
	for _, server := range servers {
		s, err := Connect(ctx, server, logger)
		if err != nil {
			for _, open := range sessions {
				open.Close()
			}
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return NewGroup(sessions...), nil
}

// NewGroup combines sessions; earlier sessions win tool name clashes.
func NewGroup(sessions ...*Session) *Group {
	callers := make([]tools.Caller, len(sessions))
	for i, s := range sessions {
		callers[i] = s
	}
	return &Group{sessions: sessions, mux: tools.Merge(callers...)}
}

// Sessions returns the member sessions.
func (g *Group) Sessions() []*Session {
	return g.sessions
}

// Descriptors lists the tools of all sessions.
func (g *Group) Descriptors() []tools.Descriptor {
	return g.mux.Descriptors()
}

// Call routes a tool call to the session that provides it.
func (g *Group) Call(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	return g.mux.Call(ctx, name, args)
}

// SyncResources indexes the resources of every session.
func (g *Group) SyncResources(ctx context.Context, sink ResourceSink) ([]string, error) {
	var all []string
	for _, s := range g.sessions {
		ids, err := s.SyncResources(ctx, sink)
		all = append(all, ids...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

// ReadResource asks each session for id until one serves it.
func (g *Group) ReadResource(ctx context.Context, id string) (string, error) {
	for _, s := range g.sessions {
		s.mu.RLock()
		_, ok := s.uris[id]
		s.mu.RUnlock()
		if ok {
			return s.ReadResource(ctx, id)
		}
	}
	return "", fmt.Errorf("no MCP server serves %s", id)
}

// Close closes every session.
func (g *Group) Close() error {
	var errs []error
	for _, s := range g.sessions {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

var _ tools.Caller = (*Group)(nil)
