// Conversation history storage.
//
// Information Hiding:
// - Session map and locking hidden behind HistoryStore
// - Callers always receive copies, never the stored slices

package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/richinex/theseus/llm"
)

// HistoryStore keeps per-session conversation history.
type HistoryStore interface {
	// Append adds messages to the end of a session, creating it if needed.
	Append(ctx context.Context, sessionID string, messages ...llm.ChatMessage) error

	// Load returns the session history. Missing sessions yield an empty slice.
	Load(ctx context.Context, sessionID string) ([]llm.ChatMessage, error)

	// Reset drops a session.
	Reset(ctx context.Context, sessionID string) error

	// Sessions lists session IDs in sorted order.
	Sessions(ctx context.Context) ([]string, error)
}

// MemoryHistory is a HistoryStore backed by a map. Data is lost on exit.
type MemoryHistory struct {
	mu       sync.RWMutex
	sessions map[string][]llm.ChatMessage
}

// NewMemoryHistory creates an empty history store.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{
		sessions: make(map[string][]llm.ChatMessage),
	}
}

// Append adds messages to the end of a session.
func (h *MemoryHistory) Append(_ context.Context, sessionID string, messages ...llm.ChatMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sessions[sessionID] = append(h.sessions[sessionID], messages...)
	return nil
}

// Load returns a copy of the session history.
func (h *MemoryHistory) Load(_ context.Context, sessionID string) ([]llm.ChatMessage, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stored := h.sessions[sessionID]
	copied := make([]llm.ChatMessage, len(stored))
	copy(copied, stored)
	return copied, nil
}

// Reset drops a session.
func (h *MemoryHistory) Reset(_ context.Context, sessionID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.sessions, sessionID)
	return nil
}

// Sessions lists session IDs in sorted order.
func (h *MemoryHistory) Sessions(_ context.Context) ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Verify MemoryHistory implements HistoryStore
var _ HistoryStore = (*MemoryHistory)(nil)
