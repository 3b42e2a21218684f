// Package memory provides bounded conversation history storage, keyed
// by the messaging conversation identifier.
package memory

import (
	"context"
	"slices"
	"sync"
)

// DefaultWindow is the number of history entries kept when no window
// is configured. Each turn contributes two entries.
const DefaultWindow = 10

// ConversationStore persists the recent history of each conversation.
// Entries are plain strings in chronological order.
type ConversationStore interface {
	// Load returns the stored history, or an empty slice when the
	// conversation has never been saved.
	Load(ctx context.Context, id string) ([]string, error)

	// Save replaces the stored history for id.
	Save(ctx context.Context, id string, history []string) error
}

// Truncate returns the last window entries of history. A window of
// zero or less keeps nothing. The result never aliases history.
func Truncate(history []string, window int) []string {
	if window <= 0 {
		return []string{}
	}
	if len(history) > window {
		history = history[len(history)-window:]
	}
	return append([]string{}, history...)
}

// Store is an in-process ConversationStore. Its contents do not
// survive a restart; it backs one-shot CLI runs and tests.
type Store struct {
	mu            sync.RWMutex
	conversations map[string][]string
}

// NewStore creates an empty in-process store.
func NewStore() *Store {
	return &Store{conversations: make(map[string][]string)}
}

// Load returns a copy of the stored history for id.
func (s *Store) Load(_ context.Context, id string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.conversations[id]
	if !ok {
		return []string{}, nil
	}
	return slices.Clone(h), nil
}

// Save stores a copy of history for id.
func (s *Store) Save(_ context.Context, id string, history []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations[id] = append([]string{}, history...)
	return nil
}

// Len returns the number of conversations held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}
