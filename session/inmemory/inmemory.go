package inmemory

import (
	"context"
	"sync"

	"github.com/mohammad-safakhou/headliner/models"
)

// Store keeps conversations in process memory. They are lost on restart.
type Store struct {
	sessions map[string][]models.Message
	mu       sync.RWMutex
}

func NewInMemorySessionStore() *Store {
	return &Store{sessions: make(map[string][]models.Message)}
}

// Load returns a copy of the session's messages; an unknown id is an empty conversation.
func (store *Store) Load(ctx context.Context, id string) ([]models.Message, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	msgs := store.sessions[id]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (store *Store) Append(ctx context.Context, id string, msgs ...models.Message) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.sessions[id] = append(store.sessions[id], msgs...)
	return nil
}
