package session

import (
	"context"

	"github.com/mohammad-safakhou/headliner/models"
)

// Store persists conversations keyed by session id. Append must add all given
// messages in one operation so a reader never observes half a step.
type Store interface {
	Load(ctx context.Context, id string) ([]models.Message, error)
	Append(ctx context.Context, id string, msgs ...models.Message) error
}

// Conversation is one session of a Store, as seen by a single run.
type Conversation struct {
	store Store
	id    string
}

// Bind scopes store to the session id.
func Bind(store Store, id string) *Conversation {
	return &Conversation{store: store, id: id}
}

func (c *Conversation) ID() string { return c.id }

func (c *Conversation) Messages(ctx context.Context) ([]models.Message, error) {
	return c.store.Load(ctx, c.id)
}

func (c *Conversation) Append(ctx context.Context, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return c.store.Append(ctx, c.id, msgs...)
}
