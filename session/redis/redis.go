package redis_session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mohammad-safakhou/headliner/models"
	"github.com/redis/go-redis/v9"
)

// Store keeps each conversation as a redis list of JSON messages.
type Store struct {
	client *redis.Client
	prefix string
}

func NewRedisSessionStore(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "headliner"
	}
	return &Store{client: client, prefix: prefix}
}

func (store *Store) key(id string) string {
	return fmt.Sprintf("%s:session:%s:messages", store.prefix, id)
}

func (store *Store) Load(ctx context.Context, id string) ([]models.Message, error) {
	vals, err := store.client.LRange(ctx, store.key(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	out := make([]models.Message, 0, len(vals))
	for i, v := range vals {
		var m models.Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("decode session %s message %d: %w", id, i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// Append pushes all messages with a single RPUSH.
func (store *Store) Append(ctx context.Context, id string, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	vals := make([]interface{}, len(msgs))
	for i, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		vals[i] = data
	}
	if err := store.client.RPush(ctx, store.key(id), vals...).Err(); err != nil {
		return fmt.Errorf("append session %s: %w", id, err)
	}
	return nil
}
