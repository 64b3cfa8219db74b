package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	backend "github.com/redis/go-redis/v9"

	"github.com/lyoneil/Botpress/internal/logging"
	"github.com/lyoneil/Botpress/pkg/realtime"
)

// DefaultRealtimePrefix namespaces the realtime channel and socket registry.
const DefaultRealtimePrefix = "botpress:realtime:"

// Backplane implements realtime.Backplane with Redis pub/sub for payloads
// and a hash for the socket rooms.
type Backplane struct {
	client  *backend.Client
	channel string
	sockets string
	logger  *slog.Logger
}

// NewBackplane creates a backplane. An empty prefix uses DefaultRealtimePrefix.
func NewBackplane(client *backend.Client, prefix string, logger *slog.Logger) *Backplane {
	if prefix == "" {
		prefix = DefaultRealtimePrefix
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Backplane{
		client:  client,
		channel: prefix + "events",
		sockets: prefix + "sockets",
		logger:  logger,
	}
}

func (b *Backplane) Publish(ctx context.Context, p realtime.Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Subscribe blocks until ctx is done. It returns once the subscription is
// confirmed by Redis or failed.
func (b *Backplane) Subscribe(ctx context.Context, fn func(realtime.Payload)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var p realtime.Payload
			if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
				b.logger.Warn("invalid realtime payload on backplane", "err", err)
				continue
			}
			fn(p)
		}
	}
}

func (b *Backplane) Join(ctx context.Context, socketID, room string) error {
	return b.client.HSet(ctx, b.sockets, socketID, room).Err()
}

func (b *Backplane) Leave(ctx context.Context, socketID string) error {
	return b.client.HDel(ctx, b.sockets, socketID).Err()
}

func (b *Backplane) RoomOfSocket(ctx context.Context, socketID string) (string, bool, error) {
	room, err := b.client.HGet(ctx, b.sockets, socketID).Result()
	if errors.Is(err, backend.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return room, true, nil
}
