package realtime

import (
	"context"
	"sync"
)

// Backplane links the hubs of several nodes: payloads published on one node
// are delivered by all of them, and socket rooms are visible cluster-wide.
type Backplane interface {
	Publish(ctx context.Context, p Payload) error
	// Subscribe calls fn for every published payload until ctx is done.
	Subscribe(ctx context.Context, fn func(Payload)) error
	Join(ctx context.Context, socketID, room string) error
	Leave(ctx context.Context, socketID string) error
	// RoomOfSocket reports false when the socket is unknown to every node.
	RoomOfSocket(ctx context.Context, socketID string) (string, bool, error)
}

// MemoryBackplane connects hubs living in the same process.
type MemoryBackplane struct {
	mu    sync.RWMutex
	subs  map[int]func(Payload)
	next  int
	rooms map[string]string
}

func NewMemoryBackplane() *MemoryBackplane {
	return &MemoryBackplane{subs: make(map[int]func(Payload)), rooms: make(map[string]string)}
}

func (b *MemoryBackplane) Publish(_ context.Context, p Payload) error {
	b.mu.RLock()
	subs := make([]func(Payload), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(p)
	}
	return nil
}

func (b *MemoryBackplane) Subscribe(ctx context.Context, fn func(Payload)) error {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	<-ctx.Done()

	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
	return nil
}

func (b *MemoryBackplane) Join(_ context.Context, socketID, room string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rooms[socketID] = room
	return nil
}

func (b *MemoryBackplane) Leave(_ context.Context, socketID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.rooms, socketID)
	return nil
}

func (b *MemoryBackplane) RoomOfSocket(_ context.Context, socketID string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	room, ok := b.rooms[socketID]
	return room, ok, nil
}

// Subscribers returns the number of active subscriptions.
func (b *MemoryBackplane) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
