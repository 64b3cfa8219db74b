package ports_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/lyoneil/Botpress/pkg/domain"
	"github.com/lyoneil/Botpress/pkg/ports"
)

// jsonStore keeps serialized states, the way durable adapters do.
type jsonStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newJSONStore() *jsonStore {
	return &jsonStore{data: make(map[string][]byte)}
}

func (m *jsonStore) Save(ctx context.Context, sessionID string, state *domain.State) error {
	b, err := json.Marshal(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[sessionID] = b
	return nil
}

func (m *jsonStore) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	m.mu.Lock()
	b, ok := m.data[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	var s domain.State
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	s.Normalize()
	return &s, nil
}

func (m *jsonStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, sessionID)
	return nil
}

func (m *jsonStore) List(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestStateStore_Contract(t *testing.T) {
	ports.RunStateStoreContract(t, newJSONStore())
}

func TestSenderFunc(t *testing.T) {
	var got string
	var s ports.Sender = ports.SenderFunc(func(ctx context.Context, evt *domain.Event) error {
		got = evt.ID
		return nil
	})

	if err := s.Send(context.Background(), &domain.Event{ID: "evt-1"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got != "evt-1" {
		t.Errorf("expected evt-1, got %q", got)
	}
}
