package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lyoneil/Botpress/pkg/domain"
	"github.com/lyoneil/Botpress/pkg/ports"
	"github.com/lyoneil/Botpress/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data map[string]*domain.State
	mu   sync.Mutex
}

func (s *SlowStore) Save(ctx context.Context, sessionID string, state *domain.State) error {
	time.Sleep(5 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string]*domain.State)
	}
	s.data[sessionID] = state.Clone()
	return nil
}

func (s *SlowStore) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	time.Sleep(5 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.data[sessionID]; ok {
		return state.Clone(), nil
	}
	return nil, domain.ErrSessionNotFound
}

func (s *SlowStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestManager_UpdateSerializesTurns(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "bot::web::race"

	var wg sync.WaitGroup
	turns := 10

	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := manager.Update(ctx, id, func(_ context.Context, s *domain.State) error {
				n, _ := s.Session.Values["turns"].(int)
				s.Session.Values["turns"] = n + 1
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, turns, state.Session.Values["turns"], "no update may be lost")
}

func TestManager_UpdateCreatesState(t *testing.T) {
	manager := session.NewManager(&SlowStore{})
	ctx := context.Background()

	state, err := manager.Update(ctx, "bot::web::new", func(_ context.Context, s *domain.State) error {
		assert.False(t, s.Context.IsActive())
		assert.NotNil(t, s.Temp)
		s.Context.CurrentFlow = "main.flow.json"
		s.Context.CurrentNode = "entry"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "entry", state.Context.CurrentNode)

	loaded, err := manager.Load(ctx, "bot::web::new")
	require.NoError(t, err)
	assert.Equal(t, "main.flow.json", loaded.Context.CurrentFlow)
}

func TestManager_UpdateFailureSavesNothing(t *testing.T) {
	manager := session.NewManager(&SlowStore{})
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := manager.Update(ctx, "bot::web::x", func(context.Context, *domain.State) error { return boom })
	assert.ErrorIs(t, err, boom)

	_, err = manager.Load(ctx, "bot::web::x")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

type recordingLocker struct {
	mu      sync.Mutex
	locked  []string
	ttls    []time.Duration
	release int
	fail    error
}

func (l *recordingLocker) Lock(_ context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return nil, l.fail
	}
	l.locked = append(l.locked, key)
	l.ttls = append(l.ttls, ttl)
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.release++
		return nil
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &recordingLocker{}
	manager := session.NewManager(&SlowStore{}, session.WithLocker(locker), session.WithLockTTL(time.Second))

	_, err := manager.Update(context.Background(), "bot::web::u", func(context.Context, *domain.State) error { return nil })
	require.NoError(t, err)

	assert.Equal(t, []string{"bot::web::u"}, locker.locked)
	assert.Equal(t, []time.Duration{time.Second}, locker.ttls)
	assert.Equal(t, 1, locker.release)

	locker.fail = errors.New("redis down")
	_, err = manager.Update(context.Background(), "bot::web::u", func(context.Context, *domain.State) error {
		t.Fatal("must not run without the lock")
		return nil
	})
	assert.ErrorContains(t, err, "failed to acquire distributed lock")
}
