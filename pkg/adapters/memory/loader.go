package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/lyoneil/Botpress/pkg/domain"
)

// Loader implements ports.FlowLoader using an in-memory map of bots to flows.
type Loader struct {
	mu    sync.RWMutex
	flows map[string]map[string]domain.Flow
}

// NewLoader creates an empty loader.
func NewLoader() *Loader {
	return &Loader{flows: make(map[string]map[string]domain.Flow)}
}

// NewFromFlows creates a loader holding the flows of one bot.
func NewFromFlows(botID string, flows ...domain.Flow) *Loader {
	l := NewLoader()
	l.Add(botID, flows...)
	return l
}

// NewFromJSON creates a loader from raw flow documents keyed by flow name.
// This handles deserialization automatically, improving DX for tests.
func NewFromJSON(botID string, data map[string]string) (*Loader, error) {
	flows := make([]domain.Flow, 0, len(data))
	for name, raw := range data {
		var f domain.Flow
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			return nil, fmt.Errorf("failed to unmarshal flow %s: %w", name, err)
		}
		if f.Name == "" {
			f.Name = name
		}
		flows = append(flows, f)
	}
	return NewFromFlows(botID, flows...), nil
}

// Add registers flows for a bot, replacing flows of the same name.
func (l *Loader) Add(botID string, flows ...domain.Flow) {
	l.mu.Lock()
	defer l.mu.Unlock()

	byName, ok := l.flows[botID]
	if !ok {
		byName = make(map[string]domain.Flow)
		l.flows[botID] = byName
	}
	for _, f := range flows {
		byName[f.Name] = f
	}
}

// LoadFlows returns the flows of a bot sorted by name.
func (l *Loader) LoadFlows(ctx context.Context, botID string) ([]domain.Flow, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	byName, ok := l.flows[botID]
	if !ok || len(byName) == 0 {
		return nil, fmt.Errorf("bot %s: %w", botID, domain.ErrFlowNotFound)
	}

	out := make([]domain.Flow, 0, len(byName))
	for _, f := range byName {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
