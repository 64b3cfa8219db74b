package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/lyoneil/Botpress/pkg/domain"
)

// ServerDirectory is a static ports.ActionServerResolver, usually filled from configuration.
type ServerDirectory struct {
	mu      sync.RWMutex
	servers map[string]domain.ActionServer
}

func NewServerDirectory(servers ...domain.ActionServer) *ServerDirectory {
	d := &ServerDirectory{servers: make(map[string]domain.ActionServer, len(servers))}
	for _, s := range servers {
		d.servers[s.ID] = s
	}
	return d
}

// Add registers or replaces a server.
func (d *ServerDirectory) Add(s domain.ActionServer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.servers[s.ID] = s
}

// GetServer implements ports.ActionServerResolver.
func (d *ServerDirectory) GetServer(_ context.Context, id string) (*domain.ActionServer, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.servers[id]
	if !ok {
		return nil, false
	}
	return &s, true
}

// List returns the servers sorted by id.
func (d *ServerDirectory) List() []domain.ActionServer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.ActionServer, 0, len(d.servers))
	for _, s := range d.servers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
