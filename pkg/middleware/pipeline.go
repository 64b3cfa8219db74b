package middleware

import (
	"fmt"
	"sync"

	"github.com/lyoneil/Botpress/pkg/domain"
)

// Pipeline owns the incoming and outgoing chains of one runtime.
type Pipeline struct {
	incoming *Chain
	outgoing *Chain
}

// NewPipeline creates both chains with the same options.
func NewPipeline(opts ...Option) *Pipeline {
	return &Pipeline{
		incoming: NewChain(domain.DirectionIncoming, opts...),
		outgoing: NewChain(domain.DirectionOutgoing, opts...),
	}
}

// Incoming returns the chain run on events entering the bot.
func (p *Pipeline) Incoming() *Chain {
	return p.incoming
}

// Outgoing returns the chain run on events leaving the bot.
func (p *Pipeline) Outgoing() *Chain {
	return p.outgoing
}

// Chain returns the chain of a direction.
func (p *Pipeline) Chain(direction domain.Direction) (*Chain, error) {
	switch direction {
	case domain.DirectionIncoming:
		return p.incoming, nil
	case domain.DirectionOutgoing:
		return p.outgoing, nil
	default:
		return nil, fmt.Errorf("%w: unknown direction %q", ErrInvalidEntry, direction)
	}
}

// Register adds an entry to the chain of its direction.
func (p *Pipeline) Register(entry Entry) error {
	chain, err := p.Chain(entry.Direction)
	if err != nil {
		return err
	}
	return chain.Register(entry)
}

// Remove unregisters a handler. Idempotent.
func (p *Pipeline) Remove(direction domain.Direction, name string) bool {
	chain, err := p.Chain(direction)
	if err != nil {
		return false
	}
	return chain.Remove(name)
}

// Scope returns a registration handle bound to the lifecycle of one owner,
// typically an integration.
func (p *Pipeline) Scope(owner string) *Scope {
	return &Scope{pipeline: p, owner: owner}
}

type scopedName struct {
	direction domain.Direction
	name      string
}

// Scope tracks the registrations of one owner.
type Scope struct {
	pipeline *Pipeline
	owner    string

	mu     sync.Mutex
	names  []scopedName
	closed bool
}

// Owner returns the name the scope was opened with.
func (s *Scope) Owner() string {
	return s.owner
}

// Use registers an entry on behalf of the owner.
func (s *Scope) Use(entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: scope %q is closed", ErrInvalidEntry, s.owner)
	}
	if err := s.pipeline.Register(entry); err != nil {
		return err
	}
	s.names = append(s.names, scopedName{direction: entry.Direction, name: entry.Name})
	return nil
}

// Remove unregisters one of the owner's handlers. Idempotent.
func (s *Scope) Remove(direction domain.Direction, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.names {
		if n.direction == direction && n.name == name {
			s.names = append(s.names[:i:i], s.names[i+1:]...)
			return s.pipeline.Remove(direction, name)
		}
	}
	return false
}

// Close removes every handler registered through the scope. Idempotent.
func (s *Scope) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.names {
		s.pipeline.Remove(n.direction, n.name)
	}
	s.names = nil
	s.closed = true
}
