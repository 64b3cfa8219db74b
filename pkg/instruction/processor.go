package instruction

import (
	"context"
	"fmt"
	"time"

	"github.com/lyoneil/Botpress/pkg/domain"
)

// Processor routes compiled instructions to their strategy.
type Processor struct {
	action     Strategy
	transition Strategy
	hooks      domain.LifecycleHooks
}

// NewProcessor creates a processor. hooks may be the zero value.
func NewProcessor(action, transition Strategy, hooks domain.LifecycleHooks) *Processor {
	return &Processor{action: action, transition: transition, hooks: hooks}
}

// Process parses a raw instruction and executes it.
func (p *Processor) Process(ctx context.Context, botID string, in domain.Instruction, evt *domain.Event) (domain.ProcessingResult, error) {
	c, err := Parse(in)
	if err != nil {
		return domain.NoTransition(), err
	}
	return p.Execute(ctx, botID, c, evt)
}

// Execute runs one compiled instruction and returns exactly one result.
func (p *Processor) Execute(ctx context.Context, botID string, c Compiled, evt *domain.Event) (domain.ProcessingResult, error) {
	start := time.Now()

	var (
		res domain.ProcessingResult
		err error
	)
	switch c.(type) {
	case *Transition:
		res, err = p.transition.ProcessInstruction(ctx, botID, c, evt)
	case *Say, *Action:
		res, err = p.action.ProcessInstruction(ctx, botID, c, evt)
	default:
		err = fmt.Errorf("unsupported instruction %T", c)
	}

	if p.hooks.OnInstruction != nil {
		raw := c.Raw()
		p.hooks.OnInstruction(ctx, &domain.InstructionEvent{
			HookBase: domain.NewHookBase(domain.HookInstruction, evt),
			Kind:     string(raw.Type),
			Fn:       raw.Fn,
			Result:   res.String(),
			Duration: time.Since(start),
			Err:      err,
		})
	}
	return res, err
}
