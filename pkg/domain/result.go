package domain

// ProcessingResult is the outcome of one instruction: keep the flow position,
// or move to a target node. Targets may reference other flows.
type ProcessingResult struct {
	transition bool
	target     string
}

// NoTransition keeps the current flow position.
func NoTransition() ProcessingResult {
	return ProcessingResult{}
}

// TransitionTo moves the conversation to target.
func TransitionTo(target string) ProcessingResult {
	return ProcessingResult{transition: true, target: target}
}

// IsTransition reports whether the result asks for a transition.
func (r ProcessingResult) IsTransition() bool {
	return r.transition
}

// Target returns the transition target; empty for NoTransition.
func (r ProcessingResult) Target() string {
	return r.target
}

func (r ProcessingResult) String() string {
	if !r.transition {
		return "none"
	}
	return "transition(" + r.target + ")"
}
