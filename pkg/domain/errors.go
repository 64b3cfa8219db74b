package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrFlowNotFound is returned when a transition or entry point references an unknown flow.
var ErrFlowNotFound = errors.New("flow not found")

// ErrNodeNotFound is returned when a flow does not contain the referenced node.
var ErrNodeNotFound = errors.New("node not found")

// ErrActionNotFound is returned when an action is not registered for the bot.
var ErrActionNotFound = errors.New("action not found")

// ErrInvalidEvent is returned when an event is missing the fields channel adapters must provide.
var ErrInvalidEvent = errors.New("invalid event")

// ErrInfiniteLoop is returned when a single turn performs more transitions than allowed.
var ErrInfiniteLoop = errors.New("infinite loop detected")
