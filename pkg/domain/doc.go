/*
Package domain contains the core models of the conversational pipeline.

It defines the entities that every other package exchanges, and is kept free of
I/O, persistence and transport concerns.

# Key Entities

  - Event: the inbound/outbound message envelope, carrying the conversation State.
  - State: the per-conversation dialog session (context, temp, session, workflow variables, stack trace).
  - Flow / Node: a dialog program graph. Nodes hold instructions and outgoing transitions.
  - Instruction: one unit of work attached to a node (say, action call, transition condition).
  - ProcessingResult: the outcome of one instruction, either no transition or a transition to a target.
*/
package domain
