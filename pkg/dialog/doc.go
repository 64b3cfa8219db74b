/*
Package dialog walks the compiled flows of a bot for each incoming event.

A conversation is positioned on one node of one flow. Entering a node runs its
onEnter instructions; a node with an onReceive list (even an empty one) then
waits for the next message, the others evaluate their transitions right away.
The next message resumes the waiting node: the flow catch-all is evaluated
first, then onReceive, then the node transitions.

# Targets

Transitions and action failures name their destination with a target:

	node                  a node of the current flow
	other.flow.json       the start node of another flow (a sub-flow call)
	other.flow.json#node  a node of another flow
	#                     return to the calling flow and evaluate its node transitions
	#node                 return to the calling flow at node
	END                   end the conversation

The Engine never touches storage. It works on the State attached to the
event, and callers persist it under the session lock (see package session).
*/
package dialog
