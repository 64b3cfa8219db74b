/*
Package middleware runs events through ordered, named handler chains.

Each Chain holds the handlers of one direction (incoming or outgoing). A run
invokes them one at a time in ascending Order, ties broken by registration
sequence. Each handler decides what happens next through its continuation:

	next(nil, false, false) // continue
	next(nil, true, false)  // swallow: the event is consumed, nothing else runs
	next(nil, false, true)  // skip: annotate the audit trail and move on
	next(err, false, false) // fail: the run aborts with err

A handler that does not continue within its timeout is annotated as timed out
and the run moves on without cancelling it. Every outcome is recorded on the
event as a step, e.g. "mw:hitl:swallowed".

Pipeline groups both chains of one runtime. Integrations obtain a Scope from it
so that everything they registered goes away with a single Close.
*/
package middleware
