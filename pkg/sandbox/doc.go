/*
Package sandbox evaluates the boolean expressions flow designers attach to transitions.

Expressions are JavaScript, evaluated with goja in one of two tiers:

  - FastEvaluator: pooled runtimes, compiled programs cached, no watchdog.
  - IsolatedEvaluator: a fresh runtime per call on a detached copy of the
    environment, interrupted after a hard timeout and then discarded.

A Policy picks the tier. UnsafeCharPolicy sends anything containing a
parenthesis or a backtick to the isolated tier; the check is a superset of
call and template-literal syntax, so it may be over-cautious but never lets
such code reach the fast tier.

Both tiers evaluate

	try { return <expr>; } catch (err) { if (err instanceof TypeError) { return false; } throw err; }

so reading a property of an undefined value is false rather than an error.
*/
package sandbox
