/*
Package session serializes access to dialog session states.

Concurrent turns of one conversation must not interleave their reads and
writes of the same record. Manager holds a per-key mutex for local callers
and, when configured, a distributed lock for replicas sharing a store.
Manager.Update is the get-and-update primitive the runtime uses for each turn.
*/
package session
