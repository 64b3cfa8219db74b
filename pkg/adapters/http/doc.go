// Package http exposes the runtime over HTTP with chi: the converse API,
// session administration, health and metrics endpoints, server-sent session
// diffs and the realtime websocket namespaces.
package http
