// Package cli assembles a runtime from configuration and runs it for the
// commands of cmd/botpress: the HTTP server, the terminal chat, flow
// validation and session administration.
package cli
