// Package mcp exposes a runtime as a Model Context Protocol server. Agents
// hold conversations with bots through the converse tool, on the "mcp"
// channel, and inspect sessions and flows through the other tools.
package mcp
