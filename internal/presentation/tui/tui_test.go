package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintBanner(t *testing.T) {
	var out bytes.Buffer
	PrintBanner(&out)

	// A buffer is not a terminal: no escape sequences.
	assert.NotContains(t, out.String(), "\x1b[")
	assert.Equal(t, 8, strings.Count(out.String(), "\n"))
}

func TestNewRenderer(t *testing.T) {
	render, err := NewRenderer()
	require.NoError(t, err)

	got, err := render("Hello **Ada**")
	require.NoError(t, err)
	assert.Contains(t, got, "Hello")
	assert.Contains(t, got, "Ada")
}
