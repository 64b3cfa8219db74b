package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the Botpress banner, colored when w is a terminal.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text  string
		color string
	}{
		{"  ____        _                          ", "#38bdf8"},
		{" | __ )  ___ | |_ _ __  _ __ ___  ___ ___", "#3b82f6"},
		{" |  _ \\ / _ \\| __| '_ \\| '__/ _ \\/ __/ __|", "#6366f1"},
		{" | |_) | (_) | |_| |_) | | |  __/\\__ \\__ \\", "#818cf8"},
		{" |____/ \\___/ \\__| .__/|_|  \\___||___/___/", "#a78bfa"},
		{"                 |_|                      ", "#c084fc"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}
