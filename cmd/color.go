package cmd

import (
	"os"

	"golang.org/x/term"
)

type colors struct {
	ok, warn, fail, reset string
}

// newColors returns ANSI colors for diagnostics on stderr, or none when
// disabled by flag, by NO_COLOR, or because stderr is not a terminal.
func newColors(noColor bool) colors {
	if noColor || os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stderr.Fd())) {
		return colors{}
	}
	return colors{ok: "\033[32m", warn: "\033[33m", fail: "\033[31m", reset: "\033[0m"}
}
