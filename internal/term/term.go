// Package term resolves the color mode and detects terminals.
//
// Color state lives in fatih/color's package-level NoColor switch because
// logging and display both render through it. [Configure] sets it once
// during startup.
package term

import (
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/backmassage/streammux/internal/config"
)

// Configure resolves the color mode and switches fatih/color on or off.
// It returns whether colors are enabled.
func Configure(mode config.ColorMode) bool {
	enabled := resolve(mode, IsTerminal(os.Stdout))
	color.NoColor = !enabled
	return enabled
}

// Enabled reports whether ANSI colors are currently active.
func Enabled() bool { return !color.NoColor }

// resolve determines whether colors should be enabled based on the configured
// mode, TTY detection, and the NO_COLOR env var (https://no-color.org).
func resolve(mode config.ColorMode, tty bool) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default: // ColorAuto
		return tty &&
			os.Getenv("NO_COLOR") == "" &&
			strings.ToLower(os.Getenv("TERM")) != "dumb"
	}
}

// IsTerminal reports whether f is attached to a TTY (character device).
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
