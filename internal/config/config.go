// Package config holds runtime configuration: defaults, flag/env/file
// loading, and validation.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/backmassage/streammux/internal/container"
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Config holds all runtime settings. It is populated by [DefaultConfig] and
// then by [Load] before being passed (by pointer) to packages that need it.
type Config struct {
	// Inputs are source files or directories (set from positional args).
	// Directories are expanded to the media files they contain.
	Inputs []string

	// Output is the target file. Optional for dry runs.
	Output string

	// Container names the output kind (matroska, webm, mpegts or an
	// alias). Empty means infer from Output's extension, else matroska.
	Container string

	// Selection rules, applied in order: Rules from the rules file first,
	// then Rules from flags. Empty means "+all".
	Rules     []string
	RulesFile string

	// Behavior.
	DryRun    bool
	Force     bool // Overwrite an existing output.
	ReadAhead int  // Packets buffered per stream; 0 reads sequentially.

	// Tools and sidecar outputs.
	FFprobePath string
	MetricsFile string // Optional Prometheus textfile.

	// Display and logging.
	Verbose   bool
	ColorMode ColorMode
	LogFile   string // Optional JSON log file path.
	CheckOnly bool   // Run diagnostics and exit.
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	return Config{
		ReadAhead:   32,
		FFprobePath: "ffprobe",
		ColorMode:   ColorAuto,
	}
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// Kind resolves the output container kind: the explicit Container value,
// else the Output extension, else Matroska.
func (c *Config) Kind() (container.Kind, error) {
	if c.Container != "" {
		k, ok := container.ParseKind(c.Container)
		if !ok {
			return k, fmt.Errorf("invalid container %q (use matroska, webm or mpegts)", c.Container)
		}
		return k, nil
	}
	if k, ok := container.KindFromPath(c.Output); ok {
		return k, nil
	}
	return container.Matroska, nil
}

// Validate checks enum fields and numeric ranges. When not in CheckOnly
// mode it also requires at least one input, and an output unless DryRun.
func (c *Config) Validate() error {
	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}
	if c.ReadAhead < 0 {
		return errors.New("read-ahead must not be negative")
	}
	if _, err := c.Kind(); err != nil {
		return err
	}

	if c.CheckOnly {
		return nil
	}
	if len(c.Inputs) == 0 {
		return errors.New("need at least one input")
	}
	if c.Output == "" && !c.DryRun {
		return errors.New("need an output (-o) unless --dry-run is set")
	}
	return nil
}

// ValidateOutput ensures the resolved output path is not one of the
// resolved input paths. Both must be absolute and symlink-resolved.
func (c *Config) ValidateOutput(inputsAbs []string, outputAbs string) error {
	for _, in := range inputsAbs {
		if filepath.Clean(in) == filepath.Clean(outputAbs) {
			return fmt.Errorf("output %s would overwrite an input", outputAbs)
		}
	}
	return nil
}
