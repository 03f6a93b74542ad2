// Package logging wraps zerolog with the leveled printf-style helpers the
// CLI uses. Console output is human-readable (errors go to stderr); the
// optional log file receives one JSON object per line. Every entry carries
// the run's run_id.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/backmassage/streammux/internal/config"
	"github.com/backmassage/streammux/internal/term"
)

const consoleTimeFormat = "2006-01-02 15:04:05"

// Logger provides leveled, optionally colored logging with an optional file sink.
type Logger struct {
	zl    zerolog.Logger
	runID string

	// Only the root logger owns the file.
	mu   sync.Mutex
	file *os.File
}

// NewLogger configures colors from cfg and optionally opens cfg.LogFile.
// Call Close() when done if LogFile was set.
func NewLogger(cfg *config.Config) (*Logger, error) {
	return newLogger(cfg, os.Stdout, os.Stderr)
}

func newLogger(cfg *config.Config, stdout, stderr io.Writer) (*Logger, error) {
	colors := term.Configure(cfg.ColorMode)
	console := func(w io.Writer) zerolog.ConsoleWriter {
		return zerolog.ConsoleWriter{
			Out:           w,
			NoColor:       !colors,
			TimeFormat:    consoleTimeFormat,
			FieldsExclude: []string{"run_id"},
		}
	}
	writers := []io.Writer{levelSplit{out: console(stdout), err: console(stderr)}}

	l := &Logger{runID: uuid.NewString()}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		l.file = f
		writers = append(writers, f)
	}

	level := zerolog.InfoLevel
	if cfg.Verbose {
		level = zerolog.DebugLevel
	}
	l.zl = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Str("run_id", l.runID).
		Logger()
	return l, nil
}

// levelSplit sends error-and-above entries to err and the rest to out.
type levelSplit struct {
	out, err io.Writer
}

func (s levelSplit) Write(p []byte) (int, error) { return s.out.Write(p) }

func (s levelSplit) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level >= zerolog.ErrorLevel && level != zerolog.NoLevel {
		return s.err.Write(p)
	}
	return s.out.Write(p)
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// Close closes the log file if one was opened.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// RunID returns the id attached to every entry of this run.
func (l *Logger) RunID() string { return l.runID }

// WithComponent returns a child logger annotated with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		zl:    l.zl.With().Str("component", component).Logger(),
		runID: l.runID,
	}
}

// Zerolog exposes the underlying logger for packages that log structured
// events directly.
func (l *Logger) Zerolog() *zerolog.Logger { return &l.zl }

// Info logs at INFO level.
func (l *Logger) Info(format string, args ...interface{}) {
	l.zl.Info().Msg(fmt.Sprintf(format, args...))
}

// Success logs at INFO level, marked as a successful outcome.
func (l *Logger) Success(format string, args ...interface{}) {
	l.zl.Info().Bool("ok", true).Msg(fmt.Sprintf(format, args...))
}

// Warn logs at WARN level.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.zl.Warn().Msg(fmt.Sprintf(format, args...))
}

// Error logs at ERROR level, to stderr on the console.
func (l *Logger) Error(format string, args ...interface{}) {
	l.zl.Error().Msg(fmt.Sprintf(format, args...))
}

// Debug logs at DEBUG level; dropped unless the logger was built with Verbose.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.zl.Debug().Msg(fmt.Sprintf(format, args...))
}
