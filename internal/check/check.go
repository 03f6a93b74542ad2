// Package check provides system diagnostics (--check mode) and pre-run
// validation (CheckDeps): the ffprobe binary used for non-TS inputs, the
// container writers, and output directory writability.
package check

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/backmassage/streammux/internal/config"
	"github.com/backmassage/streammux/internal/container"
	"github.com/backmassage/streammux/internal/media"
)

// Sentinel errors returned by CheckDeps.
var (
	ErrFfprobeNotFound   = errors.New("ffprobe not found on PATH")
	ErrNoWriter          = errors.New("no writer registered for the output container")
	ErrOutputNotWritable = errors.New("output directory is not writable")
)

// Logger is the minimal logging interface needed by RunCheck.
// Defined here (rather than importing the logging package) so that check
// remains dependency-light and testable with a mock logger.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
}

// Supporter reports which container kinds can be written.
type Supporter interface {
	Supports(kind container.Kind) bool
}

// RunCheck runs the interactive --check flow: ffprobe availability, the
// writer and capability table of every container kind, and whether the
// configured output directory accepts files. It is informational only and
// does not stop on failure.
func RunCheck(ctx context.Context, cfg *config.Config, w Supporter, log Logger) {
	log.Info("=== System Check ===")

	checkFfprobe(ctx, cfg.FFprobePath, log)
	checkWriters(w, log)
	if cfg.Output != "" {
		if err := checkWritable(filepath.Dir(cfg.Output)); err != nil {
			log.Error("Output directory %s: %v", filepath.Dir(cfg.Output), err)
		} else {
			log.Success("Output directory %s is writable", filepath.Dir(cfg.Output))
		}
	}
}

// checkFfprobe verifies ffprobe is available and logs its version string.
func checkFfprobe(ctx context.Context, bin string, log Logger) {
	path, err := exec.LookPath(bin)
	if err != nil {
		log.Warn("ffprobe not found (%s); only MPEG-TS inputs can be read", bin)
		return
	}
	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		log.Warn("ffprobe found but -version failed: %v", err)
		return
	}
	firstLine := strings.TrimSpace(string(out))
	if idx := strings.Index(firstLine, "\n"); idx > 0 {
		firstLine = firstLine[:idx]
	}
	log.Success("ffprobe: %s", firstLine)
}

// checkWriters lists every container kind, whether it can be written, and
// what it accepts.
func checkWriters(w Supporter, log Logger) {
	log.Info("Container writers:")
	for _, k := range container.Kinds {
		caps, _ := container.CapabilitiesFor(k)
		if !w.Supports(k) {
			log.Error("  %s: no writer", k)
			continue
		}
		log.Success("  %s (%s): %s", k, k.Extension(), describe(caps))
	}
}

func describe(caps container.Capabilities) string {
	var parts []string
	for _, t := range media.MediaTypes {
		tc, ok := caps.Types[t]
		if !ok {
			continue
		}
		codecs := make([]string, len(tc.Codecs))
		for i, c := range tc.Codecs {
			codecs[i] = c.String()
		}
		part := t.String()
		if tc.Limit != container.Unlimited {
			part += " (max " + strconv.Itoa(tc.Limit) + ")"
		}
		parts = append(parts, part+" "+strings.Join(codecs, ","))
	}
	return strings.Join(parts, "; ")
}

// CheckDeps is the pre-run validation. needProbe is set when some input
// will be enumerated through ffprobe. Returns a sentinel error on failure.
func CheckDeps(cfg *config.Config, needProbe bool, w Supporter) error {
	if needProbe {
		if _, err := exec.LookPath(cfg.FFprobePath); err != nil {
			return ErrFfprobeNotFound
		}
	}
	if cfg.DryRun {
		return nil
	}
	kind, err := cfg.Kind()
	if err != nil {
		return err
	}
	if !w.Supports(kind) {
		return ErrNoWriter
	}
	if err := checkWritable(filepath.Dir(cfg.Output)); err != nil {
		return ErrOutputNotWritable
	}
	return nil
}

// checkWritable creates and removes a probe file in dir.
func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".streammux-check-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
