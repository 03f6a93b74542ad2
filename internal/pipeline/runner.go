package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/backmassage/streammux/internal/config"
	"github.com/backmassage/streammux/internal/container"
	"github.com/backmassage/streammux/internal/container/mkv"
	"github.com/backmassage/streammux/internal/container/mpegts"
	"github.com/backmassage/streammux/internal/demux"
	"github.com/backmassage/streammux/internal/demux/tsdemux"
	"github.com/backmassage/streammux/internal/display"
	"github.com/backmassage/streammux/internal/engine"
	"github.com/backmassage/streammux/internal/ffmpeg"
	"github.com/backmassage/streammux/internal/logging"
	"github.com/backmassage/streammux/internal/mapper"
	"github.com/backmassage/streammux/internal/metrics"
	"github.com/backmassage/streammux/internal/mux"
	"github.com/backmassage/streammux/internal/muxerr"
	"github.com/backmassage/streammux/internal/probe"
	"github.com/backmassage/streammux/internal/selection"
)

// ErrNoInputs is returned when directory expansion leaves nothing to open.
var ErrNoInputs = errors.New("no input files")

// Deps are the collaborators a run uses. Zero fields are filled from cfg by
// [Run]: the demuxer and writer from [NewDemuxer] and [NewWriter], Out from
// os.Stdout. Metrics may stay nil.
type Deps struct {
	Demuxer demux.Demuxer
	Writer  container.Writer
	Metrics *metrics.Recorder
	Out     io.Writer
}

func (d *Deps) fill(cfg *config.Config) {
	if d.Demuxer == nil {
		d.Demuxer = NewDemuxer(cfg)
	}
	if d.Writer == nil {
		d.Writer = NewWriter(cfg)
	}
	if d.Out == nil {
		d.Out = os.Stdout
	}
}

// NewDemuxer returns the production demuxer: MPEG-TS inputs are read
// natively, everything else is enumerated through ffprobe.
func NewDemuxer(cfg *config.Config) *demux.Registry {
	reg := demux.NewRegistry(probe.Demuxer{Prober: probe.Prober{Binary: cfg.FFprobePath}})
	reg.Register(tsdemux.New(), tsdemux.Extensions...)
	return reg
}

// NewWriter returns a file writer with every built-in muxer registered.
func NewWriter(cfg *config.Config) *container.FileWriter {
	w := container.NewFileWriter()
	w.Overwrite = cfg.Force
	w.Register(container.Matroska, mkv.NewMatroska)
	w.Register(container.WebM, mkv.NewWebM)
	w.Register(container.MPEGTS, mpegts.New)
	return w
}

// NeedsProbe reports whether any of inputs falls back to ffprobe.
func NeedsProbe(inputs []string) bool {
	for _, in := range inputs {
		if !isNativeTS(in) {
			return true
		}
	}
	return false
}

func isNativeTS(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range tsdemux.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// LoadRules returns the rules file's rules followed by the flag rules. With
// neither present the run selects every stream.
func LoadRules(cfg *config.Config) ([]selection.Rule, error) {
	var rules []selection.Rule
	if cfg.RulesFile != "" {
		fileRules, err := selection.LoadRulesFile(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		rules = append(rules, fileRules...)
	}
	flagRules, err := selection.ParseRulesFrom(cfg.Rules, len(rules))
	if err != nil {
		return nil, err
	}
	rules = append(rules, flagRules...)
	if len(rules) == 0 {
		rules = []selection.Rule{selection.IncludeAll()}
	}
	return rules, nil
}

// Run executes one remux job described by cfg. A dry run stops after
// planning and prints the plan with an equivalent ffmpeg command. Errors
// from the engine are returned unchanged so the caller can pick an exit code
// with muxerr.KindOf.
func Run(ctx context.Context, cfg *config.Config, log *logging.Logger, deps Deps) (RunStats, error) {
	var stats RunStats
	deps.fill(cfg)
	start := time.Now()

	inputs, err := ExpandInputs(cfg.Inputs)
	if err != nil {
		log.Error("Input discovery failed: %v", err)
		return stats, errors.Wrap(err, "expand inputs")
	}
	if len(inputs) == 0 {
		log.Error("No media files found in %v", cfg.Inputs)
		return stats, ErrNoInputs
	}
	stats.Inputs = len(inputs)
	stats.TotalInputBytes = totalSize(inputs)

	rules, err := LoadRules(cfg)
	if err != nil {
		log.Error("Invalid rules: %v", err)
		return stats, err
	}
	kind, err := cfg.Kind()
	if err != nil {
		log.Error("%v", err)
		return stats, err
	}

	logHeader(cfg, log, inputs, rules, kind)

	req := engine.Request{Sources: inputs, Rules: rules, Kind: kind, Output: cfg.Output}
	engineDeps := engine.Deps{
		Demuxer: deps.Demuxer,
		Writer:  deps.Writer,
		Logger:  log.WithComponent("engine").Zerolog(),
		Mux:     muxOptions(cfg, log, deps.Metrics),
	}

	var res *engine.Result
	if cfg.DryRun {
		res, err = engine.Plan(ctx, req, engineDeps)
	} else {
		res, err = engine.Remux(ctx, req, engineDeps)
	}
	stats.Elapsed = time.Since(start)
	fillStats(&stats, res)

	if err != nil {
		reportFailure(log, deps.Out, err)
	} else if cfg.DryRun {
		reportDryRun(cfg, log, deps.Out, inputs, res.Plan)
	} else if fi, statErr := os.Stat(cfg.Output); statErr == nil {
		stats.TotalOutputBytes = fi.Size()
	}

	if deps.Metrics != nil && !cfg.DryRun {
		deps.Metrics.ObserveRun(kind.String(), err, stats.Elapsed)
		if cfg.MetricsFile != "" {
			if werr := deps.Metrics.WriteTextfile(cfg.MetricsFile); werr != nil {
				log.Warn("Cannot write metrics file: %v", werr)
			}
		}
	}

	if err == nil {
		logSummary(cfg, log, &stats)
	}
	return stats, err
}

func muxOptions(cfg *config.Config, log *logging.Logger, rec *metrics.Recorder) mux.Options {
	opts := mux.Options{ReadAhead: cfg.ReadAhead, Logger: log.WithComponent("mux").Zerolog()}
	if rec != nil {
		opts.OnPacket = rec.OnPacket
	}
	return opts
}

func fillStats(stats *RunStats, res *engine.Result) {
	if res == nil {
		return
	}
	if res.Catalog != nil {
		stats.Streams = res.Catalog.Len()
	}
	if res.Plan != nil {
		stats.Selected = res.Plan.Len()
	}
	stats.Packets = res.Stats.Packets
	stats.PayloadBytes = res.Stats.Bytes
}

func totalSize(paths []string) int64 {
	var n int64
	for _, p := range paths {
		if fi, err := os.Stat(p); err == nil {
			n += fi.Size()
		}
	}
	return n
}

// --- Reporting ---

func logHeader(cfg *config.Config, log *logging.Logger, inputs []string, rules []selection.Rule, kind container.Kind) {
	log.Info("Sources: %d", len(inputs))
	for i, in := range inputs {
		log.Debug("  [%d] %s", i, in)
	}
	parts := make([]string, len(rules))
	for i, r := range rules {
		parts[i] = r.String()
	}
	log.Info("Rules: %s", strings.Join(parts, " "))
	log.Info("Container: %s", strings.ToUpper(kind.String()))
	if cfg.DryRun {
		log.Info("Dry run: planning only")
	} else {
		log.Info("Output: %s", cfg.Output)
	}
}

func reportFailure(log *logging.Logger, out io.Writer, err error) {
	var ce *muxerr.ContainerConflictError
	if errors.As(err, &ce) {
		display.WriteConflict(out, ce)
	}
	log.Error("%s failed: %v", muxerr.KindOf(err), err)
}

func reportDryRun(cfg *config.Config, log *logging.Logger, out io.Writer, inputs []string, plan *mapper.MuxPlan) {
	display.WritePlan(out, plan)
	output := cfg.Output
	if output == "" {
		output = "out" + plan.Kind().Extension()
	}
	args := ffmpeg.Build(plan, inputs, output, ffmpeg.Options{Overwrite: cfg.Force, Verbose: cfg.Verbose})
	log.Info("Equivalent command:")
	io.WriteString(out, ffmpeg.Quote(args)+"\n")
	log.Success("[DRY] Would write %d stream(s)", plan.Len())
}

func logSummary(cfg *config.Config, log *logging.Logger, stats *RunStats) {
	log.Info("==============================")
	log.Info("Streams: %d selected of %d from %d source(s)", stats.Selected, stats.Streams, stats.Inputs)

	if cfg.DryRun {
		log.Info("Output size: n/a (dry run)")
		return
	}

	log.Info("Packets: %d (%s payload) in %s",
		stats.Packets, display.FormatBytes(stats.PayloadBytes), stats.Elapsed.Round(time.Millisecond))
	log.Success("Wrote %s: %s (%s vs inputs)",
		filepath.Base(cfg.Output),
		display.FormatBytes(stats.TotalOutputBytes),
		display.FormatBytesWithSign(stats.SizeDelta()))
}
