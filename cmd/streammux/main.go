// Command streammux selects streams from one or more media inputs and copies
// them, without re-encoding, into a single Matroska, WebM or MPEG-TS output.
// It parses flags and config, validates paths, and runs the remux pipeline,
// the probe listing (probe) or the system check (check, or --check).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/backmassage/streammux/internal/check"
	"github.com/backmassage/streammux/internal/config"
	"github.com/backmassage/streammux/internal/display"
	"github.com/backmassage/streammux/internal/logging"
	"github.com/backmassage/streammux/internal/metrics"
	"github.com/backmassage/streammux/internal/muxerr"
	"github.com/backmassage/streammux/internal/naming"
	"github.com/backmassage/streammux/internal/pipeline"
)

// version and commit are set at build time via -ldflags.
var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

// Exit codes. Remux failures map through muxerr.KindOf.
const (
	exitOK         = 0
	exitFailure    = 1
	exitSourceOpen = 2
	exitSelection  = 3
	exitConflict   = 4
	exitMuxIO      = 5
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// app carries the state shared by the root command and its subcommands.
type app struct {
	cfg        config.Config
	configFile string
	log        *logging.Logger
}

func run(ctx context.Context, args []string) int {
	a := &app{cfg: config.DefaultConfig()}
	root := a.rootCommand()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if a.log != nil {
		defer a.log.Close()
	}
	if err == nil {
		return exitOK
	}
	if a.log == nil {
		// Flag parsing or config loading failed before logging was set up.
		fmt.Fprintf(os.Stderr, "streammux: %v\n", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch muxerr.KindOf(err) {
	case muxerr.KindSourceOpen:
		return exitSourceOpen
	case muxerr.KindSelection:
		return exitSelection
	case muxerr.KindContainerConflict:
		return exitConflict
	case muxerr.KindMuxIO:
		return exitMuxIO
	}
	return exitFailure
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "streammux [flags] INPUT...",
		Short: "Select, map and remux media streams without re-encoding",
		Long: `streammux reads one or more inputs, selects streams with ordered
include/exclude rules, checks them against the output container and copies
their packets, interleaved by timestamp, into a single output file.`,
		Version:       version + " (" + commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.CheckOnly {
				return a.runCheck(cmd.Context())
			}
			return a.runRemux(cmd.Context())
		},
	}
	config.BindFlags(root.PersistentFlags(), &a.cfg)
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "YAML config file")

	root.AddCommand(&cobra.Command{
		Use:   "probe INPUT...",
		Short: "List the streams of each input with a bitrate outlier report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runProbe(cmd.Context())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Check ffprobe, container writers and the output directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCheck(cmd.Context())
		},
	})
	return root
}

// setup loads the config and opens the logger.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if err := config.Load(cmd.Flags(), &a.cfg, a.configFile); err != nil {
		return err
	}
	a.cfg.Inputs = args

	// NewLogger also resolves the color mode for the whole process.
	log, err := logging.NewLogger(&a.cfg)
	if err != nil {
		return err
	}
	a.log = log
	display.PrintBanner(os.Stdout)
	return nil
}

func (a *app) runCheck(ctx context.Context) error {
	a.cfg.CheckOnly = true
	check.RunCheck(ctx, &a.cfg, pipeline.NewWriter(&a.cfg), a.log)
	return nil
}

func (a *app) runProbe(ctx context.Context) error {
	if pipeline.NeedsProbe(a.cfg.Inputs) {
		// Listing never writes, so only ffprobe is checked.
		pc := a.cfg
		pc.DryRun = true
		if err := check.CheckDeps(&pc, true, nil); err != nil {
			a.log.Error("%v", err)
			return err
		}
	}
	if err := pipeline.Analyze(ctx, &a.cfg, a.log, pipeline.Deps{}); err != nil {
		a.log.Error("%v", err)
		return err
	}
	return nil
}

func (a *app) runRemux(ctx context.Context) error {
	cfg := &a.cfg
	log := a.log
	if err := cfg.Validate(); err != nil {
		log.Error("%v", err)
		return err
	}

	inputs, err := pipeline.ExpandInputs(cfg.Inputs)
	if err != nil {
		log.Error("%v", err)
		return err
	}
	if naming.IsDirTarget(cfg.Output) && len(inputs) > 0 {
		kind, _ := cfg.Kind() // Validate already accepted it.
		r := naming.NewCollisionResolver(cfg.Force)
		r.Claim(inputs...)
		cfg.Output = naming.OutputPath(cfg.Output, inputs[0], kind, r)
		log.Debug("Output resolved to %s", cfg.Output)
	}
	if cfg.Output != "" {
		if err := validateOutput(cfg, inputs); err != nil {
			log.Error("%v", err)
			return err
		}
	}

	writer := pipeline.NewWriter(cfg)
	if err := check.CheckDeps(cfg, pipeline.NeedsProbe(inputs), writer); err != nil {
		log.Error("%v", err)
		return err
	}

	log.Info("=== streammux v%s ===", version)
	if cfg.DryRun {
		log.Warn("DRY RUN")
	}

	deps := pipeline.Deps{
		Demuxer: pipeline.NewDemuxer(cfg),
		Writer:  writer,
		Metrics: metrics.New(),
	}
	_, err = pipeline.Run(ctx, cfg, log, deps)
	if err != nil && ctx.Err() != nil {
		log.Warn("Interrupted")
	}
	return err
}

// validateOutput refuses an output that resolves to one of the inputs.
func validateOutput(cfg *config.Config, inputs []string) error {
	outputAbs, err := absPath(cfg.Output)
	if err != nil {
		return errors.Wrapf(err, "resolve output %s", cfg.Output)
	}
	inputsAbs := make([]string, 0, len(inputs))
	for _, in := range inputs {
		abs, err := absPath(in)
		if err != nil {
			// Missing inputs are reported by the engine as source open errors.
			continue
		}
		inputsAbs = append(inputsAbs, abs)
	}
	return cfg.ValidateOutput(inputsAbs, outputAbs)
}

// absPath returns the absolute path with symlinks resolved. A path that does
// not exist yet resolves through its parent directory.
func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		return abs, nil
	}
	return filepath.Join(dir, filepath.Base(abs)), nil
}
