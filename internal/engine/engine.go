// Package engine is the single entry point of the remux core. It composes
// the stages (catalog, selection, conflict check, mapping, mux) over the
// demux and container collaborators and returns typed errors only; callers
// map them to messages and exit codes with muxerr.KindOf.
package engine

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/backmassage/streammux/internal/catalog"
	"github.com/backmassage/streammux/internal/conflict"
	"github.com/backmassage/streammux/internal/container"
	"github.com/backmassage/streammux/internal/demux"
	"github.com/backmassage/streammux/internal/mapper"
	"github.com/backmassage/streammux/internal/mux"
	"github.com/backmassage/streammux/internal/muxerr"
	"github.com/backmassage/streammux/internal/selection"
)

// Request describes one remux job.
type Request struct {
	// Sources are opened in order; source i is the i-th entry.
	Sources []string
	Rules   []selection.Rule
	Kind    container.Kind
	Output  string
}

// Deps are the collaborators a job runs against.
type Deps struct {
	Demuxer demux.Demuxer
	Writer  container.Writer
	Logger  *zerolog.Logger
	Mux     mux.Options
}

// Result carries what each stage produced. Fields are set as far as the job
// got, so a failed job still exposes the catalog and plan it built.
type Result struct {
	Catalog  *catalog.Catalog
	Selected []selection.SelectedStream
	Plan     *mapper.MuxPlan
	Stats    mux.Stats
}

func (d Deps) logger() zerolog.Logger {
	if d.Logger == nil {
		return zerolog.Nop()
	}
	return *d.Logger
}

// Plan runs catalog, selection, conflict check and mapping without writing
// anything.
func Plan(ctx context.Context, req Request, deps Deps) (*Result, error) {
	handles, err := openSources(ctx, req.Sources, deps.Demuxer)
	if err != nil {
		return nil, err
	}
	defer closeAll(handles)
	return plan(ctx, handles, req, deps.logger())
}

// Remux plans the job, creates the output through deps.Writer and copies
// every planned stream into it. Every opened input is closed before Remux
// returns; the output is finalized only on success.
func Remux(ctx context.Context, req Request, deps Deps) (*Result, error) {
	log := deps.logger()
	handles, err := openSources(ctx, req.Sources, deps.Demuxer)
	if err != nil {
		return nil, err
	}
	defer closeAll(handles)

	res, err := plan(ctx, handles, req, log)
	if err != nil {
		return res, err
	}

	sink, err := deps.Writer.Create(ctx, req.Output, res.Plan.Kind())
	if err != nil {
		return res, &muxerr.MuxIoError{Op: muxerr.OpCreate, OutputIndex: -1, Err: err}
	}
	opts := deps.Mux
	if opts.Logger == nil {
		opts.Logger = &log
	}
	res.Stats, err = mux.Run(ctx, res.Plan, handles, sink, opts)
	return res, err
}

func plan(ctx context.Context, handles []demux.Handle, req Request, log zerolog.Logger) (*Result, error) {
	res := &Result{}
	cat, err := catalog.Build(ctx, handles)
	if err != nil {
		return res, err
	}
	res.Catalog = cat
	log.Debug().Int("sources", len(handles)).Int("streams", cat.Len()).Msg("catalog built")

	res.Selected, err = selection.Resolve(cat, req.Rules)
	if err != nil {
		return res, err
	}
	log.Debug().Int("rules", len(req.Rules)).Int("selected", len(res.Selected)).Msg("selection resolved")

	v, err := conflict.Validate(res.Selected, req.Kind)
	if err != nil {
		return res, err
	}
	res.Plan = mapper.Map(v)
	for _, n := range res.Plan.Notes() {
		log.Debug().Str("note", n.String()).Msg("plan note")
	}
	return res, nil
}

// openSources opens every source in order. On failure the handles opened so
// far are closed and a *muxerr.SourceOpenError names the failing source.
func openSources(ctx context.Context, sources []string, d demux.Demuxer) ([]demux.Handle, error) {
	handles := make([]demux.Handle, 0, len(sources))
	for i, src := range sources {
		h, err := d.Open(ctx, src)
		if err != nil {
			closeAll(handles)
			return nil, &muxerr.SourceOpenError{Source: i, Path: src, Err: err}
		}
		handles = append(handles, h)
	}
	return handles, nil
}

func closeAll(handles []demux.Handle) {
	for _, h := range handles {
		_ = h.Close()
	}
}
