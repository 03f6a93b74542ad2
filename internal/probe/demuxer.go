package probe

import (
	"context"

	"github.com/backmassage/streammux/internal/demux"
	"github.com/backmassage/streammux/internal/media"
)

// Demuxer adapts a Prober to demux.Demuxer. Its handles enumerate streams
// only; OpenStream fails with demux.ErrPacketsUnsupported.
type Demuxer struct {
	Prober Prober
}

// Open probes source once and caches the result on the handle.
func (d Demuxer) Open(ctx context.Context, source string) (demux.Handle, error) {
	res, err := d.Prober.Probe(ctx, source)
	if err != nil {
		return nil, err
	}
	return &Handle{source: source, Result: res}, nil
}

// Handle is an opened, already probed input.
type Handle struct {
	source string
	Result *Result
}

func (h *Handle) Source() string { return h.source }

func (h *Handle) Streams(ctx context.Context) ([]media.StreamInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]media.StreamInfo(nil), h.Result.Streams...), nil
}

func (h *Handle) OpenStream(context.Context, int) (demux.PacketReader, error) {
	return nil, demux.ErrPacketsUnsupported
}

func (h *Handle) Close() error { return nil }
