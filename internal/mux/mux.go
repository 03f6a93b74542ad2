// Package mux copies packets from per-stream read cursors into a container
// sink following a mux plan. Packets from all streams are merged by
// presentation time (ties broken by plan order), each stream's own order is
// preserved, and the sink is finalized on success or aborted on any failure
// or stop.
package mux

import (
	"container/heap"
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/backmassage/streammux/internal/container"
	"github.com/backmassage/streammux/internal/demux"
	"github.com/backmassage/streammux/internal/mapper"
	"github.com/backmassage/streammux/internal/media"
	"github.com/backmassage/streammux/internal/muxerr"
)

// Options tunes a run. The zero value reads sequentially with no logging.
type Options struct {
	// ReadAhead, when positive, reads every stream on its own goroutine
	// with a buffer of this many packets. The merged output is identical
	// to sequential reading.
	ReadAhead int

	// Logger receives debug events; nil disables logging.
	Logger *zerolog.Logger

	// OnPacket, if set, is called after the sink accepts each packet.
	OnPacket func(e mapper.Entry, pkt media.Packet)
}

// ErrIndexMismatch is wrapped when the sink numbers a stream differently
// from the plan.
var ErrIndexMismatch = errors.New("mux: sink assigned unexpected output index")

// cursor is one plan entry's read position.
type cursor struct {
	entry mapper.Entry
	src   packetSource
	head  media.Packet
	tb    media.TimeBase
}

// cursorHeap orders cursors by head PTS, then by output index.
type cursorHeap []*cursor

func (h cursorHeap) Len() int { return len(h) }

func (h cursorHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if c := media.CompareTimestamps(a.head.PTS, a.tb, b.head.PTS, b.tb); c != 0 {
		return c < 0
	}
	return a.entry.Output < b.entry.Output
}

func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x any) { *h = append(*h, x.(*cursor)) }

func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return c
}

// Run executes plan. inputs[i] is the opened handle of source i. The sink
// must be fresh; Run owns it from the first call and leaves it finalized
// (nil error) or aborted (any error). Failures are *muxerr.MuxIoError.
func Run(ctx context.Context, plan *mapper.MuxPlan, inputs []demux.Handle, sink container.Sink, opts Options) (Stats, error) {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	guard := &sinkGuard{sink: sink}
	defer guard.release()

	entries := plan.Entries()
	stats := newStats(len(entries))
	for i, e := range entries {
		stats.Streams[i] = StreamStats{Output: e.Output, Stream: e.Stream.ID, Type: e.Stream.Type}
	}

	fail := func(op muxerr.IOOp, e *mapper.Entry, err error) (Stats, error) {
		me := &muxerr.MuxIoError{Op: op, OutputIndex: -1, Packet: stats.Packets, Err: err}
		if e != nil {
			me.Stream = e.Stream.ID
			me.OutputIndex = e.Output
		}
		log.Debug().Err(err).Str("op", op.String()).Int("output", me.OutputIndex).Msg("mux aborted")
		return stats, me
	}

	for i := range entries {
		e := &entries[i]
		idx, err := sink.DeclareStream(e.Decl())
		if err != nil {
			return fail(muxerr.OpDeclare, e, err)
		}
		if idx != e.Output {
			return fail(muxerr.OpDeclare, e, errors.Wrapf(ErrIndexMismatch, "got %d, want %d", idx, e.Output))
		}
	}

	rctx, cancel := context.WithCancel(ctx)
	var (
		readers []demux.PacketReader
		group   *errgroup.Group
	)
	defer func() {
		cancel()
		if group != nil {
			_ = group.Wait()
		}
		for _, r := range readers {
			_ = r.Close()
		}
	}()

	cursors := make([]*cursor, len(entries))
	for i := range entries {
		e := &entries[i]
		src := e.Stream.ID.Source
		if src < 0 || src >= len(inputs) || inputs[src] == nil {
			return fail(muxerr.OpOpen, e, errors.Errorf("mux: no input for source %d", src))
		}
		r, err := inputs[src].OpenStream(rctx, e.Stream.ID.Index)
		if err != nil {
			return fail(muxerr.OpOpen, e, err)
		}
		readers = append(readers, r)
		cursors[i] = &cursor{entry: *e, tb: e.Stream.Params.TimeBase.OrDefault(media.TimeBaseMPEG)}
	}

	if opts.ReadAhead > 0 {
		var gctx context.Context
		group, gctx = errgroup.WithContext(rctx)
		for i, c := range cursors {
			c.src = startReader(gctx, group, readers[i], opts.ReadAhead)
		}
	} else {
		for i, c := range cursors {
			c.src = directSource{r: readers[i]}
		}
	}

	h := make(cursorHeap, 0, len(cursors))
	for _, c := range cursors {
		ok, err := c.advance()
		if err != nil {
			return fail(readOp(ctx), &c.entry, err)
		}
		if ok {
			h = append(h, c)
		}
	}
	heap.Init(&h)
	log.Debug().Int("streams", len(entries)).Int("read_ahead", opts.ReadAhead).Msg("mux started")

	for h.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return fail(muxerr.OpStopped, nil, err)
		}
		c := h[0]
		if err := sink.WritePacket(c.entry.Output, c.head); err != nil {
			return fail(muxerr.OpWrite, &c.entry, err)
		}
		stats.add(c.entry.Output, c.head.Size())
		if opts.OnPacket != nil {
			opts.OnPacket(c.entry, c.head)
		}

		ok, err := c.advance()
		if err != nil {
			return fail(readOp(ctx), &c.entry, err)
		}
		if ok {
			heap.Fix(&h, 0)
		} else {
			heap.Pop(&h)
		}
	}

	if err := ctx.Err(); err != nil {
		return fail(muxerr.OpStopped, nil, err)
	}
	if err := guard.finalize(); err != nil {
		return fail(muxerr.OpFinalize, nil, err)
	}
	log.Debug().Int64("packets", stats.Packets).Int64("bytes", stats.Bytes).Msg("mux finalized")
	return stats, nil
}

// advance loads the cursor's next packet. It reports false at end of stream.
func (c *cursor) advance() (bool, error) {
	pkt, err := c.src.next()
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if pkt.TimeBase.Valid() {
		c.tb = pkt.TimeBase
	} else {
		pkt.TimeBase = c.tb
	}
	c.head = pkt
	return true, nil
}

// readOp classifies a read failure: once the run's context is done, read
// errors are a consequence of the stop, not their own failure.
func readOp(ctx context.Context) muxerr.IOOp {
	if ctx.Err() != nil {
		return muxerr.OpStopped
	}
	return muxerr.OpRead
}
