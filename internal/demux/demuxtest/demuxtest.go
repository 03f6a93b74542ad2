// Package demuxtest provides an in-memory demux.Demuxer for tests. Sources
// are registered by name with their streams and packets; reads and opens can
// be made to fail at a chosen point.
package demuxtest

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/backmassage/streammux/internal/demux"
	"github.com/backmassage/streammux/internal/media"
)

// ErrInjected is returned by injected read failures that set no error.
var ErrInjected = errors.New("demuxtest: injected failure")

// Stream is one in-memory elementary stream.
type Stream struct {
	Info    media.StreamInfo
	Packets []media.Packet

	// FailReadAt fails the n-th ReadPacket call (1-based); 0 disables.
	FailReadAt int
	ReadErr    error
}

// Source is one in-memory input.
type Source struct {
	Streams []Stream

	// OpenErr fails Demuxer.Open; ProbeErr fails Handle.Streams.
	OpenErr  error
	ProbeErr error
}

// Demuxer serves registered sources and counts open handles and cursors so
// tests can assert that everything was released.
type Demuxer struct {
	mu          sync.Mutex
	sources     map[string]*Source
	openHandles int
	openReaders int
}

// New returns an empty Demuxer.
func New() *Demuxer {
	return &Demuxer{sources: make(map[string]*Source)}
}

// Add registers src under name.
func (d *Demuxer) Add(name string, src Source) *Demuxer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources[name] = &src
	return d
}

// Open implements demux.Demuxer.
func (d *Demuxer) Open(ctx context.Context, source string) (demux.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	src, ok := d.sources[source]
	if !ok {
		return nil, errors.Errorf("demuxtest: no source %q", source)
	}
	if src.OpenErr != nil {
		return nil, src.OpenErr
	}
	d.openHandles++
	return &handle{d: d, name: source, src: src}, nil
}

// OpenHandles returns the number of handles not yet closed.
func (d *Demuxer) OpenHandles() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openHandles
}

// OpenReaders returns the number of packet readers not yet closed.
func (d *Demuxer) OpenReaders() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openReaders
}

type handle struct {
	d      *Demuxer
	name   string
	src    *Source
	closed bool
}

func (h *handle) Source() string { return h.name }

func (h *handle) Streams(ctx context.Context) ([]media.StreamInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h.closed {
		return nil, demux.ErrClosed
	}
	if h.src.ProbeErr != nil {
		return nil, h.src.ProbeErr
	}
	infos := make([]media.StreamInfo, len(h.src.Streams))
	for i, s := range h.src.Streams {
		infos[i] = s.Info
	}
	return infos, nil
}

func (h *handle) OpenStream(ctx context.Context, index int) (demux.PacketReader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h.closed {
		return nil, demux.ErrClosed
	}
	if index < 0 || index >= len(h.src.Streams) {
		return nil, errors.Wrapf(demux.ErrNoStream, "%s:%d", h.name, index)
	}
	h.d.mu.Lock()
	h.d.openReaders++
	h.d.mu.Unlock()
	s := h.src.Streams[index]
	return &reader{d: h.d, stream: s}, nil
}

func (h *handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.d.mu.Lock()
	h.d.openHandles--
	h.d.mu.Unlock()
	return nil
}

type reader struct {
	d      *Demuxer
	stream Stream
	pos    int
	calls  int
	closed bool
}

func (r *reader) ReadPacket() (media.Packet, error) {
	r.calls++
	if r.stream.FailReadAt > 0 && r.calls == r.stream.FailReadAt {
		if r.stream.ReadErr != nil {
			return media.Packet{}, r.stream.ReadErr
		}
		return media.Packet{}, ErrInjected
	}
	if r.pos >= len(r.stream.Packets) {
		return media.Packet{}, io.EOF
	}
	p := r.stream.Packets[r.pos]
	r.pos++
	return p, nil
}

func (r *reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.d.mu.Lock()
	r.d.openReaders--
	r.d.mu.Unlock()
	return nil
}

// Packets builds n packets of size bytes each, spaced step ticks apart in
// base tb starting at start. Every packet is a keyframe.
func Packets(n int, start, step int64, tb media.TimeBase, size int) []media.Packet {
	out := make([]media.Packet, n)
	for i := range out {
		ts := start + int64(i)*step
		data := make([]byte, size)
		for j := range data {
			data[j] = byte(i + j)
		}
		out[i] = media.Packet{Data: data, PTS: ts, DTS: ts, Duration: step, TimeBase: tb, Keyframe: true}
	}
	return out
}
