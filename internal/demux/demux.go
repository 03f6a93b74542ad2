// Package demux defines the demultiplexer collaborator consumed by the remux
// engine: opening an input, enumerating its elementary streams in container
// order, and reading one stream's packets through an independent cursor.
//
// Concrete demuxers live in subpackages (tsdemux, probe); [Registry] picks
// one per input by file extension.
package demux

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/backmassage/streammux/internal/media"
)

// Sentinel errors returned by demuxers.
var (
	ErrPacketsUnsupported = errors.New("demux: packet reading not supported for this input")
	ErrNoStream           = errors.New("demux: no such stream")
	ErrClosed             = errors.New("demux: handle closed")
)

// Demuxer opens input sources.
type Demuxer interface {
	Open(ctx context.Context, source string) (Handle, error)
}

// Handle is one opened input. Streams reports the elementary streams in the
// order the container lists them; OpenStream returns a cursor over the
// packets of the stream at that position. Cursors are independent of each
// other and of the handle's own read position.
type Handle interface {
	Source() string
	Streams(ctx context.Context) ([]media.StreamInfo, error)
	OpenStream(ctx context.Context, index int) (PacketReader, error)
	Close() error
}

// PacketReader yields packets of a single stream in stored order and returns
// io.EOF once the stream is exhausted.
type PacketReader interface {
	ReadPacket() (media.Packet, error)
	Close() error
}

// Registry dispatches Open to a demuxer chosen by the source's lowercase file
// extension, falling back to a default demuxer for unknown extensions.
type Registry struct {
	mu       sync.RWMutex
	byExt    map[string]Demuxer
	fallback Demuxer
}

// NewRegistry returns a registry that uses fallback for unregistered
// extensions. fallback may be nil, in which case such inputs fail to open.
func NewRegistry(fallback Demuxer) *Registry {
	return &Registry{byExt: make(map[string]Demuxer), fallback: fallback}
}

// Register binds d to each extension (with or without the leading dot).
func (r *Registry) Register(d Demuxer, exts ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.byExt[ext] = d
	}
}

// Lookup returns the demuxer that would open source.
func (r *Registry) Lookup(source string) (Demuxer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.byExt[strings.ToLower(filepath.Ext(source))]; ok {
		return d, true
	}
	return r.fallback, r.fallback != nil
}

// Open implements Demuxer.
func (r *Registry) Open(ctx context.Context, source string) (Handle, error) {
	d, ok := r.Lookup(source)
	if !ok {
		return nil, errors.Errorf("demux: no demuxer for %q", filepath.Ext(source))
	}
	return d.Open(ctx, source)
}
