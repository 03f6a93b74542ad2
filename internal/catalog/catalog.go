// Package catalog enumerates the streams of every opened input into one
// ordered, read-only view keyed by (source, stream index).
package catalog

import (
	"context"

	"github.com/backmassage/streammux/internal/demux"
	"github.com/backmassage/streammux/internal/media"
	"github.com/backmassage/streammux/internal/muxerr"
)

// Catalog is the enumerated stream set of all inputs. It is immutable after
// Build; accessors return copies.
type Catalog struct {
	sources []string
	streams []media.InputStream
	index   map[media.StreamID]int
}

// Build enumerates each handle's streams in the order the container reports
// them. Handle i becomes source i. A handle that cannot be probed fails the
// whole build with a *muxerr.SourceOpenError.
func Build(ctx context.Context, handles []demux.Handle) (*Catalog, error) {
	c := &Catalog{
		sources: make([]string, len(handles)),
		index:   make(map[media.StreamID]int),
	}
	for src, h := range handles {
		c.sources[src] = h.Source()
		infos, err := h.Streams(ctx)
		if err != nil {
			return nil, &muxerr.SourceOpenError{Source: src, Path: h.Source(), Err: err}
		}
		for i, info := range infos {
			id := media.StreamID{Source: src, Index: i}
			c.index[id] = len(c.streams)
			c.streams = append(c.streams, media.InputStream{ID: id, StreamInfo: info})
		}
	}
	return c, nil
}

// New builds a catalog directly from stream infos, one slice per source.
// It is meant for tests and callers that enumerate streams themselves.
func New(sources []string, infos [][]media.StreamInfo) *Catalog {
	c := &Catalog{
		sources: append([]string(nil), sources...),
		index:   make(map[media.StreamID]int),
	}
	for src, list := range infos {
		for i, info := range list {
			id := media.StreamID{Source: src, Index: i}
			c.index[id] = len(c.streams)
			c.streams = append(c.streams, media.InputStream{ID: id, StreamInfo: info})
		}
	}
	return c
}

// Streams returns every stream in (source, index) order.
func (c *Catalog) Streams() []media.InputStream {
	return append([]media.InputStream(nil), c.streams...)
}

// Len returns the number of streams.
func (c *Catalog) Len() int { return len(c.streams) }

// Lookup returns the stream with the given id.
func (c *Catalog) Lookup(id media.StreamID) (media.InputStream, bool) {
	i, ok := c.index[id]
	if !ok {
		return media.InputStream{}, false
	}
	return c.streams[i], true
}

// Sources returns the source names in source order.
func (c *Catalog) Sources() []string {
	return append([]string(nil), c.sources...)
}

// SourceStreams returns the streams of one source.
func (c *Catalog) SourceStreams(src int) []media.InputStream {
	var out []media.InputStream
	for _, s := range c.streams {
		if s.ID.Source == src {
			out = append(out, s)
		}
	}
	return out
}
