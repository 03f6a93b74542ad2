package container

import (
	"context"

	"github.com/backmassage/streammux/internal/media"
)

// StreamDecl describes one output stream to a sink. Index is the output
// index the plan assigned; sinks number streams in declaration order, so a
// well-formed caller declares them in index order.
type StreamDecl struct {
	Index       int
	Type        media.MediaType
	Codec       media.Codec
	Language    string
	Title       string
	Disposition media.Disposition
	Params      media.CodecParams
}

// Writer creates output sinks.
type Writer interface {
	Create(ctx context.Context, target string, kind Kind) (Sink, error)
}

// Sink receives the streams and packets of one output. A sink is finalized
// or aborted exactly once; no call is valid after either.
type Sink interface {
	// DeclareStream registers a stream and returns its output index.
	DeclareStream(decl StreamDecl) (int, error)
	// WritePacket appends a packet to the stream at index.
	WritePacket(index int, pkt media.Packet) error
	// Finalize completes the output and makes it visible at its target.
	Finalize() error
	// Abort discards everything written so far.
	Abort()
}
