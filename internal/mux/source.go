package mux

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/backmassage/streammux/internal/demux"
	"github.com/backmassage/streammux/internal/media"
)

// packetSource yields one stream's packets in stored order and io.EOF at
// the end.
type packetSource interface {
	next() (media.Packet, error)
}

type directSource struct {
	r demux.PacketReader
}

func (s directSource) next() (media.Packet, error) { return s.r.ReadPacket() }

type readResult struct {
	pkt media.Packet
	err error
}

// bufferedSource is fed by a reader goroutine. The goroutine forwards the
// terminal error (io.EOF included) through the channel so the consumer sees
// exactly the sequence a direct read would produce.
type bufferedSource struct {
	ctx context.Context
	ch  <-chan readResult
}

func (s bufferedSource) next() (media.Packet, error) {
	res, ok := <-s.ch
	if !ok {
		if err := s.ctx.Err(); err != nil {
			return media.Packet{}, err
		}
		return media.Packet{}, io.EOF
	}
	return res.pkt, res.err
}

// startReader runs r in g, buffering up to depth packets.
func startReader(ctx context.Context, g *errgroup.Group, r demux.PacketReader, depth int) bufferedSource {
	ch := make(chan readResult, depth)
	g.Go(func() error {
		defer close(ch)
		for {
			pkt, err := r.ReadPacket()
			select {
			case ch <- readResult{pkt: pkt, err: err}:
			case <-ctx.Done():
				return nil
			}
			if err != nil {
				return nil
			}
		}
	})
	return bufferedSource{ctx: ctx, ch: ch}
}
