package mux

import "github.com/backmassage/streammux/internal/media"

// StreamStats counts what one output stream received.
type StreamStats struct {
	Output  int
	Stream  media.StreamID
	Type    media.MediaType
	Packets int64
	Bytes   int64
}

// Stats summarizes a mux run. Streams is indexed by output index.
type Stats struct {
	Streams []StreamStats
	Packets int64
	Bytes   int64
}

func newStats(n int) Stats {
	return Stats{Streams: make([]StreamStats, n)}
}

func (s *Stats) add(output int, size int) {
	s.Streams[output].Packets++
	s.Streams[output].Bytes += int64(size)
	s.Packets++
	s.Bytes += int64(size)
}
