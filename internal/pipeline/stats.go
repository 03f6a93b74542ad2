package pipeline

import "time"

// RunStats summarizes one run.
type RunStats struct {
	Inputs   int // Source files after directory expansion.
	Streams  int // Streams in the catalog.
	Selected int // Streams in the mux plan.

	Packets      int64 // Packets written.
	PayloadBytes int64 // Packet payload bytes written.

	TotalInputBytes  int64
	TotalOutputBytes int64
	Elapsed          time.Duration
}

// SizeDelta returns output size minus input size. Selecting fewer streams
// makes it negative; container overhead can make it positive.
func (s *RunStats) SizeDelta() int64 {
	return s.TotalOutputBytes - s.TotalInputBytes
}
