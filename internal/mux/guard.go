package mux

import "github.com/backmassage/streammux/internal/container"

// sinkGuard owns the sink for the duration of a run. release aborts the sink
// unless finalize succeeded, so every exit path leaves the sink either
// finalized or aborted, exactly once.
type sinkGuard struct {
	sink      container.Sink
	finalized bool
	released  bool
}

func (g *sinkGuard) finalize() error {
	if err := g.sink.Finalize(); err != nil {
		return err
	}
	g.finalized = true
	return nil
}

func (g *sinkGuard) release() {
	if g.released {
		return
	}
	g.released = true
	if !g.finalized {
		g.sink.Abort()
	}
}
