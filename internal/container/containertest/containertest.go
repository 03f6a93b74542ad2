// Package containertest provides an in-memory container.Writer that records
// everything written to it and can be told to fail at a chosen step.
package containertest

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/backmassage/streammux/internal/container"
	"github.com/backmassage/streammux/internal/media"
)

// ErrInjected is the default error returned by an injected failure.
var ErrInjected = errors.New("containertest: injected failure")

// Written is one packet accepted by a Sink.
type Written struct {
	Index  int
	Packet media.Packet
}

// Writer creates recording sinks. Failure fields apply to every sink it
// creates.
type Writer struct {
	// CreateErr fails Create.
	CreateErr error

	// FailWriteAt fails the n-th WritePacket call (1-based); 0 disables.
	FailWriteAt int

	// FailDeclareAt fails the n-th DeclareStream call (1-based); 0 disables.
	FailDeclareAt int

	// FinalizeErr fails Finalize.
	FinalizeErr error

	// IndexOffset is added to every index DeclareStream returns, to simulate
	// a sink that numbers streams differently from the plan.
	IndexOffset int

	mu    sync.Mutex
	sinks []*Sink
}

// Create implements container.Writer.
func (w *Writer) Create(_ context.Context, target string, kind container.Kind) (container.Sink, error) {
	if w.CreateErr != nil {
		return nil, w.CreateErr
	}
	s := &Sink{Target: target, Kind: kind, w: w}
	w.mu.Lock()
	w.sinks = append(w.sinks, s)
	w.mu.Unlock()
	return s, nil
}

// Sinks returns every sink created so far.
func (w *Writer) Sinks() []*Sink {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*Sink(nil), w.sinks...)
}

// Last returns the most recently created sink, or nil.
func (w *Writer) Last() *Sink {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.sinks) == 0 {
		return nil
	}
	return w.sinks[len(w.sinks)-1]
}

// Sink records declarations, packets and the terminal call.
type Sink struct {
	Target string
	Kind   container.Kind

	w *Writer

	mu            sync.Mutex
	decls         []container.StreamDecl
	packets       []Written
	writeCalls    int
	finalizeCalls int
	abortCalls    int
}

func (s *Sink) DeclareStream(decl container.StreamDecl) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w.FailDeclareAt > 0 && len(s.decls)+1 == s.w.FailDeclareAt {
		return -1, ErrInjected
	}
	idx := len(s.decls)
	decl.Index = idx
	s.decls = append(s.decls, decl)
	return idx + s.w.IndexOffset, nil
}

func (s *Sink) WritePacket(index int, pkt media.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeCalls++
	if s.w.FailWriteAt > 0 && s.writeCalls == s.w.FailWriteAt {
		return ErrInjected
	}
	if index < 0 || index >= len(s.decls) {
		return errors.Errorf("containertest: undeclared stream %d", index)
	}
	s.packets = append(s.packets, Written{Index: index, Packet: pkt})
	return nil
}

func (s *Sink) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalizeCalls++
	return s.w.FinalizeErr
}

func (s *Sink) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abortCalls++
}

// Decls returns the declared streams in order.
func (s *Sink) Decls() []container.StreamDecl {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]container.StreamDecl(nil), s.decls...)
}

// Packets returns the accepted packets in write order.
func (s *Sink) Packets() []Written {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Written(nil), s.packets...)
}

// FinalizeCalls returns how many times Finalize was called.
func (s *Sink) FinalizeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalizeCalls
}

// AbortCalls returns how many times Abort was called.
func (s *Sink) AbortCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abortCalls
}
