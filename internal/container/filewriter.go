package container

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"

	"github.com/google/renameio/v2"
	"github.com/pkg/errors"

	"github.com/backmassage/streammux/internal/media"
)

// Muxer encodes one container format. Begin is called once, after every
// stream has been declared and before the first packet; End flushes the
// trailer. A muxer never closes w.
type Muxer interface {
	Begin(w io.Writer, streams []StreamDecl) error
	WritePacket(index int, pkt media.Packet) error
	End() error
}

// MuxerFactory returns a fresh muxer for one output.
type MuxerFactory func() Muxer

// Errors returned by FileWriter sinks.
var (
	ErrNoMuxer       = errors.New("container: no muxer registered for kind")
	ErrTargetExists  = errors.New("container: target exists")
	ErrSinkDone      = errors.New("container: sink already finalized or aborted")
	ErrLateDeclare   = errors.New("container: stream declared after first packet")
	ErrUnknownStream = errors.New("container: packet for undeclared stream")
)

// FileWriter writes outputs as files. Bytes go to a temporary file in the
// target's directory; Finalize atomically renames it over the target and
// Abort removes it, so a failed run never leaves a partial output behind.
type FileWriter struct {
	// Overwrite allows replacing an existing target.
	Overwrite bool

	// TempDir overrides where pending files are created. It must be on the
	// same filesystem as the target.
	TempDir string

	// Perm is the mode of the finished file.
	Perm os.FileMode

	mu     sync.RWMutex
	muxers map[Kind]MuxerFactory
}

// NewFileWriter returns a FileWriter with no muxers registered.
func NewFileWriter() *FileWriter {
	return &FileWriter{Perm: 0o644, muxers: make(map[Kind]MuxerFactory)}
}

// Register binds a muxer factory to kind.
func (w *FileWriter) Register(kind Kind, f MuxerFactory) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.muxers[kind] = f
}

// Supports reports whether a muxer is registered for kind.
func (w *FileWriter) Supports(kind Kind) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.muxers[kind]
	return ok
}

// Create implements Writer.
func (w *FileWriter) Create(ctx context.Context, target string, kind Kind) (Sink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.RLock()
	factory, ok := w.muxers[kind]
	w.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrNoMuxer, "%s", kind)
	}
	if !w.Overwrite {
		if _, err := os.Stat(target); err == nil {
			return nil, errors.Wrapf(ErrTargetExists, "%s", target)
		}
	}

	opts := []renameio.Option{renameio.WithPermissions(w.Perm)}
	if w.TempDir != "" {
		opts = append(opts, renameio.WithTempDir(w.TempDir))
	}
	pf, err := renameio.NewPendingFile(target, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "container: create pending file for %s", target)
	}
	return &fileSink{
		pending: pf,
		buf:     bufio.NewWriterSize(pf, 1<<16),
		mux:     factory(),
	}, nil
}

type fileSink struct {
	pending *renameio.PendingFile
	buf     *bufio.Writer
	mux     Muxer
	decls   []StreamDecl
	started bool
	done    bool
}

func (s *fileSink) DeclareStream(decl StreamDecl) (int, error) {
	if s.done {
		return -1, ErrSinkDone
	}
	if s.started {
		return -1, ErrLateDeclare
	}
	idx := len(s.decls)
	decl.Index = idx
	s.decls = append(s.decls, decl)
	return idx, nil
}

func (s *fileSink) begin() error {
	if s.started {
		return nil
	}
	s.started = true
	return s.mux.Begin(s.buf, s.decls)
}

func (s *fileSink) WritePacket(index int, pkt media.Packet) error {
	if s.done {
		return ErrSinkDone
	}
	if index < 0 || index >= len(s.decls) {
		return errors.Wrapf(ErrUnknownStream, "index %d", index)
	}
	if err := s.begin(); err != nil {
		return errors.Wrap(err, "container: write header")
	}
	return s.mux.WritePacket(index, pkt)
}

func (s *fileSink) Finalize() error {
	if s.done {
		return ErrSinkDone
	}
	s.done = true
	if err := s.begin(); err != nil {
		_ = s.pending.Cleanup()
		return errors.Wrap(err, "container: write header")
	}
	if err := s.mux.End(); err != nil {
		_ = s.pending.Cleanup()
		return errors.Wrap(err, "container: write trailer")
	}
	if err := s.buf.Flush(); err != nil {
		_ = s.pending.Cleanup()
		return errors.Wrap(err, "container: flush")
	}
	if err := s.pending.CloseAtomicallyReplace(); err != nil {
		_ = s.pending.Cleanup()
		return errors.Wrap(err, "container: commit")
	}
	return nil
}

func (s *fileSink) Abort() {
	if s.done {
		return
	}
	s.done = true
	if s.started {
		// Stops any writer goroutine the muxer owns; the bytes are discarded.
		_ = s.mux.End()
	}
	_ = s.pending.Cleanup()
}
