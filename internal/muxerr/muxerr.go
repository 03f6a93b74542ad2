// Package muxerr defines the typed failures a remux run can end with. Every
// error carries structured detail (stream identity, reason code, wrapped
// cause) so the caller can render its own message and pick an exit code from
// [KindOf]; nothing here is meant to be shown to a user verbatim.
package muxerr

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/backmassage/streammux/internal/media"
)

// Kind classifies a run failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindSourceOpen
	KindSelection
	KindContainerConflict
	KindMuxIO
)

func (k Kind) String() string {
	switch k {
	case KindSourceOpen:
		return "source_open"
	case KindSelection:
		return "selection"
	case KindContainerConflict:
		return "container_conflict"
	case KindMuxIO:
		return "mux_io"
	default:
		return "unknown"
	}
}

// KindOf returns the kind of the first typed error found in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var (
		so *SourceOpenError
		se *SelectionError
		ce *ContainerConflictError
		me *MuxIoError
	)
	switch {
	case errors.As(err, &so):
		return KindSourceOpen
	case errors.As(err, &se):
		return KindSelection
	case errors.As(err, &ce):
		return KindContainerConflict
	case errors.As(err, &me):
		return KindMuxIO
	}
	return KindUnknown
}

// SourceOpenError reports an input that could not be opened or probed.
type SourceOpenError struct {
	Source int
	Path   string
	Err    error
}

func (e *SourceOpenError) Error() string {
	return fmt.Sprintf("source %d (%s): open: %v", e.Source, e.Path, e.Err)
}

func (e *SourceOpenError) Unwrap() error { return e.Err }

// SelectionReason says why selection failed.
type SelectionReason int

const (
	// SelectionEmpty means the rules accepted no stream at all.
	SelectionEmpty SelectionReason = iota + 1
	// SelectionInvalidRule means a rule is structurally malformed.
	SelectionInvalidRule
)

func (r SelectionReason) String() string {
	switch r {
	case SelectionEmpty:
		return "empty"
	case SelectionInvalidRule:
		return "invalid_rule"
	default:
		return "unknown"
	}
}

// SelectionError reports a failed rule resolution. Rule is the ordinal of
// the offending rule, or -1 when the failure is not tied to one rule.
type SelectionError struct {
	Reason SelectionReason
	Rule   int
	Detail string
}

func (e *SelectionError) Error() string {
	if e.Rule >= 0 {
		return fmt.Sprintf("selection: %s (rule %d): %s", e.Reason, e.Rule, e.Detail)
	}
	if e.Detail != "" {
		return fmt.Sprintf("selection: %s: %s", e.Reason, e.Detail)
	}
	return "selection: " + e.Reason.String()
}

// ConflictReason says why one stream cannot go into the target container.
type ConflictReason int

const (
	UnknownContainer ConflictReason = iota + 1
	UnsupportedMediaType
	TooManyStreams
	UnsupportedCodec
	DuplicateStream
)

func (r ConflictReason) String() string {
	switch r {
	case UnknownContainer:
		return "unknown_container"
	case UnsupportedMediaType:
		return "unsupported_media_type"
	case TooManyStreams:
		return "too_many_streams"
	case UnsupportedCodec:
		return "unsupported_codec"
	case DuplicateStream:
		return "duplicate_stream"
	default:
		return "unknown"
	}
}

// Offender is one stream that violates a container rule. Limit is set for
// TooManyStreams.
type Offender struct {
	Stream media.StreamID
	Type   media.MediaType
	Codec  media.Codec
	Reason ConflictReason
	Limit  int
}

func (o Offender) String() string {
	s := fmt.Sprintf("%s %s/%s: %s", o.Stream, o.Type, o.Codec, o.Reason)
	if o.Reason == TooManyStreams {
		s += fmt.Sprintf(" (limit %d)", o.Limit)
	}
	return s
}

// ContainerConflictError aggregates every stream the target container
// cannot represent, in selection order.
type ContainerConflictError struct {
	Container string
	Offenders []Offender
}

func (e *ContainerConflictError) Error() string {
	if len(e.Offenders) == 0 {
		return fmt.Sprintf("container %s: conflict", e.Container)
	}
	parts := make([]string, len(e.Offenders))
	for i, o := range e.Offenders {
		parts[i] = o.String()
	}
	return fmt.Sprintf("container %s: %d conflicting stream(s): %s",
		e.Container, len(e.Offenders), strings.Join(parts, "; "))
}

// Streams returns the ids of all offending streams.
func (e *ContainerConflictError) Streams() []media.StreamID {
	ids := make([]media.StreamID, len(e.Offenders))
	for i, o := range e.Offenders {
		ids[i] = o.Stream
	}
	return ids
}

// IOOp names the step of the mux run that failed.
type IOOp int

const (
	OpCreate IOOp = iota + 1
	OpDeclare
	OpOpen
	OpRead
	OpWrite
	OpFinalize
	OpStopped
)

func (o IOOp) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpDeclare:
		return "declare"
	case OpOpen:
		return "open"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpFinalize:
		return "finalize"
	case OpStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MuxIoError reports a failure while copying packets. OutputIndex is -1 and
// Stream is zero when the failure is not tied to one stream (create,
// finalize). Packet is the number of packets the sink accepted before the
// failure.
type MuxIoError struct {
	Op          IOOp
	Stream      media.StreamID
	OutputIndex int
	Packet      int64
	Err         error
}

func (e *MuxIoError) Error() string {
	if e.OutputIndex >= 0 {
		return fmt.Sprintf("mux %s: stream %s (output %d) after %d packet(s): %v",
			e.Op, e.Stream, e.OutputIndex, e.Packet, e.Err)
	}
	return fmt.Sprintf("mux %s after %d packet(s): %v", e.Op, e.Packet, e.Err)
}

func (e *MuxIoError) Unwrap() error { return e.Err }
