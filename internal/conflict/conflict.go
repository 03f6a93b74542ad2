// Package conflict checks a selected stream set against the capability table
// of the target container and reports every stream it cannot represent in
// one aggregated error.
package conflict

import (
	"github.com/backmassage/streammux/internal/container"
	"github.com/backmassage/streammux/internal/media"
	"github.com/backmassage/streammux/internal/muxerr"
	"github.com/backmassage/streammux/internal/selection"
)

// Validated is a stream sequence known to fit its target container. Only
// Validate constructs one, so holding a *Validated is proof the check ran.
type Validated struct {
	kind    container.Kind
	streams []selection.SelectedStream
}

// Kind returns the target container kind.
func (v *Validated) Kind() container.Kind { return v.kind }

// Streams returns the validated streams in selection order.
func (v *Validated) Streams() []selection.SelectedStream {
	return append([]selection.SelectedStream(nil), v.streams...)
}

// Len returns the number of validated streams.
func (v *Validated) Len() int { return len(v.streams) }

// Validate checks selected against kind's capability table. For each stream
// the checks run in a fixed order and the first one that fails is its
// reason: media type support, per-type count limit, codec support, then
// duplicate identity. All offenders are returned together in selection
// order. When a type is over its limit every stream of that type is named.
func Validate(selected []selection.SelectedStream, kind container.Kind) (*Validated, error) {
	caps, ok := container.CapabilitiesFor(kind)
	if !ok {
		offenders := make([]muxerr.Offender, len(selected))
		for i, s := range selected {
			offenders[i] = offender(s, muxerr.UnknownContainer, 0)
		}
		return nil, &muxerr.ContainerConflictError{Container: string(kind), Offenders: offenders}
	}

	perType := make(map[media.MediaType]int)
	counted := make(map[media.StreamID]bool, len(selected))
	for _, s := range selected {
		if !counted[s.ID] {
			counted[s.ID] = true
			perType[s.Type]++
		}
	}

	var offenders []muxerr.Offender
	seen := make(map[media.StreamID]bool, len(selected))
	for _, s := range selected {
		dup := seen[s.ID]
		seen[s.ID] = true

		switch limit := caps.Limit(s.Type); {
		case !caps.Supports(s.Type):
			offenders = append(offenders, offender(s, muxerr.UnsupportedMediaType, 0))
		case limit != container.Unlimited && perType[s.Type] > limit:
			offenders = append(offenders, offender(s, muxerr.TooManyStreams, limit))
		case !caps.SupportsCodec(s.Type, s.Codec):
			offenders = append(offenders, offender(s, muxerr.UnsupportedCodec, 0))
		case dup:
			offenders = append(offenders, offender(s, muxerr.DuplicateStream, 0))
		}
	}
	if len(offenders) > 0 {
		return nil, &muxerr.ContainerConflictError{Container: string(kind), Offenders: offenders}
	}
	return &Validated{
		kind:    kind,
		streams: append([]selection.SelectedStream(nil), selected...),
	}, nil
}

func offender(s selection.SelectedStream, reason muxerr.ConflictReason, limit int) muxerr.Offender {
	return muxerr.Offender{Stream: s.ID, Type: s.Type, Codec: s.Codec, Reason: reason, Limit: limit}
}
