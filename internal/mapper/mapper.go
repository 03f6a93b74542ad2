// Package mapper turns a validated stream sequence into the immutable mux
// plan: contiguous output indices in selection order and normalized default
// dispositions.
package mapper

import (
	"fmt"
	"slices"

	"github.com/backmassage/streammux/internal/conflict"
	"github.com/backmassage/streammux/internal/container"
	"github.com/backmassage/streammux/internal/media"
	"github.com/backmassage/streammux/internal/selection"
)

// Entry maps one selected stream to its output index.
type Entry struct {
	Output      int
	Stream      selection.SelectedStream
	Disposition media.Disposition
}

// Decl returns the sink declaration for e.
func (e Entry) Decl() container.StreamDecl {
	s := e.Stream
	return container.StreamDecl{
		Index:       e.Output,
		Type:        s.Type,
		Codec:       s.Codec,
		Language:    s.Language,
		Title:       s.Title,
		Disposition: e.Disposition,
		Params:      s.Params,
	}
}

// NoteKind classifies an informational plan note.
type NoteKind int

const (
	// DefaultDemoted: a stream lost its default flag because an earlier
	// output stream of the same media type already carries it.
	DefaultDemoted NoteKind = iota + 1
)

func (k NoteKind) String() string {
	if k == DefaultDemoted {
		return "default_demoted"
	}
	return "unknown"
}

// Note records an adjustment the mapper made. Notes never affect whether
// the plan is valid.
type Note struct {
	Kind   NoteKind
	Stream media.StreamID
	Output int
	// KeptBy is the output index that keeps the flag.
	KeptBy int
}

func (n Note) String() string {
	return fmt.Sprintf("%s: stream %s (output %d), default kept by output %d", n.Kind, n.Stream, n.Output, n.KeptBy)
}

// MuxPlan is the final, immutable mapping handed to the mux driver.
type MuxPlan struct {
	kind    container.Kind
	entries []Entry
	notes   []Note
}

// Map assigns output indices 0..N-1 in validated order. Dispositions are
// carried through, except that only the first default stream of each media
// type keeps the flag; later ones are demoted and noted.
func Map(v *conflict.Validated) *MuxPlan {
	streams := v.Streams()
	p := &MuxPlan{kind: v.Kind(), entries: make([]Entry, len(streams))}
	firstDefault := make(map[media.MediaType]int)

	for i, s := range streams {
		disp := s.Disposition
		if disp.Has(media.DispositionDefault) {
			if kept, ok := firstDefault[s.Type]; ok {
				disp = disp.Without(media.DispositionDefault)
				p.notes = append(p.notes, Note{Kind: DefaultDemoted, Stream: s.ID, Output: i, KeptBy: kept})
			} else {
				firstDefault[s.Type] = i
			}
		}
		p.entries[i] = Entry{Output: i, Stream: s, Disposition: disp}
	}
	return p
}

// Kind returns the target container kind.
func (p *MuxPlan) Kind() container.Kind { return p.kind }

// Len returns the number of output streams.
func (p *MuxPlan) Len() int { return len(p.entries) }

// Entry returns the entry for output index i.
func (p *MuxPlan) Entry(i int) Entry { return p.entries[i] }

// Entries returns a copy of all entries in output order.
func (p *MuxPlan) Entries() []Entry {
	return append([]Entry(nil), p.entries...)
}

// Notes returns a copy of the plan notes.
func (p *MuxPlan) Notes() []Note {
	return append([]Note(nil), p.notes...)
}

// Sources returns the distinct source indices the plan reads from, ascending.
func (p *MuxPlan) Sources() []int {
	seen := make(map[int]bool)
	var out []int
	for _, e := range p.entries {
		if src := e.Stream.ID.Source; !seen[src] {
			seen[src] = true
			out = append(out, src)
		}
	}
	slices.Sort(out)
	return out
}
