package selection

import (
	"github.com/backmassage/streammux/internal/catalog"
	"github.com/backmassage/streammux/internal/media"
	"github.com/backmassage/streammux/internal/muxerr"
)

// SelectedStream is a catalog stream together with the rule that accepted
// it. RuleIndex is that rule's position in the rule list.
type SelectedStream struct {
	media.InputStream
	Rule      Rule
	RuleIndex int
}

// accepted is the fold accumulator: the accepted streams in acceptance
// order. Steps never modify an accumulator in place.
type accepted struct {
	streams []SelectedStream
	ids     map[media.StreamID]struct{}
}

func (a accepted) has(id media.StreamID) bool {
	_, ok := a.ids[id]
	return ok
}

func (a accepted) with(s SelectedStream) accepted {
	next := accepted{
		streams: append(append([]SelectedStream(nil), a.streams...), s),
		ids:     make(map[media.StreamID]struct{}, len(a.ids)+1),
	}
	for id := range a.ids {
		next.ids[id] = struct{}{}
	}
	next.ids[s.ID] = struct{}{}
	return next
}

func (a accepted) without(m Matcher) accepted {
	next := accepted{ids: make(map[media.StreamID]struct{}, len(a.ids))}
	for _, s := range a.streams {
		if m.Matches(s.InputStream) {
			continue
		}
		next.streams = append(next.streams, s)
		next.ids[s.ID] = struct{}{}
	}
	return next
}

// step applies one rule. Include appends every matching stream not yet
// accepted, in catalog order; Exclude drops every matching accepted stream.
func step(acc accepted, streams []media.InputStream, idx int, r Rule) accepted {
	switch r.Action {
	case Include:
		for _, s := range streams {
			if !acc.has(s.ID) && r.Match.Matches(s) {
				acc = acc.with(SelectedStream{InputStream: s, Rule: r, RuleIndex: idx})
			}
		}
	case Exclude:
		acc = acc.without(r.Match)
	}
	return acc
}

// Resolve evaluates rules in order against cat and returns the accepted
// streams. A later rule overrides an earlier one for the same stream but
// never reorders streams it does not touch. Malformed rules fail before any
// evaluation; an empty result fails with SelectionEmpty.
func Resolve(cat *catalog.Catalog, rules []Rule) ([]SelectedStream, error) {
	if err := Validate(rules); err != nil {
		return nil, err
	}
	streams := cat.Streams()
	acc := accepted{ids: map[media.StreamID]struct{}{}}
	for i, r := range rules {
		acc = step(acc, streams, i, r)
	}
	if len(acc.streams) == 0 {
		return nil, &muxerr.SelectionError{
			Reason: muxerr.SelectionEmpty,
			Rule:   -1,
			Detail: "no stream matched the selection rules",
		}
	}
	return acc.streams, nil
}
