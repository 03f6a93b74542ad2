// Package selection resolves ordered include/exclude rules against a stream
// catalog. Resolution is a pure fold: each rule maps the accepted sequence to
// a new one, so the result depends only on the catalog and the rule order.
package selection

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/backmassage/streammux/internal/media"
	"github.com/backmassage/streammux/internal/muxerr"
)

// Action is what a rule does with the streams it matches.
type Action int

const (
	Include Action = iota + 1
	Exclude
)

func (a Action) String() string {
	switch a {
	case Include:
		return "include"
	case Exclude:
		return "exclude"
	default:
		return "invalid"
	}
}

// Matcher filters streams. Zero-valued fields match anything, so the zero
// Matcher matches every stream.
type Matcher struct {
	// Type restricts the media type; TypeUnknown means any.
	Type media.MediaType

	// Language is an ISO 639 tag. "und" matches untagged streams only.
	Language string

	// Source restricts to one input; Stream (which requires Source) to one
	// stream of it.
	Source *int
	Stream *int

	Codecs  []media.Codec
	Default *bool
	Forced  *bool
}

// Rule is one selection instruction.
type Rule struct {
	Action Action
	Match  Matcher
}

// IncludeAll returns the rule that accepts every stream.
func IncludeAll() Rule { return Rule{Action: Include} }

// validate reports a structural problem with r, or "" when it is well formed.
func (r Rule) validate() string {
	if r.Action != Include && r.Action != Exclude {
		return fmt.Sprintf("unknown action %d", int(r.Action))
	}
	m := r.Match
	if m.Type < media.TypeUnknown || m.Type > media.Data {
		return fmt.Sprintf("unknown media type %d", int(m.Type))
	}
	if m.Source != nil && *m.Source < 0 {
		return fmt.Sprintf("negative source index %d", *m.Source)
	}
	if m.Stream != nil {
		if m.Source == nil {
			return "stream index without source index"
		}
		if *m.Stream < 0 {
			return fmt.Sprintf("negative stream index %d", *m.Stream)
		}
	}
	return ""
}

// Validate checks every rule and returns a *muxerr.SelectionError for the
// first malformed one.
func Validate(rules []Rule) error {
	for i, r := range rules {
		if detail := r.validate(); detail != "" {
			return &muxerr.SelectionError{Reason: muxerr.SelectionInvalidRule, Rule: i, Detail: detail}
		}
	}
	return nil
}

// Matches reports whether s satisfies every set field of m.
func (m Matcher) Matches(s media.InputStream) bool {
	if m.Type != media.TypeUnknown && s.Type != m.Type {
		return false
	}
	if m.Source != nil && s.ID.Source != *m.Source {
		return false
	}
	if m.Stream != nil && s.ID.Index != *m.Stream {
		return false
	}
	if m.Language != "" && !LanguageMatches(m.Language, s.Language) {
		return false
	}
	if len(m.Codecs) > 0 && !slices.Contains(m.Codecs, s.Codec) {
		return false
	}
	if m.Default != nil && s.Disposition.Has(media.DispositionDefault) != *m.Default {
		return false
	}
	if m.Forced != nil && s.Disposition.Has(media.DispositionForced) != *m.Forced {
		return false
	}
	return true
}

// String renders r in the expression syntax accepted by ParseRule.
func (r Rule) String() string {
	var b strings.Builder
	if r.Action == Exclude {
		b.WriteByte('-')
	} else {
		b.WriteByte('+')
	}
	m := r.Match
	switch {
	case m.Source != nil && m.Stream != nil && m.Type == media.TypeUnknown:
		fmt.Fprintf(&b, "%d:%d", *m.Source, *m.Stream)
	case m.Type != media.TypeUnknown:
		b.WriteString(m.Type.Short())
	default:
		b.WriteString("all")
	}

	var opts []string
	if m.Source != nil && (m.Stream == nil || m.Type != media.TypeUnknown) {
		opts = append(opts, "src="+strconv.Itoa(*m.Source))
		if m.Stream != nil {
			opts = append(opts, "idx="+strconv.Itoa(*m.Stream))
		}
	}
	if m.Language != "" {
		opts = append(opts, "lang="+m.Language)
	}
	if len(m.Codecs) > 0 {
		names := make([]string, len(m.Codecs))
		for i, c := range m.Codecs {
			names[i] = string(c)
		}
		opts = append(opts, "codec="+strings.Join(names, ","))
	}
	if m.Default != nil {
		opts = append(opts, "default="+strconv.FormatBool(*m.Default))
	}
	if m.Forced != nil {
		opts = append(opts, "forced="+strconv.FormatBool(*m.Forced))
	}
	for _, o := range opts {
		b.WriteByte(':')
		b.WriteString(o)
	}
	return b.String()
}
