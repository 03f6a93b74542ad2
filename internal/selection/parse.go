package selection

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/backmassage/streammux/internal/media"
	"github.com/backmassage/streammux/internal/muxerr"
)

// ParseRule parses one rule expression. The grammar is
//
//	('+' | '-') target (':' key '=' value)*
//
// where target is "all", a media type ("v", "audio", ...), a source index
// ("1") or a source and stream index ("0:2"). Keys are lang, codec (comma
// separated), default, forced, src and idx. ordinal is only used to label
// errors.
//
// Examples: "+v", "+a:lang=eng", "-a:lang=fre", "+0:2", "+s:codec=subrip,ass".
func ParseRule(expr string, ordinal int) (Rule, error) {
	fail := func(format string, args ...any) (Rule, error) {
		return Rule{}, &muxerr.SelectionError{
			Reason: muxerr.SelectionInvalidRule,
			Rule:   ordinal,
			Detail: fmt.Sprintf("%q: ", expr) + fmt.Sprintf(format, args...),
		}
	}

	s := strings.TrimSpace(expr)
	if s == "" {
		return fail("empty rule")
	}
	var r Rule
	switch s[0] {
	case '+':
		r.Action = Include
	case '-':
		r.Action = Exclude
	default:
		return fail("rule must start with + or -")
	}

	parts := strings.Split(s[1:], ":")
	target := strings.TrimSpace(parts[0])
	opts := parts[1:]

	switch {
	case target == "" || strings.EqualFold(target, "all"):
	case isIndex(target):
		src, _ := strconv.Atoi(target)
		r.Match.Source = &src
		if len(opts) > 0 && isIndex(opts[0]) {
			idx, _ := strconv.Atoi(opts[0])
			r.Match.Stream = &idx
			opts = opts[1:]
		}
	default:
		t, err := media.ParseMediaType(target)
		if err != nil {
			return fail("unknown target %q", target)
		}
		r.Match.Type = t
	}

	for _, opt := range opts {
		key, val, ok := strings.Cut(opt, "=")
		if !ok {
			return fail("option %q is not key=value", opt)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		switch key {
		case "lang", "language":
			if val == "" {
				return fail("empty language")
			}
			r.Match.Language = val
		case "codec", "codecs":
			for _, c := range strings.Split(val, ",") {
				if c = strings.TrimSpace(c); c != "" {
					r.Match.Codecs = append(r.Match.Codecs, media.NormalizeCodec(c))
				}
			}
			if len(r.Match.Codecs) == 0 {
				return fail("empty codec list")
			}
		case "default", "forced":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fail("%s: %v", key, err)
			}
			if key == "default" {
				r.Match.Default = &b
			} else {
				r.Match.Forced = &b
			}
		case "src", "source":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fail("src: %v", err)
			}
			r.Match.Source = &n
		case "idx", "stream":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fail("idx: %v", err)
			}
			r.Match.Stream = &n
		default:
			return fail("unknown option %q", key)
		}
	}

	if detail := r.validate(); detail != "" {
		return fail("%s", detail)
	}
	return r, nil
}

// ParseRules parses expressions in order; the i-th expression becomes rule i.
func ParseRules(exprs []string) ([]Rule, error) {
	return ParseRulesFrom(exprs, 0)
}

// ParseRulesFrom is ParseRules for expressions that follow first earlier
// rules, so errors carry each rule's position in the combined list.
func ParseRulesFrom(exprs []string, first int) ([]Rule, error) {
	rules := make([]Rule, 0, len(exprs))
	for i, e := range exprs {
		r, err := ParseRule(e, first+i)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
