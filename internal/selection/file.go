package selection

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/backmassage/streammux/internal/media"
	"github.com/backmassage/streammux/internal/muxerr"
)

// A rules file is a YAML document of the form
//
//	rules:
//	  - include: {type: video}
//	  - include: {type: audio, language: eng}
//	  - exclude: {type: audio, language: fre}
//	  - include: {source: 0, stream: 2}
//	  - include: {codec: [subrip, ass], forced: true}
//	  - include: {}            # everything
type rulesFile struct {
	Rules []fileRule `yaml:"rules"`
}

type fileRule struct {
	Include *fileMatcher `yaml:"include"`
	Exclude *fileMatcher `yaml:"exclude"`
}

type fileMatcher struct {
	Type     string   `yaml:"type"`
	Language string   `yaml:"language"`
	Source   *int     `yaml:"source"`
	Stream   *int     `yaml:"stream"`
	Codec    []string `yaml:"codec"`
	Default  *bool    `yaml:"default"`
	Forced   *bool    `yaml:"forced"`
}

// LoadRulesFile reads rules from a YAML file.
func LoadRulesFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read rules file")
	}
	rules, err := ParseRulesYAML(data)
	if err != nil {
		return nil, errors.Wrapf(err, "rules file %s", path)
	}
	return rules, nil
}

// ParseRulesYAML decodes a rules document. Unknown keys are rejected.
func ParseRulesYAML(data []byte) ([]Rule, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc rulesFile
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, &muxerr.SelectionError{
			Reason: muxerr.SelectionInvalidRule,
			Rule:   -1,
			Detail: err.Error(),
		}
	}

	rules := make([]Rule, 0, len(doc.Rules))
	for i, fr := range doc.Rules {
		r, detail := fr.rule()
		if detail == "" {
			detail = r.validate()
		}
		if detail != "" {
			return nil, &muxerr.SelectionError{Reason: muxerr.SelectionInvalidRule, Rule: i, Detail: detail}
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func (fr fileRule) rule() (Rule, string) {
	var (
		r Rule
		m *fileMatcher
	)
	switch {
	case fr.Include != nil && fr.Exclude != nil:
		return r, "rule has both include and exclude"
	case fr.Include != nil:
		r.Action, m = Include, fr.Include
	case fr.Exclude != nil:
		r.Action, m = Exclude, fr.Exclude
	default:
		return r, "rule needs include or exclude"
	}

	if m.Type != "" && m.Type != "all" {
		t, err := media.ParseMediaType(m.Type)
		if err != nil {
			return r, fmt.Sprintf("unknown media type %q", m.Type)
		}
		r.Match.Type = t
	}
	r.Match.Language = m.Language
	r.Match.Source = m.Source
	r.Match.Stream = m.Stream
	r.Match.Default = m.Default
	r.Match.Forced = m.Forced
	for _, c := range m.Codec {
		r.Match.Codecs = append(r.Match.Codecs, media.NormalizeCodec(c))
	}
	return r, ""
}
