// Package media defines the stream vocabulary shared by every stage of the
// remux engine: media types, codecs, dispositions, stream identities and
// packets. It has no dependencies on the stages themselves.
package media

import (
	"fmt"
	"strings"
)

// MediaType classifies an elementary stream.
type MediaType int

const (
	TypeUnknown MediaType = iota
	Video
	Audio
	Subtitle
	Attachment
	Data
)

// MediaTypes lists the known media types in their canonical order.
var MediaTypes = []MediaType{Video, Audio, Subtitle, Attachment, Data}

func (t MediaType) String() string {
	switch t {
	case Video:
		return "video"
	case Audio:
		return "audio"
	case Subtitle:
		return "subtitle"
	case Attachment:
		return "attachment"
	case Data:
		return "data"
	default:
		return "unknown"
	}
}

// Short returns the single-letter stream specifier used by ffmpeg (v, a, s, t, d).
func (t MediaType) Short() string {
	switch t {
	case Video:
		return "v"
	case Audio:
		return "a"
	case Subtitle:
		return "s"
	case Attachment:
		return "t"
	case Data:
		return "d"
	default:
		return "?"
	}
}

// ParseMediaType accepts both the long names and the ffmpeg-style letters.
func ParseMediaType(s string) (MediaType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "v", "video":
		return Video, nil
	case "a", "audio":
		return Audio, nil
	case "s", "sub", "subtitle", "subtitles":
		return Subtitle, nil
	case "t", "attachment", "attachments":
		return Attachment, nil
	case "d", "data":
		return Data, nil
	}
	return TypeUnknown, fmt.Errorf("unknown media type %q", s)
}

// Disposition is a set of stream handling flags.
type Disposition uint8

const (
	DispositionDefault Disposition = 1 << iota
	DispositionForced
)

// Has reports whether every flag in f is set.
func (d Disposition) Has(f Disposition) bool { return d&f == f }

// With returns d with f set.
func (d Disposition) With(f Disposition) Disposition { return d | f }

// Without returns d with f cleared.
func (d Disposition) Without(f Disposition) Disposition { return d &^ f }

func (d Disposition) String() string {
	var parts []string
	if d.Has(DispositionDefault) {
		parts = append(parts, "default")
	}
	if d.Has(DispositionForced) {
		parts = append(parts, "forced")
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, "+")
}

// StreamID identifies one stream in a catalog: the input source position and
// the stream position within that source, both zero-based.
type StreamID struct {
	Source int
	Index  int
}

func (id StreamID) String() string {
	return fmt.Sprintf("%d:%d", id.Source, id.Index)
}

// CodecParams carries the optional codec configuration a container writer
// may need to describe a track. Zero values mean unknown.
type CodecParams struct {
	Width      int
	Height     int
	SampleRate int
	Channels   int
	Extradata  []byte
	TimeBase   TimeBase
}

// StreamInfo is what a demuxer reports for one elementary stream.
type StreamInfo struct {
	Type        MediaType
	Codec       Codec
	Language    string
	Title       string
	Disposition Disposition
	Params      CodecParams
}

// InputStream is one enumerated stream of one input source. Values are
// treated as immutable once a catalog has been built.
type InputStream struct {
	ID StreamID
	StreamInfo
}

func (s InputStream) String() string {
	lang := s.Language
	if lang == "" {
		lang = "und"
	}
	return fmt.Sprintf("%s %s/%s [%s]", s.ID, s.Type, s.Codec, lang)
}
