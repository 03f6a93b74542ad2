package probe

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/backmassage/streammux/internal/media"
)

// DefaultBinary is the ffprobe executable looked up on PATH.
const DefaultBinary = "ffprobe"

// Prober runs ffprobe.
type Prober struct {
	// Binary is the ffprobe executable; empty means DefaultBinary.
	Binary string
}

func (p Prober) binary() string {
	if p.Binary == "" {
		return DefaultBinary
	}
	return p.Binary
}

// Probe runs a single ffprobe JSON call against path and returns the
// parsed result.
func (p Prober) Probe(ctx context.Context, path string) (*Result, error) {
	cmd := exec.CommandContext(ctx, p.binary(),
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, errors.Wrapf(err, "ffprobe %q", path)
	}

	return ParseJSON(out)
}

// ParseJSON converts raw ffprobe JSON output into a Result.
// Exported for testing without a real ffprobe binary.
func ParseJSON(data []byte) (*Result, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parse ffprobe JSON")
	}
	return buildResult(&raw), nil
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename       string            `json:"filename"`
	NbStreams      int               `json:"nb_streams"`
	FormatName     string            `json:"format_name"`
	FormatLongName string            `json:"format_long_name"`
	Duration       string            `json:"duration"`
	Size           string            `json:"size"`
	BitRate        string            `json:"bit_rate"`
	Tags           map[string]string `json:"tags"`
}

type ffprobeStream struct {
	Index          int               `json:"index"`
	CodecName      string            `json:"codec_name"`
	CodecType      string            `json:"codec_type"`
	Profile        string            `json:"profile"`
	Width          int               `json:"width"`
	Height         int               `json:"height"`
	BitRate        string            `json:"bit_rate"`
	FieldOrder     string            `json:"field_order"`
	ColorTransfer  string            `json:"color_transfer"`
	ColorPrimaries string            `json:"color_primaries"`
	TimeBase       string            `json:"time_base"`
	Channels       int               `json:"channels"`
	ChannelLayout  string            `json:"channel_layout"`
	SampleRate     string            `json:"sample_rate"`
	Disposition    map[string]int    `json:"disposition"`
	Tags           map[string]string `json:"tags"`
}

// --- Conversion from wire types to domain types ---

func buildResult(raw *ffprobeOutput) *Result {
	r := &Result{Format: convertFormat(&raw.Format)}
	for i := range raw.Streams {
		s := &raw.Streams[i]
		r.Streams = append(r.Streams, convertStream(s))
		r.Details = append(r.Details, convertDetail(s))
	}
	return r
}

func convertFormat(f *ffprobeFormat) FormatInfo {
	return FormatInfo{
		Filename:       f.Filename,
		NbStreams:      f.NbStreams,
		FormatName:     f.FormatName,
		FormatLongName: f.FormatLongName,
		Duration:       parseFloat(f.Duration),
		Size:           parseInt64(f.Size),
		BitRate:        parseInt64(f.BitRate),
		Tags:           f.Tags,
	}
}

// convertStream maps one ffprobe stream. Cover art travels as a video stream
// with the attached_pic disposition; it is reported as an attachment so a
// plain video selection does not pick it up.
func convertStream(s *ffprobeStream) media.StreamInfo {
	typ, _ := media.ParseMediaType(s.CodecType)
	if typ == media.Video && s.Disposition["attached_pic"] == 1 {
		typ = media.Attachment
	}

	name := s.CodecName
	if name == "" && typ == media.Attachment {
		name = s.Tags["mimetype"]
	}

	info := media.StreamInfo{
		Type:     typ,
		Codec:    media.NormalizeCodec(name),
		Language: s.Tags["language"],
		Title:    s.Tags["title"],
		Params: media.CodecParams{
			Width:      s.Width,
			Height:     s.Height,
			SampleRate: parseInt(s.SampleRate),
			Channels:   s.Channels,
			TimeBase:   parseTimeBase(s.TimeBase),
		},
	}
	if s.Disposition["default"] == 1 {
		info.Disposition = info.Disposition.With(media.DispositionDefault)
	}
	if s.Disposition["forced"] == 1 {
		info.Disposition = info.Disposition.With(media.DispositionForced)
	}
	return info
}

func convertDetail(s *ffprobeStream) StreamDetail {
	return StreamDetail{
		Profile:        s.Profile,
		BitRate:        streamBitRate(s),
		FieldOrder:     s.FieldOrder,
		ColorTransfer:  s.ColorTransfer,
		ColorPrimaries: s.ColorPrimaries,
		ChannelLayout:  s.ChannelLayout,
	}
}

// streamBitRate prefers bit_rate and falls back to the Matroska BPS tag.
func streamBitRate(s *ffprobeStream) int64 {
	if n := parseInt64(s.BitRate); n > 0 {
		return n
	}
	return parseInt64(s.Tags["BPS"])
}

// --- Numeric parsing helpers (ffprobe returns numbers as strings) ---

func parseInt64(s string) int64 {
	s = strings.TrimSpace(s)
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func parseInt(s string) int {
	s = strings.TrimSpace(s)
	n, _ := strconv.Atoi(s)
	return n
}

// parseTimeBase parses "num/den"; malformed input yields the zero TimeBase.
func parseTimeBase(s string) media.TimeBase {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return media.TimeBase{}
	}
	tb := media.TimeBase{Num: parseInt64(num), Den: parseInt64(den)}
	if !tb.Valid() {
		return media.TimeBase{}
	}
	return tb
}
