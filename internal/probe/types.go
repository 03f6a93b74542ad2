package probe

import (
	"strconv"
	"strings"

	"github.com/backmassage/streammux/internal/media"
)

// FormatInfo holds container-level metadata from ffprobe's format section.
type FormatInfo struct {
	Filename       string
	NbStreams      int
	FormatName     string
	FormatLongName string
	Duration       float64
	Size           int64
	BitRate        int64
	Tags           map[string]string
}

// StreamDetail holds the ffprobe fields that have no place in
// media.StreamInfo. Details[i] describes Streams[i].
type StreamDetail struct {
	Profile        string
	BitRate        int64
	FieldOrder     string
	ColorTransfer  string
	ColorPrimaries string
	ChannelLayout  string
}

// Result is the parsed output of one ffprobe call. Streams are in ffprobe
// index order, which is the container's stream order.
type Result struct {
	Format  FormatInfo
	Streams []media.StreamInfo
	Details []StreamDetail
}

// HDR returns "hdr10" if the stream carries HDR color metadata
// (smpte2084/arib-std-b67 transfer or bt2020 primaries), otherwise "sdr".
func (d StreamDetail) HDR() string {
	switch d.ColorTransfer {
	case "smpte2084", "arib-std-b67":
		return "hdr10"
	}
	if d.ColorPrimaries == "bt2020" {
		return "hdr10"
	}
	return "sdr"
}

// Interlaced reports whether field_order indicates interlaced content.
func (d StreamDetail) Interlaced() bool {
	switch strings.ToLower(strings.TrimSpace(d.FieldOrder)) {
	case "tt", "bb", "tb", "bt":
		return true
	}
	return false
}

// Resolution returns "WxH" for the first video stream, or "unknown".
func (r *Result) Resolution() string {
	for _, s := range r.Streams {
		if s.Type == media.Video && s.Params.Width > 0 && s.Params.Height > 0 {
			return strconv.Itoa(s.Params.Width) + "x" + strconv.Itoa(s.Params.Height)
		}
	}
	return "unknown"
}
