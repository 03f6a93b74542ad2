package probe

import (
	"context"
	"errors"
	"testing"

	"github.com/backmassage/streammux/internal/demux"
	"github.com/backmassage/streammux/internal/media"
)

// Realistic ffprobe JSON for a Matroska file with:
//   - 1 HEVC Main 10 HDR video stream (1920x1080, smpte2084, bt2020)
//   - 1 AAC stereo audio stream (48000 Hz)
//   - 1 ASS subtitle stream
//   - 1 attached pic (cover art, reported as an attachment)
const sampleHDR = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "mjpeg",
      "codec_type": "video",
      "width": 600,
      "height": 900,
      "pix_fmt": "yuvj444p",
      "disposition": { "default": 0, "attached_pic": 1 },
      "tags": { "comment": "Cover (front)" }
    },
    {
      "index": 1,
      "codec_name": "hevc",
      "codec_type": "video",
      "profile": "Main 10",
      "pix_fmt": "yuv420p10le",
      "width": 1920,
      "height": 1080,
      "bit_rate": "5000000",
      "field_order": "progressive",
      "color_transfer": "smpte2084",
      "color_primaries": "bt2020",
      "color_space": "bt2020nc",
      "avg_frame_rate": "24000/1001",
      "disposition": { "default": 1, "attached_pic": 0 },
      "tags": {}
    },
    {
      "index": 2,
      "codec_name": "aac",
      "codec_type": "audio",
      "channels": 2,
      "channel_layout": "stereo",
      "sample_rate": "48000",
      "disposition": { "default": 1, "attached_pic": 0 },
      "tags": { "language": "jpn" }
    },
    {
      "index": 3,
      "codec_name": "ass",
      "codec_type": "subtitle",
      "disposition": { "default": 0 },
      "tags": { "language": "eng" }
    }
  ],
  "format": {
    "filename": "/media/test/Show.S01E01.mkv",
    "nb_streams": 4,
    "format_name": "matroska,webm",
    "format_long_name": "Matroska / WebM",
    "duration": "1437.123000",
    "size": "1234567890",
    "bit_rate": "6873456",
    "tags": { "title": "Episode 1" }
  }
}`

// SDR file with interlaced video, bitmap subtitles, and multiple audio.
const sampleInterlaced = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "mpeg2video",
      "codec_type": "video",
      "profile": "Main",
      "pix_fmt": "yuv420p",
      "width": 720,
      "height": 480,
      "bit_rate": "3500000",
      "field_order": "tt",
      "color_transfer": "bt709",
      "color_primaries": "bt709",
      "color_space": "bt709",
      "avg_frame_rate": "30000/1001",
      "disposition": { "default": 1, "attached_pic": 0 },
      "tags": {}
    },
    {
      "index": 1,
      "codec_name": "ac3",
      "codec_type": "audio",
      "channels": 6,
      "channel_layout": "5.1(side)",
      "sample_rate": "48000",
      "disposition": { "default": 1, "attached_pic": 0 },
      "tags": { "language": "eng" }
    },
    {
      "index": 2,
      "codec_name": "aac",
      "codec_type": "audio",
      "channels": 2,
      "channel_layout": "stereo",
      "sample_rate": "44100",
      "disposition": { "default": 0, "attached_pic": 0 },
      "tags": { "language": "jpn" }
    },
    {
      "index": 3,
      "codec_name": "hdmv_pgs_subtitle",
      "codec_type": "subtitle",
      "disposition": { "default": 0 },
      "tags": { "language": "eng" }
    },
    {
      "index": 4,
      "codec_name": "dvd_subtitle",
      "codec_type": "subtitle",
      "disposition": { "default": 0 },
      "tags": { "language": "jpn" }
    }
  ],
  "format": {
    "filename": "/media/test/dvd_rip.mkv",
    "nb_streams": 5,
    "format_name": "matroska,webm",
    "format_long_name": "Matroska / WebM",
    "duration": "5400.000000",
    "size": "4000000000",
    "bit_rate": "5925925",
    "tags": {}
  }
}`

// Minimal file: just video, no audio, no subs.
const sampleMinimal = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "h264",
      "codec_type": "video",
      "profile": "High",
      "pix_fmt": "yuv420p",
      "width": 1280,
      "height": 720,
      "field_order": "progressive",
      "disposition": { "default": 1, "attached_pic": 0 },
      "tags": {}
    }
  ],
  "format": {
    "filename": "minimal.mp4",
    "nb_streams": 1,
    "format_name": "mov,mp4,m4a,3gp,3g2,mj2",
    "duration": "10.000",
    "size": "500000",
    "bit_rate": "400000",
    "tags": {}
  }
}`

func TestParseJSON_HDRFile(t *testing.T) {
	pr, err := ParseJSON([]byte(sampleHDR))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}

	if pr.Format.Filename != "/media/test/Show.S01E01.mkv" {
		t.Errorf("filename: got %q", pr.Format.Filename)
	}
	if pr.Format.NbStreams != 4 {
		t.Errorf("nb_streams: got %d, want 4", pr.Format.NbStreams)
	}
	if pr.Format.Duration != 1437.123 {
		t.Errorf("duration: got %f, want 1437.123", pr.Format.Duration)
	}
	if pr.Format.BitRate != 6873456 {
		t.Errorf("format bitrate: got %d", pr.Format.BitRate)
	}

	if len(pr.Streams) != 4 || len(pr.Details) != 4 {
		t.Fatalf("streams: got %d/%d, want 4", len(pr.Streams), len(pr.Details))
	}

	cover := pr.Streams[0]
	if cover.Type != media.Attachment {
		t.Errorf("cover art: got type %s", cover.Type)
	}

	v := pr.Streams[1]
	if v.Type != media.Video || v.Codec != media.CodecHEVC {
		t.Errorf("video: got %s/%s", v.Type, v.Codec)
	}
	if v.Params.Width != 1920 || v.Params.Height != 1080 {
		t.Errorf("resolution: got %dx%d", v.Params.Width, v.Params.Height)
	}
	if !v.Disposition.Has(media.DispositionDefault) {
		t.Error("video should be default")
	}
	if pr.Details[1].Profile != "Main 10" || pr.Details[1].BitRate != 5000000 {
		t.Errorf("video detail: %+v", pr.Details[1])
	}
	if got := pr.Details[1].HDR(); got != "hdr10" {
		t.Errorf("HDR: got %q, want hdr10", got)
	}

	a := pr.Streams[2]
	if a.Type != media.Audio || a.Codec != media.CodecAAC || a.Params.Channels != 2 || a.Params.SampleRate != 48000 {
		t.Errorf("audio: %+v", a)
	}
	if a.Language != "jpn" {
		t.Errorf("audio language: got %q", a.Language)
	}

	s := pr.Streams[3]
	if s.Type != media.Subtitle || s.Codec != media.CodecASS || s.Language != "eng" {
		t.Errorf("subtitle: %+v", s)
	}
	if s.Disposition != 0 {
		t.Errorf("subtitle disposition: got %s", s.Disposition)
	}
}

func TestParseJSON_InterlacedFile(t *testing.T) {
	pr, err := ParseJSON([]byte(sampleInterlaced))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}

	if got := pr.Streams[0].Codec; got != media.CodecMPEG2Video {
		t.Errorf("codec: got %q", got)
	}
	if !pr.Details[0].Interlaced() {
		t.Errorf("field_order %q should be interlaced", pr.Details[0].FieldOrder)
	}
	if pr.Details[0].HDR() != "sdr" {
		t.Errorf("HDR: got %q, want sdr", pr.Details[0].HDR())
	}
	if pr.Streams[1].Type != media.Audio || pr.Streams[2].Type != media.Audio {
		t.Errorf("streams 1 and 2 should be audio: %s, %s", pr.Streams[1].Type, pr.Streams[2].Type)
	}
	if got := pr.Streams[2].Params.SampleRate; got != 44100 {
		t.Errorf("second audio sample_rate: got %d", got)
	}
	for _, i := range []int{3, 4} {
		if !pr.Streams[i].Codec.IsBitmapSubtitle() {
			t.Errorf("stream %d (%s) should be a bitmap subtitle", i, pr.Streams[i].Codec)
		}
	}
}

func TestParseJSON_MinimalFile(t *testing.T) {
	pr, err := ParseJSON([]byte(sampleMinimal))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if len(pr.Streams) != 1 || pr.Streams[0].Codec != media.CodecH264 {
		t.Fatalf("streams: %+v", pr.Streams)
	}
	if got := pr.Resolution(); got != "1280x720" {
		t.Errorf("resolution: got %q, want 1280x720", got)
	}
}

func TestHDR(t *testing.T) {
	cases := []struct {
		name string
		d    StreamDetail
		want string
	}{
		{"PQ", StreamDetail{ColorTransfer: "smpte2084"}, "hdr10"},
		{"HLG", StreamDetail{ColorTransfer: "arib-std-b67"}, "hdr10"},
		{"bt2020 primaries only", StreamDetail{ColorPrimaries: "bt2020"}, "hdr10"},
		{"bt709", StreamDetail{ColorTransfer: "bt709", ColorPrimaries: "bt709"}, "sdr"},
		{"empty", StreamDetail{}, "sdr"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.d.HDR(); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestInterlaced(t *testing.T) {
	cases := []struct {
		order string
		want  bool
	}{
		{"tt", true},
		{"BB", true},
		{" tb ", true},
		{"bt", true},
		{"progressive", false},
		{"", false},
	}
	for _, tc := range cases {
		t.Run(tc.order, func(t *testing.T) {
			if got := (StreamDetail{FieldOrder: tc.order}).Interlaced(); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseJSON_InvalidJSON(t *testing.T) {
	_, err := ParseJSON([]byte(`{invalid`))
	if err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestParseJSON_EmptyStreams(t *testing.T) {
	pr, err := ParseJSON([]byte(`{"streams":[],"format":{"filename":"empty.mkv","nb_streams":0}}`))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if len(pr.Streams) != 0 {
		t.Errorf("streams: got %d", len(pr.Streams))
	}
	if pr.Resolution() != "unknown" {
		t.Errorf("resolution: got %q", pr.Resolution())
	}
}

func TestParseJSON_AttachmentsAndForced(t *testing.T) {
	j := `{
		"streams": [
			{
				"index": 0,
				"codec_name": "subrip",
				"codec_type": "subtitle",
				"time_base": "1/1000",
				"disposition": { "default": 0, "forced": 1 },
				"tags": { "language": "fre", "title": "Forced" }
			},
			{
				"index": 1,
				"codec_type": "attachment",
				"tags": { "filename": "font.ttf", "mimetype": "application/x-truetype-font" }
			},
			{
				"index": 2,
				"codec_name": "bin_data",
				"codec_type": "data"
			}
		],
		"format": { "filename": "subs.mkv", "nb_streams": 3 }
	}`
	pr, err := ParseJSON([]byte(j))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}

	sub := pr.Streams[0]
	if !sub.Disposition.Has(media.DispositionForced) || sub.Disposition.Has(media.DispositionDefault) {
		t.Errorf("disposition: got %s, want forced", sub.Disposition)
	}
	if sub.Title != "Forced" {
		t.Errorf("title: got %q", sub.Title)
	}
	if sub.Params.TimeBase != media.TimeBaseMilli {
		t.Errorf("time base: got %+v", sub.Params.TimeBase)
	}

	if font := pr.Streams[1]; font.Type != media.Attachment || font.Codec != media.CodecTTF {
		t.Errorf("font: got %s/%s", font.Type, font.Codec)
	}
	if data := pr.Streams[2]; data.Type != media.Data || data.Codec.Known() {
		t.Errorf("data: got %s/%s", data.Type, data.Codec)
	}
}

func TestStreamBitRate_TagBPSFallback(t *testing.T) {
	// MKV-style: streams without bit_rate carry tags.BPS instead.
	j := `{
		"streams": [
			{
				"index": 0,
				"codec_name": "flac",
				"codec_type": "audio",
				"channels": 2,
				"sample_rate": "48000",
				"tags": { "language": "jpn", "BPS": "930000" }
			},
			{
				"index": 1,
				"codec_name": "aac",
				"codec_type": "audio",
				"bit_rate": "256000",
				"tags": { "language": "eng", "BPS": "192000" }
			}
		],
		"format": { "filename": "test.mkv", "nb_streams": 2 }
	}`
	pr, err := ParseJSON([]byte(j))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if got := pr.Details[0].BitRate; got != 930000 {
		t.Errorf("audio[0] BitRate: got %d, want 930000 (from tags.BPS)", got)
	}
	// The top-level value takes precedence over the tag.
	if got := pr.Details[1].BitRate; got != 256000 {
		t.Errorf("audio[1] BitRate: got %d, want 256000", got)
	}
}

func TestHandleCannotReadPackets(t *testing.T) {
	pr, err := ParseJSON([]byte(sampleMinimal))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	h := &Handle{source: "minimal.mp4", Result: pr}

	infos, err := h.Streams(context.Background())
	if err != nil || len(infos) != 1 {
		t.Fatalf("Streams: %v, %d", err, len(infos))
	}
	if _, err := h.OpenStream(context.Background(), 0); !errors.Is(err, demux.ErrPacketsUnsupported) {
		t.Errorf("OpenStream: got %v, want ErrPacketsUnsupported", err)
	}
}

func TestProbeMissingBinary(t *testing.T) {
	p := Prober{Binary: "/nonexistent/ffprobe"}
	if _, err := p.Probe(context.Background(), "x.mkv"); err == nil {
		t.Error("expected error for missing ffprobe binary")
	}
}
