package display

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/backmassage/streammux/internal/catalog"
	"github.com/backmassage/streammux/internal/conflict"
	"github.com/backmassage/streammux/internal/container"
	"github.com/backmassage/streammux/internal/mapper"
	"github.com/backmassage/streammux/internal/media"
	"github.com/backmassage/streammux/internal/muxerr"
	"github.com/backmassage/streammux/internal/selection"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"zero", 0, "0 B"},
		{"small bytes", 512, "512 B"},
		{"exactly 1 KiB", 1024, "1.0 KiB"},
		{"1.5 KiB", 1536, "1.5 KiB"},
		{"1 MiB", 1024 * 1024, "1.0 MiB"},
		{"1 GiB", 1024 * 1024 * 1024, "1.0 GiB"},
		{"typical file 700 MiB", 734003200, "700.0 MiB"},
		{"4.7 GiB", 5046586572, "4.7 GiB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatBytes(tt.bytes)
			if got != tt.want {
				t.Errorf("FormatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestFormatBytesWithSign(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"positive", 1024 * 1024, "+ 1.0 MiB"},
		{"negative", -1024 * 1024, "- 1.0 MiB"},
		{"zero", 0, "0 B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatBytesWithSign(tt.bytes)
			if got != tt.want {
				t.Errorf("FormatBytesWithSign(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestFormatBitrateLabel(t *testing.T) {
	tests := []struct {
		name string
		kbps int64
		want string
	}{
		{"sub-megabit", 800, "800 kbps"},
		{"exactly 1 Mbps", 1000, "1.0 Mbps"},
		{"typical video", 5000, "5.0 Mbps"},
		{"high bitrate", 25000, "25.0 Mbps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatBitrateLabel(tt.kbps)
			if got != tt.want {
				t.Errorf("FormatBitrateLabel(%d) = %q, want %q", tt.kbps, got, tt.want)
			}
		})
	}
}

func TestWriteCatalogAndPlan(t *testing.T) {
	color.NoColor = true
	cat := catalog.New([]string{"in.ts"}, [][]media.StreamInfo{{
		{Type: media.Video, Codec: media.CodecH264, Params: media.CodecParams{Width: 1920, Height: 1080}},
		{Type: media.Audio, Codec: media.CodecAAC, Language: "eng", Disposition: media.DispositionDefault},
		{Type: media.Audio, Codec: media.CodecAAC, Disposition: media.DispositionDefault},
	}})

	var buf bytes.Buffer
	WriteCatalog(&buf, cat)
	out := buf.String()
	for _, want := range []string{"Source 0: in.ts", "1920x1080", "0:1", "eng", "und", "default"} {
		if !strings.Contains(out, want) {
			t.Errorf("catalog output missing %q:\n%s", want, out)
		}
	}

	selected, err := selection.Resolve(cat, []selection.Rule{selection.IncludeAll()})
	if err != nil {
		t.Fatal(err)
	}
	v, err := conflict.Validate(selected, container.Matroska)
	if err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	WritePlan(&buf, mapper.Map(v))
	out = buf.String()
	if !strings.Contains(out, "Output: matroska, 3 stream(s)") {
		t.Errorf("plan header missing:\n%s", out)
	}
	if !strings.Contains(out, "note: default_demoted") {
		t.Errorf("plan should list the demoted default:\n%s", out)
	}
}

func TestWriteConflict(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	WriteConflict(&buf, &muxerr.ContainerConflictError{
		Container: "webm",
		Offenders: []muxerr.Offender{
			{Stream: media.StreamID{Source: 0, Index: 0}, Type: media.Video, Codec: media.CodecVP9, Reason: muxerr.TooManyStreams, Limit: 1},
			{Stream: media.StreamID{Source: 1, Index: 0}, Type: media.Video, Codec: media.CodecVP9, Reason: muxerr.TooManyStreams, Limit: 1},
		},
	})
	out := buf.String()
	if strings.Count(out, "too_many_streams (limit 1)") != 2 {
		t.Errorf("conflict output:\n%s", out)
	}
}

func TestTableTruncatesLongCells(t *testing.T) {
	tb := table{header: []string{"A"}}
	tb.add(plain(strings.Repeat("x", maxCellWidth+10)))
	var buf bytes.Buffer
	tb.write(&buf)
	if !strings.Contains(buf.String(), "…") {
		t.Errorf("long cell not truncated:\n%s", buf.String())
	}
}
