package ffmpeg

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/backmassage/streammux/internal/catalog"
	"github.com/backmassage/streammux/internal/conflict"
	"github.com/backmassage/streammux/internal/container"
	"github.com/backmassage/streammux/internal/mapper"
	"github.com/backmassage/streammux/internal/media"
	"github.com/backmassage/streammux/internal/selection"
)

func testPlan(t *testing.T, exprs ...string) *mapper.MuxPlan {
	t.Helper()
	cat := catalog.New([]string{"a.ts", "b.mkv"}, [][]media.StreamInfo{
		{
			{Type: media.Video, Codec: media.CodecH264, Disposition: media.DispositionDefault},
			{Type: media.Audio, Codec: media.CodecAAC, Language: "eng"},
		},
		{
			{Type: media.Subtitle, Codec: media.CodecSubRip, Language: "fre", Disposition: media.DispositionForced},
		},
	})
	rules, err := selection.ParseRules(exprs)
	if err != nil {
		t.Fatal(err)
	}
	selected, err := selection.Resolve(cat, rules)
	if err != nil {
		t.Fatal(err)
	}
	v, err := conflict.Validate(selected, container.Matroska)
	if err != nil {
		t.Fatal(err)
	}
	return mapper.Map(v)
}

func TestBuild(t *testing.T) {
	plan := testPlan(t, "+s", "+v", "+a")
	got := Build(plan, []string{"a.ts", "b.mkv"}, "out.mkv", Options{})
	want := []string{
		"ffmpeg", "-hide_banner", "-nostdin", "-n", "-loglevel", "error",
		"-i", "a.ts", "-i", "b.mkv",
		"-map", "1:0", "-map", "0:0", "-map", "0:1",
		"-c", "copy", "-max_interleave_delta", "0",
		"-disposition:0", "forced", "-metadata:s:0", "language=fre",
		"-disposition:1", "default",
		"-disposition:2", "0", "-metadata:s:2", "language=eng",
		"-f", "matroska",
		"out.mkv",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Build() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_Options(t *testing.T) {
	plan := testPlan(t, "+v")
	got := Build(plan, []string{"a.ts", "b.mkv"}, "out.mkv", Options{Overwrite: true, Verbose: true})
	if got[3] != "-y" || got[5] != "info" {
		t.Errorf("Build() preamble = %v", got[:6])
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{[]string{"ffmpeg", "-i", "in.ts"}, "ffmpeg -i in.ts"},
		{[]string{"-i", "My Show.ts"}, "-i 'My Show.ts'"},
		{[]string{"it's"}, `'it'\''s'`},
		{[]string{""}, "''"},
		{[]string{"language=eng", "0:1"}, "language=eng 0:1"},
	}
	for _, tt := range tests {
		if got := Quote(tt.in); got != tt.want {
			t.Errorf("Quote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
