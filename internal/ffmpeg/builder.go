package ffmpeg

import (
	"fmt"
	"strings"

	"github.com/backmassage/streammux/internal/container"
	"github.com/backmassage/streammux/internal/mapper"
	"github.com/backmassage/streammux/internal/media"
)

// Options tune the rendered command.
type Options struct {
	// Overwrite adds -y; otherwise -n makes ffmpeg refuse an existing output.
	Overwrite bool

	// Verbose selects -loglevel info instead of error.
	Verbose bool
}

// formatNames maps container kinds to ffmpeg muxer names.
var formatNames = map[container.Kind]string{
	container.Matroska: "matroska",
	container.WebM:     "webm",
	container.MPEGTS:   "mpegts",
}

// Build returns the ffmpeg argument slice (argv[0] included) that copies the
// plan's streams from inputs into output. inputs[i] must be source i of the
// catalog the plan was built from, so every -map source index lines up.
func Build(plan *mapper.MuxPlan, inputs []string, output string, opts Options) []string {
	args := make([]string, 0, 16+len(inputs)*2+plan.Len()*6)

	// --- Preamble ---
	args = append(args, "ffmpeg", "-hide_banner", "-nostdin")
	if opts.Overwrite {
		args = append(args, "-y")
	} else {
		args = append(args, "-n")
	}
	if opts.Verbose {
		args = append(args, "-loglevel", "info")
	} else {
		args = append(args, "-loglevel", "error")
	}

	// --- Inputs ---
	for _, in := range inputs {
		args = append(args, "-i", in)
	}

	// --- Stream maps, in output order ---
	for _, e := range plan.Entries() {
		args = append(args, "-map", fmt.Sprintf("%d:%d", e.Stream.ID.Source, e.Stream.ID.Index))
	}
	args = append(args, "-c", "copy", "-max_interleave_delta", "0")

	// --- Per-output-stream dispositions and language ---
	for _, e := range plan.Entries() {
		args = append(args, fmt.Sprintf("-disposition:%d", e.Output), disposition(e.Disposition))
		if e.Stream.Language != "" {
			args = append(args, fmt.Sprintf("-metadata:s:%d", e.Output), "language="+e.Stream.Language)
		}
	}

	// --- Output ---
	if name, ok := formatNames[plan.Kind()]; ok {
		args = append(args, "-f", name)
	}
	return append(args, output)
}

// disposition renders d in ffmpeg's -disposition syntax.
func disposition(d media.Disposition) string {
	return d.String()
}

// Quote joins args into one shell-pasteable line, single-quoting any
// argument that is not made of plainly safe characters.
func Quote(args []string) string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = quoteArg(a)
	}
	return strings.Join(out, " ")
}

func quoteArg(a string) string {
	if a == "" {
		return "''"
	}
	safe := true
	for _, r := range a {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:=+,@%", r)) {
			safe = false
			break
		}
	}
	if safe {
		return a
	}
	return "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
}
