package pipeline

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/backmassage/streammux/internal/catalog"
	"github.com/backmassage/streammux/internal/config"
	"github.com/backmassage/streammux/internal/demux"
	"github.com/backmassage/streammux/internal/display"
	"github.com/backmassage/streammux/internal/logging"
	"github.com/backmassage/streammux/internal/media"
	"github.com/backmassage/streammux/internal/muxerr"
	"github.com/backmassage/streammux/internal/probe"
	"github.com/backmassage/streammux/internal/term"
)

var (
	outlierColor = color.New(color.FgHiYellow)
	extremeColor = color.New(color.FgHiRed)
)

// fileRow holds the per-source data for the bitrate table.
type fileRow struct {
	Name       string
	Streams    int
	VideoCodec string
	Resolution string
	Range      string
	VideoKbps  int64
	AudioCodec string
	AudioKbps  int64
}

// Analyze enumerates every input, prints the combined stream catalog, then a
// per-source codec/bitrate table with statistical outlier highlighting.
// Bitrates are only known for inputs enumerated through ffprobe. Sources
// that cannot be opened are skipped with a warning.
func Analyze(ctx context.Context, cfg *config.Config, log *logging.Logger, deps Deps) error {
	deps.fill(cfg)

	files, err := ExpandInputs(cfg.Inputs)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return ErrNoInputs
	}

	total := len(files)
	log.Info("Analyzing %d source(s) …", total)

	isTTY := term.IsTerminal(os.Stdout) && deps.Out == io.Writer(os.Stdout)
	var (
		handles []demux.Handle
		rows    []fileRow
		skipped int
	)
	defer func() {
		for _, h := range handles {
			_ = h.Close()
		}
	}()

	for i, path := range files {
		if ctx.Err() != nil {
			if isTTY {
				clearProgress(deps.Out)
			}
			return ctx.Err()
		}
		printProgress(deps.Out, isTTY, i+1, total, skipped, filepath.Base(path))

		h, err := deps.Demuxer.Open(ctx, path)
		if err != nil {
			skipped++
			if isTTY {
				clearProgress(deps.Out)
			}
			log.Warn("Skip (open failed): %v", &muxerr.SourceOpenError{Source: i, Path: path, Err: err})
			continue
		}
		handles = append(handles, h)
	}
	if isTTY {
		clearProgress(deps.Out)
	}
	if len(handles) == 0 {
		log.Warn("No source could be opened")
		return nil
	}

	cat, err := catalog.Build(ctx, handles)
	if err != nil {
		return err
	}
	display.WriteCatalog(deps.Out, cat)

	var videoKbps, audioKbps []float64
	for src, h := range handles {
		row := sourceRow(h, cat.SourceStreams(src))
		rows = append(rows, row)
		if row.VideoKbps > 0 {
			videoKbps = append(videoKbps, float64(row.VideoKbps))
		}
		if row.AudioKbps > 0 {
			audioKbps = append(audioKbps, float64(row.AudioKbps))
		}
	}

	vStats := computeStats(videoKbps)
	aStats := computeStats(audioKbps)
	printAnalysisTable(deps.Out, rows, vStats, aStats)
	printAnalysisSummary(log, rows, vStats, aStats)
	return nil
}

// sourceRow summarizes the first video and first audio stream of a source.
// Bitrates, profiles, resolution, dynamic range and channel layouts come
// from ffprobe details when the handle has them.
func sourceRow(h demux.Handle, streams []media.InputStream) fileRow {
	row := fileRow{Name: filepath.Base(h.Source()), Streams: len(streams)}
	var res *probe.Result
	if ph, ok := h.(*probe.Handle); ok {
		res = ph.Result
	}
	detail := func(idx int) probe.StreamDetail {
		if res != nil && idx < len(res.Details) {
			return res.Details[idx]
		}
		return probe.StreamDetail{}
	}
	for _, s := range streams {
		d := detail(s.ID.Index)
		switch {
		case s.Type == media.Video && row.VideoCodec == "":
			row.VideoCodec = withSuffix(s.Codec.String(), d.Profile)
			row.VideoKbps = d.BitRate / 1000
			if res != nil {
				row.Resolution = res.Resolution()
				if d.Interlaced() && row.Resolution != "unknown" {
					row.Resolution += "i"
				}
				row.Range = d.HDR()
			}
		case s.Type == media.Audio && row.AudioCodec == "":
			row.AudioCodec = withSuffix(s.Codec.String(), d.ChannelLayout)
			row.AudioKbps = d.BitRate / 1000
		}
	}
	return row
}

func withSuffix(s, suffix string) string {
	if suffix == "" {
		return s
	}
	return s + " " + suffix
}

// iqrBounds holds the IQR-based thresholds for outlier classification.
type iqrBounds struct {
	q1, q3    float64
	outlierLo float64 // Q1 - 1.5*IQR
	outlierHi float64 // Q3 + 1.5*IQR
	extremeLo float64 // Q1 - 3.0*IQR
	extremeHi float64 // Q3 + 3.0*IQR
	valid     bool
}

func computeStats(vals []float64) iqrBounds {
	if len(vals) < 4 {
		return iqrBounds{}
	}

	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	q1 := percentile(sorted, 25)
	q3 := percentile(sorted, 75)
	iqr := q3 - q1

	return iqrBounds{
		q1:        q1,
		q3:        q3,
		outlierLo: q1 - 1.5*iqr,
		outlierHi: q3 + 1.5*iqr,
		extremeLo: q1 - 3.0*iqr,
		extremeHi: q3 + 3.0*iqr,
		valid:     iqr > 0,
	}
}

// classify returns "" (normal), "outlier", or "extreme" for a value.
func (b *iqrBounds) classify(v float64) string {
	if !b.valid || v <= 0 {
		return ""
	}
	if v < b.extremeLo || v > b.extremeHi {
		return "extreme"
	}
	if v < b.outlierLo || v > b.outlierHi {
		return "outlier"
	}
	return ""
}

func printAnalysisTable(w io.Writer, rows []fileRow, vStats, aStats iqrBounds) {
	nameW := len("Source")
	vcW := len("Video")
	resW := len("Resolution")
	rgW := len("Range")
	vbW := len("Video Rate")
	acW := len("Audio")
	abW := len("Audio Rate")

	for _, r := range rows {
		nameW = max(nameW, len(r.Name))
		vcW = max(vcW, len(r.VideoCodec))
		resW = max(resW, len(r.Resolution))
		rgW = max(rgW, len(r.Range))
		vbW = max(vbW, len(fmtKbps(r.VideoKbps)))
		acW = max(acW, len(r.AudioCodec))
		abW = max(abW, len(fmtKbps(r.AudioKbps)))
	}
	nameW = min(nameW, 50)

	header := fmt.Sprintf("  %-*s  %7s  %-*s  %-*s  %-*s  %-*s  %-*s  %-*s",
		nameW, "Source",
		"Streams",
		vcW, "Video",
		resW, "Resolution",
		rgW, "Range",
		vbW, "Video Rate",
		acW, "Audio",
		abW, "Audio Rate",
	)
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, "  "+strings.Repeat("─", len(header)-2))

	for _, r := range rows {
		name := r.Name
		if len(name) > nameW {
			name = name[:nameW-1] + "…"
		}
		vClass := vStats.classify(float64(r.VideoKbps))
		aClass := aStats.classify(float64(r.AudioKbps))

		fmt.Fprintf(w, "  %-*s  %7d  %-*s  %-*s  %-*s  %s  %-*s  %s  %s\n",
			nameW, name,
			r.Streams,
			vcW, r.VideoCodec,
			resW, r.Resolution,
			rgW, r.Range,
			colorPad(fmtKbps(r.VideoKbps), vbW, vClass),
			acW, r.AudioCodec,
			colorPad(fmtKbps(r.AudioKbps), abW, aClass),
			formatFlag(worstFlag(vClass, aClass)),
		)
	}
	fmt.Fprintln(w)
}

func printAnalysisSummary(log *logging.Logger, rows []fileRow, vStats, aStats iqrBounds) {
	var outliers, extremes int
	for _, r := range rows {
		switch worstFlag(vStats.classify(float64(r.VideoKbps)), aStats.classify(float64(r.AudioKbps))) {
		case "extreme":
			extremes++
		case "outlier":
			outliers++
		}
	}

	log.Info("Analyzed %d source(s)", len(rows))
	if vStats.valid {
		log.Info("  Video bitrate IQR: %.0f – %.0f kbps (outlier < %.0f or > %.0f)",
			vStats.q1, vStats.q3, vStats.outlierLo, vStats.outlierHi)
	}
	if aStats.valid {
		log.Info("  Audio bitrate IQR: %.0f – %.0f kbps (outlier < %.0f or > %.0f)",
			aStats.q1, aStats.q3, aStats.outlierLo, aStats.outlierHi)
	}
	if outliers > 0 {
		log.Warn("  %d outlier(s) flagged [*]", outliers)
	}
	if extremes > 0 {
		log.Error("  %d extreme outlier(s) flagged [!]", extremes)
	}
	if outliers == 0 && extremes == 0 && (vStats.valid || aStats.valid) {
		log.Success("  No outliers detected")
	}
}

func fmtKbps(kbps int64) string {
	if kbps <= 0 {
		return "n/a"
	}
	return display.FormatBitrateLabel(kbps)
}

func worstFlag(classes ...string) string {
	worst := ""
	for _, c := range classes {
		if c == "extreme" {
			return "extreme"
		}
		if c == "outlier" {
			worst = "outlier"
		}
	}
	return worst
}

func formatFlag(flag string) string {
	switch flag {
	case "extreme":
		return extremeColor.Sprint("[!]")
	case "outlier":
		return outlierColor.Sprint("[*]")
	default:
		return ""
	}
}

// colorPad pads a plain string to width, then colors it, so escape bytes do
// not count toward the column width.
func colorPad(s string, width int, class string) string {
	padded := fmt.Sprintf("%-*s", width, s)
	switch class {
	case "extreme":
		return extremeColor.Sprint(padded)
	case "outlier":
		return outlierColor.Sprint(padded)
	default:
		return padded
	}
}

// printProgress shows a live open counter. On a TTY it writes an inline
// \r-overwritten line; otherwise it is a no-op.
func printProgress(w io.Writer, isTTY bool, current, total, skipped int, name string) {
	if !isTTY {
		return
	}
	status := fmt.Sprintf("  Opening [%d/%d] %d%% ", current, total, current*100/total)
	if skipped > 0 {
		status += fmt.Sprintf("(%d skipped) ", skipped)
	}
	if len(name) > 40 {
		name = name[:39] + "…"
	}
	status += name
	if len(status) < 80 {
		status += strings.Repeat(" ", 80-len(status))
	}
	fmt.Fprintf(w, "\r%s", status)
}

func clearProgress(w io.Writer) {
	fmt.Fprintf(w, "\r%s\r", strings.Repeat(" ", 80))
}

// percentile computes the p-th percentile using linear interpolation.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p / 100) * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi || hi >= len(sorted) {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
