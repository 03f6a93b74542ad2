package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/backmassage/streammux/internal/catalog"
	"github.com/backmassage/streammux/internal/mapper"
	"github.com/backmassage/streammux/internal/media"
	"github.com/backmassage/streammux/internal/muxerr"
)

const maxCellWidth = 40

var (
	headerColor  = color.New(color.Bold)
	defaultColor = color.New(color.FgHiGreen)
	forcedColor  = color.New(color.FgHiYellow)
	errorColor   = color.New(color.FgHiRed)
	noteColor    = color.New(color.FgHiCyan)
)

// cell is one table value with an optional color. Width is measured on the
// plain text, so padding is applied before coloring.
type cell struct {
	text  string
	color *color.Color
}

func plain(s string) cell { return cell{text: s} }

type table struct {
	header []string
	rows   [][]cell
}

func (t *table) add(cells ...cell) { t.rows = append(t.rows, cells) }

func (t *table) write(w io.Writer) {
	widths := make([]int, len(t.header))
	for i, h := range t.header {
		widths[i] = len(h)
	}
	for _, r := range t.rows {
		for i, c := range r {
			if n := min(len(c.text), maxCellWidth); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var hdr strings.Builder
	for i, h := range t.header {
		fmt.Fprintf(&hdr, "  %-*s", widths[i], h)
	}
	line := strings.TrimRight(hdr.String(), " ")
	headerColor.Fprintln(w, line)
	fmt.Fprintln(w, "  "+strings.Repeat("─", len(line)-2))

	for _, r := range t.rows {
		var b strings.Builder
		for i, c := range r {
			text := c.text
			if len(text) > widths[i] {
				text = text[:widths[i]-1] + "…"
			}
			padded := fmt.Sprintf("%-*s", widths[i], text)
			if c.color != nil {
				padded = c.color.Sprint(padded)
			}
			b.WriteString("  " + padded)
		}
		fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}
}

func langOrUnd(lang string) string {
	if lang == "" {
		return "und"
	}
	return lang
}

func dispositionCell(d media.Disposition) cell {
	switch {
	case d.Has(media.DispositionDefault):
		return cell{text: d.String(), color: defaultColor}
	case d.Has(media.DispositionForced):
		return cell{text: d.String(), color: forcedColor}
	}
	return plain("")
}

func paramsLabel(s media.StreamInfo) string {
	p := s.Params
	switch s.Type {
	case media.Video:
		if p.Width > 0 && p.Height > 0 {
			return fmt.Sprintf("%dx%d", p.Width, p.Height)
		}
	case media.Audio:
		if p.SampleRate > 0 {
			return fmt.Sprintf("%d Hz %dch", p.SampleRate, p.Channels)
		}
	}
	return ""
}

// WriteCatalog lists every stream of every source.
func WriteCatalog(w io.Writer, cat *catalog.Catalog) {
	for src, name := range cat.Sources() {
		fmt.Fprintf(w, "Source %d: %s\n", src, name)
		t := table{header: []string{"Stream", "Type", "Codec", "Lang", "Disposition", "Params", "Title"}}
		for _, s := range cat.SourceStreams(src) {
			t.add(
				plain(s.ID.String()),
				plain(s.Type.String()),
				plain(s.Codec.String()),
				plain(langOrUnd(s.Language)),
				dispositionCell(s.Disposition),
				plain(paramsLabel(s.StreamInfo)),
				plain(s.Title),
			)
		}
		t.write(w)
		fmt.Fprintln(w)
	}
}

// WritePlan lists the output streams in order, with the rule that selected
// each one, followed by the mapper's notes.
func WritePlan(w io.Writer, plan *mapper.MuxPlan) {
	fmt.Fprintf(w, "Output: %s, %d stream(s)\n", plan.Kind(), plan.Len())
	t := table{header: []string{"Out", "Input", "Type", "Codec", "Lang", "Disposition", "Rule"}}
	for _, e := range plan.Entries() {
		s := e.Stream
		t.add(
			plain(fmt.Sprint(e.Output)),
			plain(s.ID.String()),
			plain(s.Type.String()),
			plain(s.Codec.String()),
			plain(langOrUnd(s.Language)),
			dispositionCell(e.Disposition),
			plain(fmt.Sprintf("#%d %s", s.RuleIndex, s.Rule)),
		)
	}
	t.write(w)
	for _, n := range plan.Notes() {
		noteColor.Fprintf(w, "  note: %s\n", n)
	}
}

// WriteConflict lists every stream the target container rejected.
func WriteConflict(w io.Writer, err *muxerr.ContainerConflictError) {
	fmt.Fprintf(w, "Container %s cannot hold %d selected stream(s):\n", err.Container, len(err.Offenders))
	t := table{header: []string{"Stream", "Type", "Codec", "Reason"}}
	for _, o := range err.Offenders {
		reason := o.Reason.String()
		if o.Reason == muxerr.TooManyStreams {
			reason += fmt.Sprintf(" (limit %d)", o.Limit)
		}
		t.add(
			plain(o.Stream.String()),
			plain(o.Type.String()),
			plain(o.Codec.String()),
			cell{text: reason, color: errorColor},
		)
	}
	t.write(w)
}
