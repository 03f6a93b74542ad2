// Package mkv writes Matroska and WebM outputs with ebml-go's SimpleBlock
// writer. Timestamps are written in milliseconds (the default 1ms
// TimecodeScale); track language and default/forced flags are carried into
// the TrackEntry.
package mkv

import (
	"io"
	"sync"

	"github.com/at-wat/ebml-go/mkvcore"
	"github.com/at-wat/ebml-go/webm"
	"github.com/pkg/errors"

	"github.com/backmassage/streammux/internal/container"
	"github.com/backmassage/streammux/internal/media"
)

// Matroska track types.
const (
	trackTypeVideo    = 1
	trackTypeAudio    = 2
	trackTypeSubtitle = 17
)

var videoCodecIDs = map[media.Codec]string{
	media.CodecH264:       "V_MPEG4/ISO/AVC",
	media.CodecHEVC:       "V_MPEGH/ISO/HEVC",
	media.CodecAV1:        "V_AV1",
	media.CodecVP8:        "V_VP8",
	media.CodecVP9:        "V_VP9",
	media.CodecMPEG2Video: "V_MPEG2",
	media.CodecMPEG4:      "V_MPEG4/ISO/ASP",
}

var audioCodecIDs = map[media.Codec]string{
	media.CodecAAC:    "A_AAC",
	media.CodecMP3:    "A_MPEG/L3",
	media.CodecAC3:    "A_AC3",
	media.CodecEAC3:   "A_EAC3",
	media.CodecOpus:   "A_OPUS",
	media.CodecVorbis: "A_VORBIS",
	media.CodecFLAC:   "A_FLAC",
	media.CodecDTS:    "A_DTS",
	media.CodecTrueHD: "A_TRUEHD",
	media.CodecPCM:    "A_PCM/INT/LIT",
}

var subtitleCodecIDs = map[media.Codec]string{
	media.CodecSubRip: "S_TEXT/UTF8",
	media.CodecASS:    "S_TEXT/ASS",
	media.CodecWebVTT: "S_TEXT/WEBVTT",
	media.CodecPGS:    "S_HDMV/PGS",
	media.CodecDVDSub: "S_VOBSUB",
}

// CodecID returns the Matroska CodecID for a stream of type t, or "" when
// the writer has no mapping. WebM uses the D_WEBVTT form for WebVTT.
func CodecID(kind container.Kind, t media.MediaType, c media.Codec) string {
	switch t {
	case media.Video:
		return videoCodecIDs[c]
	case media.Audio:
		return audioCodecIDs[c]
	case media.Subtitle:
		if kind == container.WebM && c == media.CodecWebVTT {
			return "D_WEBVTT/SUBTITLES"
		}
		return subtitleCodecIDs[c]
	}
	return ""
}

// trackEntry mirrors webm.TrackEntry with the Matroska fields it lacks.
type trackEntry struct {
	Name         string      `ebml:"Name,omitempty"`
	TrackNumber  uint64      `ebml:"TrackNumber"`
	TrackUID     uint64      `ebml:"TrackUID"`
	CodecID      string      `ebml:"CodecID"`
	CodecPrivate []byte      `ebml:"CodecPrivate,omitempty"`
	TrackType    uint64      `ebml:"TrackType"`
	Language     string      `ebml:"Language,omitempty"`
	FlagDefault  uint64      `ebml:"FlagDefault"`
	FlagForced   uint64      `ebml:"FlagForced"`
	Video        *webm.Video `ebml:"Video,omitempty"`
	Audio        *webm.Audio `ebml:"Audio,omitempty"`
}

// Muxer implements container.Muxer for Matroska and WebM.
type Muxer struct {
	kind    container.Kind
	writers []mkvcore.BlockWriteCloser
	out     *doneCloser
	sticky  *stickyWriter

	mu    sync.Mutex
	fatal error
}

// NewMatroska returns a muxer producing a Matroska document.
func NewMatroska() container.Muxer { return &Muxer{kind: container.Matroska} }

// NewWebM returns a muxer producing a WebM document.
func NewWebM() container.Muxer { return &Muxer{kind: container.WebM} }

// doneCloser hands ebml-go a closable view of the output without letting it
// close the file the sink owns. ebml-go writes from its own goroutine and
// closes the writer once every track is closed; done marks that point.
type doneCloser struct {
	io.Writer
	once sync.Once
	done chan struct{}
}

func (d *doneCloser) Close() error {
	d.once.Do(func() { close(d.done) })
	return nil
}

// stickyWriter records the first write error and discards every later
// write, so ebml-go's writer goroutine never sees a failure and keeps
// receiving frames. The muxer reports the recorded error instead.
type stickyWriter struct {
	w io.Writer

	mu  sync.Mutex
	err error
}

func (s *stickyWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return len(p), nil
	}
	if _, err := s.w.Write(p); err != nil {
		s.err = err
	}
	return len(p), nil
}

func (s *stickyWriter) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (m *Muxer) setFatal(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fatal == nil {
		m.fatal = err
	}
}

// err returns the first output or encoder failure.
func (m *Muxer) err() error {
	if m.sticky != nil {
		if err := m.sticky.Err(); err != nil {
			return errors.Wrapf(err, "mkv: %s output", m.kind)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fatal
}

func (m *Muxer) Begin(w io.Writer, streams []container.StreamDecl) error {
	tracks := make([]mkvcore.TrackDescription, len(streams))
	for i, s := range streams {
		te, err := m.trackEntry(uint64(i+1), s)
		if err != nil {
			return err
		}
		tracks[i] = mkvcore.TrackDescription{TrackNumber: uint64(i + 1), TrackEntry: te}
	}

	header := *webm.DefaultEBMLHeader
	if m.kind == container.Matroska {
		header.DocType = "matroska"
		header.DocTypeVersion = 4
		header.DocTypeReadVersion = 2
	}
	m.sticky = &stickyWriter{w: w}
	m.out = &doneCloser{Writer: m.sticky, done: make(chan struct{})}
	writers, err := mkvcore.NewSimpleBlockWriter(m.out, tracks,
		mkvcore.WithEBMLHeader(&header),
		mkvcore.WithSegmentInfo(webm.DefaultSegmentInfo),
		mkvcore.WithOnFatalHandler(m.setFatal),
	)
	if err != nil {
		return errors.Wrapf(err, "mkv: %s header", m.kind)
	}
	m.writers = writers
	return m.err()
}

func (m *Muxer) trackEntry(num uint64, s container.StreamDecl) (trackEntry, error) {
	id := CodecID(m.kind, s.Type, s.Codec)
	if id == "" {
		return trackEntry{}, errors.Errorf("mkv: no %s codec id for %s/%s", m.kind, s.Type, s.Codec)
	}
	te := trackEntry{
		Name:         s.Title,
		TrackNumber:  num,
		TrackUID:     num,
		CodecID:      id,
		CodecPrivate: s.Params.Extradata,
		Language:     s.Language,
	}
	if s.Disposition.Has(media.DispositionDefault) {
		te.FlagDefault = 1
	}
	if s.Disposition.Has(media.DispositionForced) {
		te.FlagForced = 1
	}
	switch s.Type {
	case media.Video:
		te.TrackType = trackTypeVideo
		te.Video = &webm.Video{PixelWidth: uint64(s.Params.Width), PixelHeight: uint64(s.Params.Height)}
	case media.Audio:
		te.TrackType = trackTypeAudio
		te.Audio = &webm.Audio{SamplingFrequency: float64(s.Params.SampleRate), Channels: uint64(s.Params.Channels)}
	case media.Subtitle:
		te.TrackType = trackTypeSubtitle
	}
	return te, nil
}

func (m *Muxer) WritePacket(index int, pkt media.Packet) error {
	if err := m.err(); err != nil {
		return err
	}
	if index < 0 || index >= len(m.writers) {
		return errors.Errorf("mkv: no track for output %d", index)
	}
	ms := media.Rescale(pkt.PTS, pkt.TimeBase.OrDefault(media.TimeBaseMilli), media.TimeBaseMilli)
	if _, err := m.writers[index].Write(pkt.Keyframe, ms, pkt.Data); err != nil {
		return errors.Wrapf(err, "mkv: write track %d", index+1)
	}
	return m.err()
}

// End closes every track and waits for ebml-go to drain its queue into the
// output.
func (m *Muxer) End() error {
	var first error
	for i, w := range m.writers {
		if err := w.Close(); err != nil && first == nil {
			first = errors.Wrapf(err, "mkv: close track %d", i+1)
		}
	}
	if m.out != nil && len(m.writers) > 0 {
		<-m.out.done
	}
	if err := m.err(); err != nil {
		return err
	}
	return first
}
