// Package tsdemux reads MPEG transport streams with go-astits. Streams are
// enumerated from the first PMT; each packet cursor re-reads the input from
// the start and keeps only its own PID, so cursors never share state.
package tsdemux

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/asticode/go-astits"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/pkg/errors"

	"github.com/backmassage/streammux/internal/demux"
	"github.com/backmassage/streammux/internal/media"
)

// Extensions lists the file extensions this demuxer claims.
var Extensions = []string{".ts", ".m2ts", ".mts", ".trp"}

const ptsWrap = int64(1) << 33

// ErrNoPMT is returned when the input holds no program map table.
var ErrNoPMT = errors.New("tsdemux: no PMT found")

type streamKind struct {
	typ   media.MediaType
	codec media.Codec
}

var streamKinds = map[astits.StreamType]streamKind{
	astits.StreamType(0x01): {media.Video, media.CodecMPEG2Video},
	astits.StreamType(0x02): {media.Video, media.CodecMPEG2Video},
	astits.StreamType(0x03): {media.Audio, media.CodecMP3},
	astits.StreamType(0x04): {media.Audio, media.CodecMP3},
	astits.StreamType(0x0F): {media.Audio, media.CodecAAC},
	astits.StreamType(0x10): {media.Video, media.CodecMPEG4},
	astits.StreamType(0x11): {media.Audio, media.CodecAAC},
	astits.StreamType(0x15): {media.Data, media.CodecTimedID3},
	astits.StreamType(0x1B): {media.Video, media.CodecH264},
	astits.StreamType(0x24): {media.Video, media.CodecHEVC},
	astits.StreamType(0x81): {media.Audio, media.CodecAC3},
	astits.StreamType(0x86): {media.Data, media.CodecSCTE35},
	astits.StreamType(0x87): {media.Audio, media.CodecEAC3},
}

// streamTypePrivatePES carries any private payload; its descriptors say
// which one.
const streamTypePrivatePES = astits.StreamType(0x06)

// Registration format identifiers.
const (
	formatAC3  = uint32('A')<<24 | uint32('C')<<16 | uint32('-')<<8 | uint32('3')
	formatEAC3 = uint32('E')<<24 | uint32('A')<<16 | uint32('C')<<8 | uint32('3')
	formatKLVA = uint32('K')<<24 | uint32('L')<<16 | uint32('V')<<8 | uint32('A')
)

// privateKind classifies a private PES stream from its descriptors.
// Anything unrecognized, teletext included, stays unknown.
func privateKind(descs []*astits.Descriptor) streamKind {
	for _, d := range descs {
		switch {
		case d.AC3 != nil:
			return streamKind{media.Audio, media.CodecAC3}
		case d.EnhancedAC3 != nil:
			return streamKind{media.Audio, media.CodecEAC3}
		case d.Subtitling != nil:
			return streamKind{media.Subtitle, media.CodecDVBSub}
		case d.Registration != nil:
			switch d.Registration.FormatIdentifier {
			case formatAC3:
				return streamKind{media.Audio, media.CodecAC3}
			case formatEAC3:
				return streamKind{media.Audio, media.CodecEAC3}
			case formatKLVA:
				return streamKind{media.Data, media.CodecKLV}
			}
		}
	}
	return streamKind{media.TypeUnknown, media.CodecUnknown}
}

// Opener returns a fresh reader positioned at the start of the input.
type Opener func() (io.ReadCloser, error)

// Demuxer opens transport stream files.
type Demuxer struct{}

// New returns a Demuxer.
func New() *Demuxer { return &Demuxer{} }

// Open implements demux.Demuxer.
func (d *Demuxer) Open(ctx context.Context, source string) (demux.Handle, error) {
	return OpenReader(ctx, source, func() (io.ReadCloser, error) {
		return os.Open(source)
	})
}

// OpenReader opens a transport stream served by open under the given name.
// The PMT is read immediately, so an unreadable input fails here.
func OpenReader(ctx context.Context, name string, open Opener) (demux.Handle, error) {
	rc, err := open()
	if err != nil {
		return nil, errors.Wrapf(err, "tsdemux: open %s", name)
	}
	defer rc.Close()

	es, err := scanPMT(ctx, rc)
	if err != nil {
		return nil, errors.Wrapf(err, "tsdemux: %s", name)
	}
	return &handle{name: name, open: open, streams: es}, nil
}

type elementaryStream struct {
	pid  uint16
	info media.StreamInfo
}

func scanPMT(ctx context.Context, r io.Reader) ([]elementaryStream, error) {
	dmx := astits.NewDemuxer(ctx, r)
	for {
		d, err := dmx.NextData()
		if err != nil {
			if errors.Is(err, astits.ErrNoMorePackets) {
				return nil, ErrNoPMT
			}
			return nil, err
		}
		if d.PMT != nil {
			return fromPMT(d.PMT), nil
		}
	}
}

func fromPMT(pmt *astits.PMTData) []elementaryStream {
	out := make([]elementaryStream, 0, len(pmt.ElementaryStreams))
	for _, es := range pmt.ElementaryStreams {
		kind, ok := streamKinds[es.StreamType]
		switch {
		case es.StreamType == streamTypePrivatePES:
			kind = privateKind(es.ElementaryStreamDescriptors)
		case !ok:
			kind = streamKind{media.TypeUnknown, media.CodecUnknown}
		}
		info := media.StreamInfo{
			Type:   kind.typ,
			Codec:  kind.codec,
			Params: media.CodecParams{TimeBase: media.TimeBaseMPEG},
		}
		for _, desc := range es.ElementaryStreamDescriptors {
			if desc.ISO639LanguageAndAudioType != nil {
				info.Language = strings.TrimRight(string(desc.ISO639LanguageAndAudioType.Language), "\x00 ")
			}
		}
		out = append(out, elementaryStream{pid: es.ElementaryPID, info: info})
	}
	return out
}

type handle struct {
	name    string
	open    Opener
	streams []elementaryStream
	closed  bool
}

func (h *handle) Source() string { return h.name }

func (h *handle) Streams(ctx context.Context) ([]media.StreamInfo, error) {
	if h.closed {
		return nil, demux.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos := make([]media.StreamInfo, len(h.streams))
	for i, es := range h.streams {
		infos[i] = es.info
	}
	return infos, nil
}

func (h *handle) OpenStream(ctx context.Context, index int) (demux.PacketReader, error) {
	if h.closed {
		return nil, demux.ErrClosed
	}
	if index < 0 || index >= len(h.streams) {
		return nil, errors.Wrapf(demux.ErrNoStream, "%s:%d", h.name, index)
	}
	rc, err := h.open()
	if err != nil {
		return nil, errors.Wrapf(err, "tsdemux: reopen %s", h.name)
	}
	es := h.streams[index]
	return &reader{
		rc:    rc,
		dmx:   astits.NewDemuxer(ctx, rc),
		pid:   es.pid,
		codec: es.info.Codec,
		audio: es.info.Type == media.Audio,
	}, nil
}

func (h *handle) Close() error {
	h.closed = true
	return nil
}

type reader struct {
	rc    io.ReadCloser
	dmx   *astits.Demuxer
	pid   uint16
	codec media.Codec
	audio bool

	// Unwrapping state for the 33-bit clock.
	last   int64
	offset int64
	seen   bool
}

func (r *reader) ReadPacket() (media.Packet, error) {
	for {
		d, err := r.dmx.NextData()
		if err != nil {
			if errors.Is(err, astits.ErrNoMorePackets) {
				return media.Packet{}, io.EOF
			}
			return media.Packet{}, errors.Wrapf(err, "tsdemux: pid %#x", r.pid)
		}
		if d.PES == nil || d.PID != r.pid {
			continue
		}
		return r.packet(d), nil
	}
}

func (r *reader) packet(d *astits.DemuxerData) media.Packet {
	pkt := media.Packet{Data: d.PES.Data, TimeBase: media.TimeBaseMPEG}
	if oh := d.PES.Header.OptionalHeader; oh != nil && oh.PTS != nil {
		pkt.PTS = r.unwrap(oh.PTS.Base)
		pkt.DTS = pkt.PTS
		if oh.DTS != nil {
			pkt.DTS = pkt.PTS - wrapDelta(oh.PTS.Base, oh.DTS.Base)
		}
	} else {
		pkt.PTS, pkt.DTS = r.last+r.offset, r.last+r.offset
	}

	switch {
	case r.audio:
		pkt.Keyframe = true
	case d.FirstPacket != nil && d.FirstPacket.AdaptationField != nil && d.FirstPacket.AdaptationField.RandomAccessIndicator:
		pkt.Keyframe = true
	case r.codec == media.CodecH264:
		pkt.Keyframe = hasIDR(pkt.Data)
	}
	return pkt
}

// unwrap extends a 33-bit timestamp to a monotonic 64-bit one, assuming
// consecutive packets are less than half the clock range apart.
func (r *reader) unwrap(ts int64) int64 {
	if r.seen {
		switch {
		case ts < r.last && r.last-ts > ptsWrap/2:
			r.offset += ptsWrap
		case ts > r.last && ts-r.last > ptsWrap/2:
			r.offset -= ptsWrap
		}
	}
	r.seen = true
	r.last = ts
	return ts + r.offset
}

// wrapDelta returns pts-dts modulo the 33-bit clock.
func wrapDelta(pts, dts int64) int64 {
	d := (pts - dts) % ptsWrap
	if d < 0 {
		d += ptsWrap
	}
	return d
}

func hasIDR(data []byte) bool {
	var au h264.AnnexB
	if au.Unmarshal(data) != nil {
		return false
	}
	for _, n := range au {
		if len(n) > 0 && h264.NALUType(n[0]&0x1F) == h264.NALUTypeIDR {
			return true
		}
	}
	return false
}

func (r *reader) Close() error {
	return r.rc.Close()
}
