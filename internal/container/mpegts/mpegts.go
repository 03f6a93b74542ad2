// Package mpegts writes MPEG transport streams with go-astits. Each output
// stream gets its own elementary PID starting at 0x100; timestamps are
// rescaled to the 90 kHz system clock and wrapped to 33 bits.
package mpegts

import (
	"context"
	"io"

	"github.com/asticode/go-astits"
	"github.com/pkg/errors"

	"github.com/backmassage/streammux/internal/container"
	"github.com/backmassage/streammux/internal/media"
)

// FirstPID is the PID of output stream 0.
const FirstPID uint16 = 0x100

const ptsWrap = int64(1) << 33

// PES stream ids.
const (
	streamIDVideo   uint8 = 0xE0
	streamIDAudio   uint8 = 0xC0
	streamIDPrivate uint8 = 0xBD
)

var streamTypes = map[media.Codec]astits.StreamType{
	media.CodecH264:       astits.StreamType(0x1B),
	media.CodecHEVC:       astits.StreamType(0x24),
	media.CodecMPEG2Video: astits.StreamType(0x02),
	media.CodecMPEG4:      astits.StreamType(0x10),
	media.CodecAAC:        astits.StreamType(0x0F),
	media.CodecMP3:        astits.StreamType(0x03),
	media.CodecAC3:        astits.StreamType(0x81),
	media.CodecEAC3:       astits.StreamType(0x87),
	media.CodecTimedID3:   astits.StreamType(0x15),
	media.CodecKLV:        astits.StreamType(0x06),
}

// formatKLVA is the registration descriptor identifier for SMPTE KLV.
const formatKLVA = uint32('K')<<24 | uint32('L')<<16 | uint32('V')<<8 | uint32('A')

// StreamType returns the PMT stream type for codec.
func StreamType(c media.Codec) (astits.StreamType, bool) {
	st, ok := streamTypes[c]
	return st, ok
}

type esState struct {
	pid      uint16
	streamID uint8
}

// Muxer implements container.Muxer for MPEG-TS.
type Muxer struct {
	mx      *astits.Muxer
	streams []esState
	cancel  context.CancelFunc
}

// New returns an MPEG-TS muxer.
func New() container.Muxer { return &Muxer{} }

func (m *Muxer) Begin(w io.Writer, streams []container.StreamDecl) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.mx = astits.NewMuxer(ctx, w)

	pcrPID := uint16(0)
	for i, s := range streams {
		st, ok := StreamType(s.Codec)
		if !ok {
			return errors.Errorf("mpegts: no stream type for %s/%s", s.Type, s.Codec)
		}
		pid := FirstPID + uint16(i)
		es := astits.PMTElementaryStream{ElementaryPID: pid, StreamType: st}
		if s.Codec == media.CodecKLV {
			es.ElementaryStreamDescriptors = append(es.ElementaryStreamDescriptors, &astits.Descriptor{
				Tag:          astits.DescriptorTagRegistration,
				Length:       4,
				Registration: &astits.DescriptorRegistration{FormatIdentifier: formatKLVA},
			})
		}
		if s.Language != "" && len(s.Language) == 3 {
			es.ElementaryStreamDescriptors = append(es.ElementaryStreamDescriptors, &astits.Descriptor{
				Tag:    astits.DescriptorTagISO639LanguageAndAudioType,
				Length: 4,
				ISO639LanguageAndAudioType: &astits.DescriptorISO639LanguageAndAudioType{
					Language: []byte(s.Language),
				},
			})
		}
		if err := m.mx.AddElementaryStream(es); err != nil {
			return errors.Wrapf(err, "mpegts: add pid %#x", pid)
		}
		if s.Type == media.Video && pcrPID == 0 {
			pcrPID = pid
		}
		m.streams = append(m.streams, esState{pid: pid, streamID: streamIDFor(s.Type)})
	}
	if pcrPID == 0 && len(streams) > 0 {
		pcrPID = FirstPID
	}
	m.mx.SetPCRPID(pcrPID)
	return nil
}

func streamIDFor(t media.MediaType) uint8 {
	switch t {
	case media.Video:
		return streamIDVideo
	case media.Audio:
		return streamIDAudio
	}
	return streamIDPrivate
}

func clock(ts int64, tb media.TimeBase) *astits.ClockReference {
	v := media.Rescale(ts, tb, media.TimeBaseMPEG) % ptsWrap
	if v < 0 {
		v += ptsWrap
	}
	return &astits.ClockReference{Base: v}
}

func (m *Muxer) WritePacket(index int, pkt media.Packet) error {
	if index < 0 || index >= len(m.streams) {
		return errors.Errorf("mpegts: no stream for output %d", index)
	}
	es := m.streams[index]
	tb := pkt.TimeBase.OrDefault(media.TimeBaseMPEG)

	oh := &astits.PESOptionalHeader{
		MarkerBits:      2,
		PTSDTSIndicator: astits.PTSDTSIndicatorOnlyPTS,
		PTS:             clock(pkt.PTS, tb),
	}
	if pkt.DTS != pkt.PTS {
		oh.PTSDTSIndicator = astits.PTSDTSIndicatorBothPresent
		oh.DTS = clock(pkt.DTS, tb)
	}
	_, err := m.mx.WriteData(&astits.MuxerData{
		PID: es.pid,
		AdaptationField: &astits.PacketAdaptationField{
			RandomAccessIndicator: pkt.Keyframe,
		},
		PES: &astits.PESData{
			Header: &astits.PESHeader{
				OptionalHeader: oh,
				StreamID:       es.streamID,
			},
			Data: pkt.Data,
		},
	})
	if err != nil {
		return errors.Wrapf(err, "mpegts: write pid %#x", es.pid)
	}
	return nil
}

// End writes the tables once more so a stream with no packets still parses.
func (m *Muxer) End() error {
	if m.cancel != nil {
		defer m.cancel()
	}
	if m.mx == nil {
		return nil
	}
	if _, err := m.mx.WriteTables(); err != nil {
		return errors.Wrap(err, "mpegts: write tables")
	}
	return nil
}
