package container

import (
	"slices"

	"github.com/backmassage/streammux/internal/media"
)

// Unlimited marks a media type with no stream-count limit.
const Unlimited = 0

// TypeCapability is what a container accepts for one media type.
type TypeCapability struct {
	// Limit is the maximum number of streams of this type, or Unlimited.
	Limit  int
	Codecs []media.Codec
}

// Capabilities is the capability table of one container kind. Media types
// missing from Types are not representable at all.
type Capabilities struct {
	Kind  Kind
	Types map[media.MediaType]TypeCapability
}

// Supports reports whether the container can hold streams of type t.
func (c Capabilities) Supports(t media.MediaType) bool {
	_, ok := c.Types[t]
	return ok
}

// Limit returns the stream-count limit for t (Unlimited when none).
func (c Capabilities) Limit(t media.MediaType) int {
	return c.Types[t].Limit
}

// SupportsCodec reports whether codec is accepted for media type t.
func (c Capabilities) SupportsCodec(t media.MediaType, codec media.Codec) bool {
	tc, ok := c.Types[t]
	return ok && slices.Contains(tc.Codecs, codec)
}

var capabilityTables = map[Kind]Capabilities{
	Matroska: {
		Kind: Matroska,
		Types: map[media.MediaType]TypeCapability{
			media.Video: {Codecs: []media.Codec{
				media.CodecH264, media.CodecHEVC, media.CodecAV1, media.CodecVP8, media.CodecVP9,
				media.CodecMPEG2Video, media.CodecMPEG4,
			}},
			media.Audio: {Codecs: []media.Codec{
				media.CodecAAC, media.CodecMP3, media.CodecAC3, media.CodecEAC3, media.CodecOpus,
				media.CodecVorbis, media.CodecFLAC, media.CodecDTS, media.CodecTrueHD, media.CodecPCM,
			}},
			media.Subtitle: {Codecs: []media.Codec{
				media.CodecSubRip, media.CodecASS, media.CodecWebVTT, media.CodecPGS, media.CodecDVDSub,
			}},
		},
	},
	WebM: {
		Kind: WebM,
		Types: map[media.MediaType]TypeCapability{
			media.Video:    {Limit: 1, Codecs: []media.Codec{media.CodecVP8, media.CodecVP9, media.CodecAV1}},
			media.Audio:    {Limit: 1, Codecs: []media.Codec{media.CodecOpus, media.CodecVorbis}},
			media.Subtitle: {Codecs: []media.Codec{media.CodecWebVTT}},
		},
	},
	MPEGTS: {
		Kind: MPEGTS,
		Types: map[media.MediaType]TypeCapability{
			media.Video: {Codecs: []media.Codec{media.CodecH264, media.CodecHEVC, media.CodecMPEG2Video, media.CodecMPEG4}},
			media.Audio: {Codecs: []media.Codec{media.CodecAAC, media.CodecMP3, media.CodecAC3, media.CodecEAC3}},
			media.Data:  {Codecs: []media.Codec{media.CodecKLV, media.CodecTimedID3}},
		},
	},
}

// CapabilitiesFor returns the capability table for kind.
func CapabilitiesFor(kind Kind) (Capabilities, bool) {
	c, ok := capabilityTables[kind]
	return c, ok
}
