package media

import "strings"

// Codec is the canonical identifier of a stream's coding format. Demuxers
// report whatever name their container uses; [NormalizeCodec] folds those
// aliases into the constants below.
type Codec string

const (
	CodecUnknown Codec = "unknown"

	// Video.
	CodecH264       Codec = "h264"
	CodecHEVC       Codec = "hevc"
	CodecAV1        Codec = "av1"
	CodecVP8        Codec = "vp8"
	CodecVP9        Codec = "vp9"
	CodecMPEG2Video Codec = "mpeg2video"
	CodecMPEG4      Codec = "mpeg4"

	// Audio.
	CodecAAC    Codec = "aac"
	CodecMP3    Codec = "mp3"
	CodecAC3    Codec = "ac3"
	CodecEAC3   Codec = "eac3"
	CodecOpus   Codec = "opus"
	CodecVorbis Codec = "vorbis"
	CodecFLAC   Codec = "flac"
	CodecDTS    Codec = "dts"
	CodecTrueHD Codec = "truehd"
	CodecPCM    Codec = "pcm"

	// Subtitles.
	CodecSubRip  Codec = "subrip"
	CodecASS     Codec = "ass"
	CodecWebVTT  Codec = "webvtt"
	CodecPGS     Codec = "pgs"
	CodecDVDSub  Codec = "dvdsub"
	CodecDVBSub  Codec = "dvbsub"
	CodecMovText Codec = "mov_text"

	// Attachments.
	CodecTTF Codec = "ttf"
	CodecOTF Codec = "otf"

	// Data.
	CodecKLV      Codec = "klv"
	CodecSCTE35   Codec = "scte35"
	CodecTimedID3 Codec = "timed_id3"
)

type codecInfo struct {
	Type    MediaType
	Bitmap  bool
	Aliases []string
}

// codecRegistry maps every canonical codec to its media type and the names
// ffprobe, Matroska and MPEG-TS tooling commonly use for it.
var codecRegistry = map[Codec]codecInfo{
	CodecH264:       {Type: Video, Aliases: []string{"avc", "avc1", "h.264", "x264"}},
	CodecHEVC:       {Type: Video, Aliases: []string{"h265", "h.265", "hev1", "hvc1", "x265"}},
	CodecAV1:        {Type: Video, Aliases: []string{"av01"}},
	CodecVP8:        {Type: Video},
	CodecVP9:        {Type: Video, Aliases: []string{"vp09"}},
	CodecMPEG2Video: {Type: Video, Aliases: []string{"mpeg2", "mp2v", "h262"}},
	CodecMPEG4:      {Type: Video, Aliases: []string{"mp4v", "xvid", "divx"}},

	CodecAAC:    {Type: Audio, Aliases: []string{"mp4a", "aac_latm"}},
	CodecMP3:    {Type: Audio, Aliases: []string{"mp3float", "mpeg1audio", "mpga"}},
	CodecAC3:    {Type: Audio, Aliases: []string{"a52", "ac-3"}},
	CodecEAC3:   {Type: Audio, Aliases: []string{"e-ac-3", "ec3", "ec-3"}},
	CodecOpus:   {Type: Audio},
	CodecVorbis: {Type: Audio},
	CodecFLAC:   {Type: Audio},
	CodecDTS:    {Type: Audio, Aliases: []string{"dca"}},
	CodecTrueHD: {Type: Audio, Aliases: []string{"mlp"}},
	CodecPCM:    {Type: Audio, Aliases: []string{"pcm_s16le", "pcm_s24le", "pcm_s32le", "pcm_f32le", "lpcm"}},

	CodecSubRip:  {Type: Subtitle, Aliases: []string{"srt", "text", "utf8"}},
	CodecASS:     {Type: Subtitle, Aliases: []string{"ssa"}},
	CodecWebVTT:  {Type: Subtitle, Aliases: []string{"vtt", "wvtt"}},
	CodecPGS:     {Type: Subtitle, Bitmap: true, Aliases: []string{"hdmv_pgs_subtitle", "sup"}},
	CodecDVDSub:  {Type: Subtitle, Bitmap: true, Aliases: []string{"dvd_subtitle", "vobsub"}},
	CodecDVBSub:  {Type: Subtitle, Bitmap: true, Aliases: []string{"dvb_subtitle"}},
	CodecMovText: {Type: Subtitle, Aliases: []string{"tx3g"}},

	CodecTTF: {Type: Attachment, Aliases: []string{"truetype", "font/ttf", "application/x-truetype-font"}},
	CodecOTF: {Type: Attachment, Aliases: []string{"opentype", "font/otf", "application/vnd.ms-opentype"}},

	CodecKLV:      {Type: Data, Aliases: []string{"smpte_klv"}},
	CodecSCTE35:   {Type: Data, Aliases: []string{"scte_35"}},
	CodecTimedID3: {Type: Data, Aliases: []string{"id3"}},
}

var codecAliases = buildAliasIndex()

func buildAliasIndex() map[string]Codec {
	idx := make(map[string]Codec, len(codecRegistry)*3)
	for c, info := range codecRegistry {
		idx[string(c)] = c
		for _, a := range info.Aliases {
			idx[a] = c
		}
	}
	return idx
}

// NormalizeCodec maps a codec name or alias to its canonical Codec. Names
// that are not in the registry are returned lowercased so they still compare
// consistently, and report TypeUnknown from [Codec.MediaType].
func NormalizeCodec(name string) Codec {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return CodecUnknown
	}
	if c, ok := codecAliases[n]; ok {
		return c
	}
	return Codec(n)
}

// MediaType returns the media type the codec belongs to.
func (c Codec) MediaType() MediaType {
	if info, ok := codecRegistry[c]; ok {
		return info.Type
	}
	return TypeUnknown
}

// IsBitmapSubtitle reports whether c is an image-based subtitle format.
func (c Codec) IsBitmapSubtitle() bool {
	return codecRegistry[c].Bitmap
}

// Known reports whether c is a canonical registry entry.
func (c Codec) Known() bool {
	_, ok := codecRegistry[c]
	return ok
}

func (c Codec) String() string { return string(c) }
