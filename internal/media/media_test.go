package media

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCodec(t *testing.T) {
	tests := []struct {
		in   string
		want Codec
	}{
		{"h264", CodecH264},
		{"AVC1", CodecH264},
		{" hevc ", CodecHEVC},
		{"hvc1", CodecHEVC},
		{"hdmv_pgs_subtitle", CodecPGS},
		{"pcm_s24le", CodecPCM},
		{"E-AC-3", CodecEAC3},
		{"", CodecUnknown},
		{"cinepak", Codec("cinepak")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCodec(tt.in))
		})
	}
}

func TestCodecMediaType(t *testing.T) {
	assert.Equal(t, Video, CodecH264.MediaType())
	assert.Equal(t, Audio, CodecOpus.MediaType())
	assert.Equal(t, Subtitle, CodecASS.MediaType())
	assert.Equal(t, Attachment, CodecTTF.MediaType())
	assert.Equal(t, Data, CodecSCTE35.MediaType())
	assert.Equal(t, TypeUnknown, Codec("cinepak").MediaType())
	assert.True(t, CodecPGS.IsBitmapSubtitle())
	assert.False(t, CodecSubRip.IsBitmapSubtitle())
}

func TestParseMediaType(t *testing.T) {
	for in, want := range map[string]MediaType{
		"v": Video, "Audio": Audio, "subtitles": Subtitle, "t": Attachment, "data": Data,
	} {
		got, err := ParseMediaType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseMediaType("chapters")
	assert.Error(t, err)
}

func TestDisposition(t *testing.T) {
	d := Disposition(0).With(DispositionDefault)
	assert.True(t, d.Has(DispositionDefault))
	assert.False(t, d.Has(DispositionForced))
	d = d.With(DispositionForced)
	assert.Equal(t, "default+forced", d.String())
	assert.Equal(t, DispositionForced, d.Without(DispositionDefault))
	assert.Equal(t, "0", Disposition(0).String())
}

func TestRescale(t *testing.T) {
	assert.Equal(t, int64(1000), Rescale(90000, TimeBaseMPEG, TimeBaseMilli))
	assert.Equal(t, int64(33), Rescale(3003, TimeBaseMPEG, TimeBaseMilli))
	assert.Equal(t, int64(-33), Rescale(-3003, TimeBaseMPEG, TimeBaseMilli))

	// 2^33 ticks at 90 kHz overflows int64 nanoseconds if multiplied naively.
	const wrap = int64(1) << 33
	ns := Rescale(wrap, TimeBaseMPEG, TimeBaseNano)
	assert.Equal(t, int64(95443717688889), ns)
}

func TestCompareTimestamps(t *testing.T) {
	assert.Equal(t, 0, CompareTimestamps(90000, TimeBaseMPEG, 1000, TimeBaseMilli))
	assert.Equal(t, -1, CompareTimestamps(89999, TimeBaseMPEG, 1000, TimeBaseMilli))
	assert.Equal(t, 1, CompareTimestamps(1, TimeBase{Num: 1, Den: 48000}, 0, TimeBaseMPEG))
}

func TestCompareTimestampsMatchesExactArithmetic(t *testing.T) {
	exact := func(a int64, ta TimeBase, b int64, tb TimeBase) int {
		l := new(big.Int).Mul(big.NewInt(a), big.NewInt(ta.Num))
		l.Mul(l, big.NewInt(tb.Den))
		r := new(big.Int).Mul(big.NewInt(b), big.NewInt(tb.Num))
		r.Mul(r, big.NewInt(ta.Den))
		return l.Cmp(r)
	}
	fine := TimeBase{Num: 1, Den: math.MaxInt64}
	coarse := TimeBase{Num: math.MaxInt64, Den: 1}
	bases := []TimeBase{TimeBaseMPEG, TimeBaseMilli, TimeBaseNano, {Num: 1001, Den: 30000}, {Num: 1, Den: 48000}, fine, coarse}
	values := []int64{math.MinInt64, -1 << 40, -90000, -1, 0, 1, 1000, 90000, 1 << 33, 1 << 62, math.MaxInt64}
	for _, ta := range bases {
		for _, tb := range bases {
			for _, a := range values {
				for _, b := range values {
					if got, want := CompareTimestamps(a, ta, b, tb), exact(a, ta, b, tb); got != want {
						t.Errorf("CompareTimestamps(%d, %v, %d, %v) = %d, want %d", a, ta, b, tb, got, want)
					}
				}
			}
		}
	}
}

func TestCompareTimestampsDoesNotAllocate(t *testing.T) {
	allocs := testing.AllocsPerRun(100, func() {
		CompareTimestamps(90000, TimeBaseMPEG, 1000, TimeBaseMilli)
		CompareTimestamps(-5, TimeBaseNano, 7, TimeBaseNano)
	})
	assert.Zero(t, allocs)
}

