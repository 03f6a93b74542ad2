package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/streammux/internal/container"
	"github.com/backmassage/streammux/internal/container/mpegts"
	"github.com/backmassage/streammux/internal/demux/demuxtest"
	"github.com/backmassage/streammux/internal/demux/tsdemux"
	"github.com/backmassage/streammux/internal/media"
	"github.com/backmassage/streammux/internal/selection"
)

// A remux into MPEG-TS must read back with the same streams and packet
// counts through the transport stream demuxer.
func TestRemuxMPEGTSRoundTrip(t *testing.T) {
	src := demuxtest.New().Add("in", demuxtest.Source{Streams: []demuxtest.Stream{
		{
			Info:    media.StreamInfo{Type: media.Video, Codec: media.CodecH264},
			Packets: demuxtest.Packets(4, 0, 3000, media.TimeBaseMPEG, 400),
		},
		{
			Info:    media.StreamInfo{Type: media.Audio, Codec: media.CodecAAC},
			Packets: demuxtest.Packets(6, 0, 1920, media.TimeBaseMPEG, 64),
		},
	}})

	w := container.NewFileWriter()
	w.Register(container.MPEGTS, mpegts.New)
	out := filepath.Join(t.TempDir(), "out.ts")

	res, err := Remux(context.Background(), Request{
		Sources: []string{"in"},
		Rules:   []selection.Rule{selection.IncludeAll()},
		Kind:    container.MPEGTS,
		Output:  out,
	}, Deps{Demuxer: src, Writer: w})
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Stats.Packets)

	fi, err := os.Stat(out)
	require.NoError(t, err)
	assert.Zero(t, fi.Size()%188, "output must be whole transport packets")

	back, err := Plan(context.Background(), Request{
		Sources: []string{out},
		Rules:   []selection.Rule{selection.IncludeAll()},
		Kind:    container.MPEGTS,
	}, Deps{Demuxer: tsdemux.New()})
	require.NoError(t, err)
	require.Equal(t, 2, back.Plan.Len())
	assert.Equal(t, media.CodecH264, back.Plan.Entry(0).Stream.Codec)
	assert.Equal(t, media.CodecAAC, back.Plan.Entry(1).Stream.Codec)

	h, err := tsdemux.New().Open(context.Background(), out)
	require.NoError(t, err)
	defer h.Close()
	for i, want := range []int{4, 6} {
		r, err := h.OpenStream(context.Background(), i)
		require.NoError(t, err)
		n := 0
		for {
			pkt, err := r.ReadPacket()
			if err != nil {
				break
			}
			if i == 1 {
				assert.Equal(t, int64(n)*1920, pkt.PTS)
			}
			n++
		}
		require.NoError(t, r.Close())
		assert.Equal(t, want, n, "stream %d", i)
	}
}
