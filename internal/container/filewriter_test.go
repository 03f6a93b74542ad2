package container_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/streammux/internal/container"
	"github.com/backmassage/streammux/internal/container/mkv"
	"github.com/backmassage/streammux/internal/container/mpegts"
	"github.com/backmassage/streammux/internal/media"
)

func newWriter() *container.FileWriter {
	w := container.NewFileWriter()
	w.Register(container.Matroska, mkv.NewMatroska)
	w.Register(container.WebM, mkv.NewWebM)
	w.Register(container.MPEGTS, mpegts.New)
	return w
}

func writeSample(t *testing.T, sink container.Sink, video, audio media.Codec) {
	t.Helper()
	v, err := sink.DeclareStream(container.StreamDecl{Type: media.Video, Codec: video, Disposition: media.DispositionDefault})
	require.NoError(t, err)
	a, err := sink.DeclareStream(container.StreamDecl{Type: media.Audio, Codec: audio, Language: "eng"})
	require.NoError(t, err)
	assert.Equal(t, 0, v)
	assert.Equal(t, 1, a)

	for i := 0; i < 3; i++ {
		ts := int64(i) * 3000
		require.NoError(t, sink.WritePacket(v, media.Packet{Data: []byte{0, 0, 0, 1, 0x65, byte(i)}, PTS: ts, DTS: ts, TimeBase: media.TimeBaseMPEG, Keyframe: i == 0}))
		require.NoError(t, sink.WritePacket(a, media.Packet{Data: []byte{0xff, 0xf1, byte(i)}, PTS: ts, DTS: ts, TimeBase: media.TimeBaseMPEG, Keyframe: true}))
	}
}

func TestFileWriterMatroska(t *testing.T) {
	for _, tt := range []struct {
		kind         container.Kind
		video, audio media.Codec
	}{
		{container.Matroska, media.CodecH264, media.CodecAAC},
		{container.WebM, media.CodecVP9, media.CodecOpus},
	} {
		t.Run(tt.kind.String(), func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "out"+tt.kind.Extension())
			sink, err := newWriter().Create(context.Background(), out, tt.kind)
			require.NoError(t, err)
			writeSample(t, sink, tt.video, tt.audio)

			_, err = os.Stat(out)
			assert.True(t, os.IsNotExist(err), "target must not appear before Finalize")

			require.NoError(t, sink.Finalize())
			b, err := os.ReadFile(out)
			require.NoError(t, err)
			require.Greater(t, len(b), 4)
			assert.Equal(t, []byte{0x1A, 0x45, 0xDF, 0xA3}, b[:4], "EBML magic")
		})
	}
}

func TestFileWriterMPEGTS(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.ts")
	sink, err := newWriter().Create(context.Background(), out, container.MPEGTS)
	require.NoError(t, err)
	writeSample(t, sink, media.CodecH264, media.CodecAAC)
	require.NoError(t, sink.Finalize())

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	require.NotEmpty(t, b)
	assert.Zero(t, len(b)%188)
	for off := 0; off < len(b); off += 188 {
		require.Equal(t, byte(0x47), b[off], "sync byte at %d", off)
	}
}

func TestFileWriterAbortLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.mkv")
	sink, err := newWriter().Create(context.Background(), out, container.Matroska)
	require.NoError(t, err)
	writeSample(t, sink, media.CodecH264, media.CodecAAC)
	sink.Abort()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.ErrorIs(t, sink.Finalize(), container.ErrSinkDone)
	assert.ErrorIs(t, sink.WritePacket(0, media.Packet{}), container.ErrSinkDone)
}

func TestFileWriterCreateErrors(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "taken.ts")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))

	w := newWriter()
	_, err := w.Create(context.Background(), existing, container.MPEGTS)
	assert.ErrorIs(t, err, container.ErrTargetExists)

	w.Overwrite = true
	sink, err := w.Create(context.Background(), existing, container.MPEGTS)
	require.NoError(t, err)
	sink.Abort()

	_, err = container.NewFileWriter().Create(context.Background(), filepath.Join(dir, "a.mkv"), container.Matroska)
	assert.ErrorIs(t, err, container.ErrNoMuxer)

	assert.True(t, w.Supports(container.WebM))
	assert.False(t, container.NewFileWriter().Supports(container.WebM))
}

func TestFileWriterLateDeclare(t *testing.T) {
	sink, err := newWriter().Create(context.Background(), filepath.Join(t.TempDir(), "o.ts"), container.MPEGTS)
	require.NoError(t, err)
	defer sink.Abort()

	idx, err := sink.DeclareStream(container.StreamDecl{Type: media.Audio, Codec: media.CodecAAC})
	require.NoError(t, err)
	require.NoError(t, sink.WritePacket(idx, media.Packet{Data: []byte{1}, TimeBase: media.TimeBaseMPEG}))

	_, err = sink.DeclareStream(container.StreamDecl{Type: media.Audio, Codec: media.CodecMP3})
	assert.ErrorIs(t, err, container.ErrLateDeclare)
	assert.ErrorIs(t, sink.WritePacket(5, media.Packet{}), container.ErrUnknownStream)
}
