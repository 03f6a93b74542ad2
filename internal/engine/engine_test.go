package engine

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/streammux/internal/container"
	"github.com/backmassage/streammux/internal/container/containertest"
	"github.com/backmassage/streammux/internal/demux/demuxtest"
	"github.com/backmassage/streammux/internal/media"
	"github.com/backmassage/streammux/internal/muxerr"
	"github.com/backmassage/streammux/internal/selection"
)

func rules(t *testing.T, exprs ...string) []selection.Rule {
	t.Helper()
	r, err := selection.ParseRules(exprs)
	require.NoError(t, err)
	return r
}

// sample is [video/H264, audio/AAC-eng, audio/AAC-fre].
func sample() *demuxtest.Demuxer {
	return demuxtest.New().Add("in.ts", demuxtest.Source{Streams: []demuxtest.Stream{
		{
			Info:    media.StreamInfo{Type: media.Video, Codec: media.CodecH264, Params: media.CodecParams{TimeBase: media.TimeBaseMPEG}},
			Packets: demuxtest.Packets(3, 0, 3000, media.TimeBaseMPEG, 16),
		},
		{
			Info:    media.StreamInfo{Type: media.Audio, Codec: media.CodecAAC, Language: "eng"},
			Packets: demuxtest.Packets(5, 0, 1920, media.TimeBaseMPEG, 4),
		},
		{
			Info:    media.StreamInfo{Type: media.Audio, Codec: media.CodecAAC, Language: "fre"},
			Packets: demuxtest.Packets(5, 0, 1920, media.TimeBaseMPEG, 4),
		},
	}})
}

func TestRemuxSelectsVideoAndEnglishAudio(t *testing.T) {
	for name, exprs := range map[string][]string{
		"include video, include english": {"+v", "+a:lang=eng"},
		"include all, exclude french":    {"+all", "-a:lang=fre"},
	} {
		t.Run(name, func(t *testing.T) {
			dmx := sample()
			w := &containertest.Writer{}
			res, err := Remux(context.Background(), Request{
				Sources: []string{"in.ts"},
				Rules:   rules(t, exprs...),
				Kind:    container.MPEGTS,
				Output:  "out.ts",
			}, Deps{Demuxer: dmx, Writer: w})
			require.NoError(t, err)

			require.Equal(t, 2, res.Plan.Len())
			assert.Equal(t, media.StreamID{Source: 0, Index: 0}, res.Plan.Entry(0).Stream.ID)
			assert.Equal(t, media.StreamID{Source: 0, Index: 1}, res.Plan.Entry(1).Stream.ID)

			sink := w.Last()
			require.NotNil(t, sink)
			assert.Equal(t, "out.ts", sink.Target)
			decls := sink.Decls()
			require.Len(t, decls, 2)
			assert.Equal(t, media.Video, decls[0].Type)
			assert.Equal(t, "eng", decls[1].Language)
			assert.Equal(t, 1, sink.FinalizeCalls())
			assert.Equal(t, int64(8), res.Stats.Packets)
			assert.Equal(t, 0, dmx.OpenHandles())
			assert.Equal(t, 0, dmx.OpenReaders())
		})
	}
}

func TestRemuxConflictWritesNothing(t *testing.T) {
	dmx := demuxtest.New().
		Add("a.webm", demuxtest.Source{Streams: []demuxtest.Stream{{Info: media.StreamInfo{Type: media.Video, Codec: media.CodecVP9}}}}).
		Add("b.webm", demuxtest.Source{Streams: []demuxtest.Stream{{Info: media.StreamInfo{Type: media.Video, Codec: media.CodecVP9}}}})
	w := &containertest.Writer{}

	res, err := Remux(context.Background(), Request{
		Sources: []string{"a.webm", "b.webm"},
		Rules:   []selection.Rule{selection.IncludeAll()},
		Kind:    container.WebM,
		Output:  "out.webm",
	}, Deps{Demuxer: dmx, Writer: w})

	var ce *muxerr.ContainerConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []media.StreamID{{Source: 0, Index: 0}, {Source: 1, Index: 0}}, ce.Streams())
	assert.Empty(t, w.Sinks(), "no sink may be created when validation fails")
	assert.NotNil(t, res.Catalog)
	assert.Nil(t, res.Plan)
	assert.Equal(t, 0, dmx.OpenHandles())
}

func TestRemuxSourceOpenFailureClosesOpenedHandles(t *testing.T) {
	dmx := sample().Add("broken.ts", demuxtest.Source{OpenErr: io.ErrUnexpectedEOF})

	_, err := Remux(context.Background(), Request{
		Sources: []string{"in.ts", "broken.ts"},
		Rules:   []selection.Rule{selection.IncludeAll()},
		Kind:    container.Matroska,
		Output:  "out.mkv",
	}, Deps{Demuxer: dmx, Writer: &containertest.Writer{}})

	var so *muxerr.SourceOpenError
	require.ErrorAs(t, err, &so)
	assert.Equal(t, 1, so.Source)
	assert.Equal(t, muxerr.KindSourceOpen, muxerr.KindOf(err))
	assert.Equal(t, 0, dmx.OpenHandles())
}

func TestRemuxEmptySelection(t *testing.T) {
	_, err := Remux(context.Background(), Request{
		Sources: []string{"in.ts"},
		Rules:   rules(t, "+s"),
		Kind:    container.Matroska,
		Output:  "out.mkv",
	}, Deps{Demuxer: sample(), Writer: &containertest.Writer{}})
	assert.Equal(t, muxerr.KindSelection, muxerr.KindOf(err))
}

func TestRemuxCreateFailure(t *testing.T) {
	_, err := Remux(context.Background(), Request{
		Sources: []string{"in.ts"},
		Rules:   rules(t, "+all"),
		Kind:    container.Matroska,
		Output:  "out.mkv",
	}, Deps{Demuxer: sample(), Writer: &containertest.Writer{CreateErr: io.ErrClosedPipe}})

	var me *muxerr.MuxIoError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, muxerr.OpCreate, me.Op)
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestRemuxWriteFailureOnThirdPacket(t *testing.T) {
	w := &containertest.Writer{FailWriteAt: 3}
	_, err := Remux(context.Background(), Request{
		Sources: []string{"in.ts"},
		Rules:   rules(t, "+v", "+a:lang=eng"),
		Kind:    container.MPEGTS,
		Output:  "out.ts",
	}, Deps{Demuxer: sample(), Writer: w})

	assert.Equal(t, muxerr.KindMuxIO, muxerr.KindOf(err))
	assert.Equal(t, 1, w.Last().AbortCalls())
	assert.Equal(t, 0, w.Last().FinalizeCalls())
}

func TestPlanDoesNotWrite(t *testing.T) {
	dmx := sample()
	res, err := Plan(context.Background(), Request{
		Sources: []string{"in.ts"},
		Rules:   rules(t, "+a", "+v"),
		Kind:    container.Matroska,
	}, Deps{Demuxer: dmx})
	require.NoError(t, err)
	require.Equal(t, 3, res.Plan.Len())
	assert.Equal(t, media.Audio, res.Plan.Entry(0).Stream.Type)
	assert.Equal(t, media.Video, res.Plan.Entry(2).Stream.Type)
	assert.Equal(t, 0, dmx.OpenHandles())
	assert.Equal(t, 0, dmx.OpenReaders())
}
