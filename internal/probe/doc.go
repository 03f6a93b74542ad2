// Package probe enumerates the streams of any container ffprobe can read.
// One JSON call per file yields every stream as a media.StreamInfo, plus the
// ffprobe-only details (profile, pixel format, color metadata, field order)
// that the probe listing shows but the engine never needs.
//
// [Demuxer] adapts the prober to demux.Demuxer for dry runs and catalog
// listings: its handles enumerate streams but cannot read packets.
package probe
