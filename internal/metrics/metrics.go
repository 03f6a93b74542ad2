// Package metrics counts remux activity on a private Prometheus registry.
// A run is short-lived, so nothing is served; the registry is written to a
// node_exporter textfile when the run ends.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/backmassage/streammux/internal/mapper"
	"github.com/backmassage/streammux/internal/media"
	"github.com/backmassage/streammux/internal/muxerr"
)

// Recorder holds the run counters.
type Recorder struct {
	reg *prometheus.Registry

	runs     *prometheus.CounterVec
	packets  *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New returns a Recorder backed by its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "streammux_runs_total",
			Help: "Remux runs by container kind and result",
		}, []string{"container", "result"}),
		packets: f.NewCounterVec(prometheus.CounterOpts{
			Name: "streammux_packets_written_total",
			Help: "Packets accepted by the output sink",
		}, []string{"type"}),
		bytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "streammux_bytes_written_total",
			Help: "Payload bytes accepted by the output sink",
		}, []string{"type"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "streammux_run_duration_seconds",
			Help:    "Wall time of remux runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8), // 10ms to ~3m
		}, []string{"container"}),
	}
}

// Result labels a finished run: "ok", or the muxerr kind of its error.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	return muxerr.KindOf(err).String()
}

// ObservePacket counts one written packet.
func (r *Recorder) ObservePacket(t media.MediaType, size int) {
	r.packets.WithLabelValues(t.String()).Inc()
	r.bytes.WithLabelValues(t.String()).Add(float64(size))
}

// OnPacket adapts ObservePacket to the mux driver's packet hook.
func (r *Recorder) OnPacket(e mapper.Entry, pkt media.Packet) {
	r.ObservePacket(e.Stream.Type, pkt.Size())
}

// ObserveRun records one finished run.
func (r *Recorder) ObserveRun(container string, err error, elapsed time.Duration) {
	r.runs.WithLabelValues(container, Result(err)).Inc()
	r.duration.WithLabelValues(container).Observe(elapsed.Seconds())
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer { return r.reg }

// WriteTextfile writes every metric to path in the text exposition format.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
