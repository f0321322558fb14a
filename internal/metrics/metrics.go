// Package metrics exposes the aggregation server's Prometheus
// collectors using the standard promauto + promhttp registration
// pattern.
package metrics

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the server publishes.
type Metrics struct {
	channelSynchronised *prometheus.GaugeVec // 1 once a channel has locked, 0 otherwise
	channelLevel        *prometheus.GaugeVec // current amplitude level factor
	channelPhaseDelta   *prometheus.GaugeVec // current phase delta, radians
	channelStartAt      *prometheus.GaugeVec // onset index within the channel's buffer
	channelBufferLen    *prometheus.GaugeVec // current buffered sample count

	saturationWarnings *prometheus.CounterVec // saturation_flag set, by channel
	framesBad          *prometheus.CounterVec // malformed frames rejected, by channel
	slotBusyRejections *prometheus.CounterVec // duplicate connection attempts, by channel

	packetsEmitted   prometheus.Counter // combiner packets emitted
	shiftChanges     prometheus.Counter // packets with shift_changed=true
	workerQueueDepth prometheus.Gauge   // worker task queue length at last sample
}

// New constructs and registers all collectors against reg.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		channelSynchronised: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ilserver",
			Name:      "channel_synchronised",
			Help:      "1 if the channel is locked to the reference, 0 otherwise.",
		}, []string{"channel"}),
		channelLevel: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ilserver",
			Name:      "channel_level",
			Help:      "Amplitude leveling factor relative to the reference channel.",
		}, []string{"channel"}),
		channelPhaseDelta: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ilserver",
			Name:      "channel_phase_delta_radians",
			Help:      "Phase offset applied relative to the reference channel.",
		}, []string{"channel"}),
		channelStartAt: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ilserver",
			Name:      "channel_start_at",
			Help:      "Carrier onset index within the channel's buffer.",
		}, []string{"channel"}),
		channelBufferLen: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ilserver",
			Name:      "channel_buffer_length",
			Help:      "Complex samples currently buffered for the channel.",
		}, []string{"channel"}),
		saturationWarnings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ilserver",
			Name:      "saturation_warnings_total",
			Help:      "Frames received with the saturation flag set.",
		}, []string{"channel"}),
		framesBad: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ilserver",
			Name:      "bad_frames_total",
			Help:      "Frames rejected for violating the channel wire format.",
		}, []string{"channel"}),
		slotBusyRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ilserver",
			Name:      "slot_busy_rejections_total",
			Help:      "Connections refused because the channel slot was already in use.",
		}, []string{"channel"}),
		packetsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ilserver",
			Name:      "combiner_packets_emitted_total",
			Help:      "Coherent packets emitted by the combiner.",
		}),
		shiftChanges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ilserver",
			Name:      "combiner_shift_changed_total",
			Help:      "Emitted packets whose shift_changed flag was set.",
		}),
		workerQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ilserver",
			Name:      "worker_queue_depth",
			Help:      "Pending tasks in the single worker's queue, sampled on submit.",
		}),
	}
}

// ChannelSnapshot reports the current state of one channel.
type ChannelSnapshot struct {
	ID           int
	Synchronised bool
	Level        float64
	PhaseDelta   float64
	StartAt      int
	BufferLen    int
}

// ObserveChannel updates the per-channel gauges from a snapshot.
func (m *Metrics) ObserveChannel(s ChannelSnapshot) {
	label := prometheus.Labels{"channel": strconv.Itoa(s.ID)}
	synced := 0.0
	if s.Synchronised {
		synced = 1
	}
	m.channelSynchronised.With(label).Set(synced)
	m.channelLevel.With(label).Set(s.Level)
	m.channelPhaseDelta.With(label).Set(s.PhaseDelta)
	m.channelStartAt.With(label).Set(float64(s.StartAt))
	m.channelBufferLen.With(label).Set(float64(s.BufferLen))
}

// RecordSaturation increments the saturation-warning counter for a
// channel id.
func (m *Metrics) RecordSaturation(channelID int) {
	m.saturationWarnings.With(prometheus.Labels{"channel": strconv.Itoa(channelID)}).Inc()
}

// RecordBadFrame increments the bad-frame counter for a channel id.
func (m *Metrics) RecordBadFrame(channelID int) {
	m.framesBad.With(prometheus.Labels{"channel": strconv.Itoa(channelID)}).Inc()
}

// RecordSlotBusy increments the slot-busy counter for a channel id.
func (m *Metrics) RecordSlotBusy(channelID int) {
	m.slotBusyRejections.With(prometheus.Labels{"channel": strconv.Itoa(channelID)}).Inc()
}

// RecordPacket increments the packet/shift-changed counters.
func (m *Metrics) RecordPacket(shiftChanged bool) {
	m.packetsEmitted.Inc()
	if shiftChanged {
		m.shiftChanges.Inc()
	}
}

// RecordQueueDepth samples the worker queue depth.
func (m *Metrics) RecordQueueDepth(depth int) {
	m.workerQueueDepth.Set(float64(depth))
}

// Server wraps an HTTP server exposing /metrics over reg.
type Server struct {
	httpServer *http.Server
}

// StartServer starts an HTTP server on listen serving reg at /metrics.
// If healthHandler is non-nil it is additionally mounted at /healthz.
// If the server later fails for a reason other than a clean shutdown,
// the error is logged.
func StartServer(listen string, reg *prometheus.Registry, healthHandler http.HandlerFunc) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if healthHandler != nil {
		mux.HandleFunc("/healthz", healthHandler)
	}

	s := &Server{httpServer: &http.Server{Addr: listen, Handler: mux}}
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server error: %v", err)
		}
	}()
	return s
}

// Stop gracefully shuts the metrics HTTP server down.
func (s *Server) Stop(ctx context.Context) {
	_ = s.httpServer.Shutdown(ctx)
}
