package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements ports.MetricsCollector using Prometheus
type Collector struct {
	relayRequests    *prometheus.CounterVec
	streamsRelayed   prometheus.Counter
	streamChunks     prometheus.Counter
	parseErrors      prometheus.Counter
	streamDuration   prometheus.Histogram
	activeListeners  prometheus.Gauge
	turns            *prometheus.CounterVec
	turnDuration     *prometheus.HistogramVec
	handoffs         *prometheus.CounterVec
	updatesPublished prometheus.Counter
	workerPoolIdle   prometheus.Gauge
	workerPoolBusy   prometheus.Gauge
	workerPoolStop   prometheus.Gauge
}

// NewCollector creates a collector registered with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		relayRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatrelay_requests_total",
				Help: "Total number of relayed requests by endpoint and result kind",
			},
			[]string{"endpoint", "result"},
		),
		streamsRelayed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "chatrelay_streams_relayed_total",
				Help: "Total number of streamed responses relayed",
			},
		),
		streamChunks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "chatrelay_stream_chunks_total",
				Help: "Total number of SSE chunks relayed",
			},
		),
		parseErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "chatrelay_stream_parse_errors_total",
				Help: "Total number of SSE data lines that could not be decoded for logging",
			},
		),
		streamDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chatrelay_stream_duration_seconds",
				Help:    "Duration of relayed streams in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		),
		activeListeners: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatrelay_active_listeners",
				Help: "Number of registered state listeners",
			},
		),
		turns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatrelay_turns_total",
				Help: "Total number of agent turns by agent and status",
			},
			[]string{"agent", "status"},
		),
		turnDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatrelay_turn_duration_seconds",
				Help:    "Agent turn duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"agent"},
		),
		handoffs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatrelay_handoffs_total",
				Help: "Total number of agent handoffs",
			},
			[]string{"from", "to"},
		),
		updatesPublished: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "chatrelay_updates_published_total",
				Help: "Total number of thread state updates published",
			},
		),
		workerPoolIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatrelay_worker_pool_idle",
				Help: "Number of idle turn workers",
			},
		),
		workerPoolBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatrelay_worker_pool_busy",
				Help: "Number of busy turn workers",
			},
		),
		workerPoolStop: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatrelay_worker_pool_stopped",
				Help: "Number of stopped turn workers",
			},
		),
	}
}

// RecordRelayRequest counts one relayed request
func (c *Collector) RecordRelayRequest(endpoint, resultKind string) {
	c.relayRequests.WithLabelValues(endpoint, resultKind).Inc()
}

// RecordStreamRelayed records a finished stream
func (c *Collector) RecordStreamRelayed(chunks, parseErrors int, duration time.Duration) {
	c.streamsRelayed.Inc()
	c.streamChunks.Add(float64(chunks))
	c.parseErrors.Add(float64(parseErrors))
	c.streamDuration.Observe(duration.Seconds())
}

// SetActiveListeners sets the number of registered listeners
func (c *Collector) SetActiveListeners(count int) {
	c.activeListeners.Set(float64(count))
}

// RecordTurn records one agent turn
func (c *Collector) RecordTurn(agent, status string, duration time.Duration) {
	c.turns.WithLabelValues(agent, status).Inc()
	c.turnDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

// RecordHandoff counts an agent handoff
func (c *Collector) RecordHandoff(from, to string) {
	c.handoffs.WithLabelValues(from, to).Inc()
}

// RecordUpdatePublished counts a published state update
func (c *Collector) RecordUpdatePublished() {
	c.updatesPublished.Inc()
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStop.Set(float64(stopped))
}
