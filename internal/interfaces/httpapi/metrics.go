package httpapi

import (
	"sync/atomic"
	"time"

	"dspacegw/internal/application"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the gateway collectors on a private registry. It observes the
// bridge and both transport fronts.
type Metrics struct {
	registry  *prometheus.Registry
	startTime time.Time

	requests       *prometheus.CounterVec
	requestSeconds *prometheus.HistogramVec
	bridgeSeconds  *prometheus.HistogramVec
	bridgeInFlight prometheus.Gauge
	bridgeTimeouts *prometheus.CounterVec

	inFlight atomic.Int64
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dspacegw_requests_total",
			Help: "Requests handled, by transport, operation and outcome code.",
		}, []string{"transport", "op", "code"}),
		requestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dspacegw_request_duration_seconds",
			Help:    "Request latency by transport and operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"transport", "op"}),
		bridgeSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dspacegw_bridge_duration_seconds",
			Help:    "Latency of bridged chain operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "outcome"}),
		bridgeInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dspacegw_bridge_in_flight",
			Help: "Bridged operations currently running.",
		}),
		bridgeTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dspacegw_bridge_timeouts_total",
			Help: "Bridged operations abandoned after the bridge timeout.",
		}, []string{"op"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.requestSeconds,
		m.bridgeSeconds,
		m.bridgeInFlight,
		m.bridgeTimeouts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "dspacegw_uptime_seconds",
			Help: "Seconds since the gateway started.",
		}, func() float64 { return time.Since(m.startTime).Seconds() }),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) OnRequest(transport, op, code string, elapsed time.Duration) {
	m.requests.WithLabelValues(transport, op, code).Inc()
	m.requestSeconds.WithLabelValues(transport, op).Observe(elapsed.Seconds())
}

func (m *Metrics) OnOperationStarted(op string) {
	m.inFlight.Add(1)
	m.bridgeInFlight.Inc()
}

func (m *Metrics) OnOperationFinished(op string, elapsed time.Duration, err error) {
	m.inFlight.Add(-1)
	m.bridgeInFlight.Dec()
	outcome := "ok"
	if err != nil {
		outcome = application.Classify(err).String()
	}
	if outcome == application.KindTimeout.String() {
		m.bridgeTimeouts.WithLabelValues(op).Inc()
	}
	m.bridgeSeconds.WithLabelValues(op, outcome).Observe(elapsed.Seconds())
}

type Snapshot struct {
	StartTime      time.Time
	BridgeInFlight int64
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{StartTime: m.startTime, BridgeInFlight: m.inFlight.Load()}
}
