package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics instruments the metrics API client, poller and stream. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	fetches        *prometheus.CounterVec
	fetchSeconds   *prometheus.HistogramVec
	retries        *prometheus.CounterVec
	streamMessages *prometheus.CounterVec
	lastSample     prometheus.Gauge
	downloadMbps   prometheus.Gauge
	uploadMbps     prometheus.Gauge
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.fetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netperfdash_api_fetches_total",
		Help: "Metrics API requests by endpoint and outcome",
	}, []string{"endpoint", "outcome"})
	m.fetchSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netperfdash_api_fetch_seconds",
		Help:    "Metrics API request latency including retries",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	}, []string{"endpoint"})
	m.retries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netperfdash_api_retries_total",
		Help: "Metrics API attempts that failed with a retryable error",
	}, []string{"endpoint"})
	m.streamMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netperfdash_stream_messages_total",
		Help: "Websocket stream messages by outcome",
	}, []string{"outcome"})
	m.lastSample = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netperfdash_last_sample_timestamp_seconds",
		Help: "Timestamp of the newest sample received",
	})
	m.downloadMbps = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netperfdash_download_mbps",
		Help: "Download speed of the newest sample",
	})
	m.uploadMbps = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netperfdash_upload_mbps",
		Help: "Upload speed of the newest sample",
	})

	collectors := []prometheus.Collector{
		m.fetches, m.fetchSeconds, m.retries, m.streamMessages,
		m.lastSample, m.downloadMbps, m.uploadMbps,
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Serve exposes /metrics on addr until ctx ends.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadTimeout: 5 * time.Second, WriteTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (m *Metrics) observeFetch(endpoint string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.fetches.WithLabelValues(endpoint, outcome).Inc()
	m.fetchSeconds.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) observeRetry(endpoint string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) observeStream(ok bool) {
	if m == nil {
		return
	}
	outcome := "decoded"
	if !ok {
		outcome = "rejected"
	}
	m.streamMessages.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeSample(ts time.Time, down, up float64) {
	if m == nil {
		return
	}
	m.lastSample.Set(float64(ts.UnixNano()) / 1e9)
	m.downloadMbps.Set(down)
	m.uploadMbps.Set(up)
}
