// Package metrics exposes Prometheus metrics and a health endpoint for the
// dashboard service.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the dashboard service.
// All helper methods are safe on a nil receiver so tests can pass nil.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec // labels: endpoint, code
	RequestDur          *prometheus.HistogramVec
	ProviderFetchDur    *prometheus.HistogramVec // labels: call
	ProviderErrorsTotal *prometheus.CounterVec
	CacheHitsTotal      *prometheus.CounterVec // labels: tier
	CacheMissesTotal    *prometheus.CounterVec
	IndicatorComputeDur prometheus.Histogram
	CSVExportsTotal     prometheus.Counter
	WSClients           prometheus.Gauge
	QuotesPublished     prometheus.Counter
	BreakerState        prometheus.Gauge
	BreakerTrips        prometheus.Counter
	PrewarmRuns         prometheus.Counter
	PrewarmErrors       prometheus.Counter
}

// New registers and returns all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketdash_requests_total",
			Help: "HTTP requests served (by endpoint and status code)",
		}, []string{"endpoint", "code"}),
		RequestDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marketdash_request_duration_seconds",
			Help:    "HTTP request latency by endpoint",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		ProviderFetchDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marketdash_provider_fetch_duration_seconds",
			Help:    "Outbound provider call latency (by call type)",
			Buckets: prometheus.DefBuckets,
		}, []string{"call"}),
		ProviderErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketdash_provider_errors_total",
			Help: "Failed outbound provider calls (by call type)",
		}, []string{"call"}),
		CacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketdash_cache_hits_total",
			Help: "Cache hits (by tier: sqlite, redis)",
		}, []string{"tier"}),
		CacheMissesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketdash_cache_misses_total",
			Help: "Cache misses (by tier: sqlite, redis)",
		}, []string{"tier"}),
		IndicatorComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketdash_indicator_compute_duration_seconds",
			Help:    "Indicator engine compute latency per request",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		CSVExportsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketdash_csv_exports_total",
			Help: "CSV exports served",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketdash_ws_clients",
			Help: "Currently connected WebSocket clients",
		}),
		QuotesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketdash_quotes_published_total",
			Help: "Live quotes broadcast to WebSocket subscribers",
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketdash_provider_circuit_breaker_state",
			Help: "Provider circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketdash_provider_circuit_breaker_trips_total",
			Help: "Times the provider circuit breaker tripped open",
		}),
		PrewarmRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketdash_prewarm_runs_total",
			Help: "Watchlist cache prewarm runs",
		}),
		PrewarmErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketdash_prewarm_errors_total",
			Help: "Symbols that failed during cache prewarm",
		}),
	}

	prometheus.MustRegister(
		m.RequestsTotal,
		m.RequestDur,
		m.ProviderFetchDur,
		m.ProviderErrorsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.IndicatorComputeDur,
		m.CSVExportsTotal,
		m.WSClients,
		m.QuotesPublished,
		m.BreakerState,
		m.BreakerTrips,
		m.PrewarmRuns,
		m.PrewarmErrors,
	)

	return m
}

func (m *Metrics) ObserveRequest(endpoint, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(endpoint, code).Inc()
	m.RequestDur.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) ObserveProviderFetch(call string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.ProviderFetchDur.WithLabelValues(call).Observe(d.Seconds())
	if err != nil {
		m.ProviderErrorsTotal.WithLabelValues(call).Inc()
	}
}

func (m *Metrics) CacheHit(tier string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(tier).Inc()
}

func (m *Metrics) CacheMiss(tier string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(tier).Inc()
}

func (m *Metrics) ObserveIndicatorCompute(d time.Duration) {
	if m == nil {
		return
	}
	m.IndicatorComputeDur.Observe(d.Seconds())
}

func (m *Metrics) CSVExport() {
	if m == nil {
		return
	}
	m.CSVExportsTotal.Inc()
}

func (m *Metrics) WSClientConnected() {
	if m == nil {
		return
	}
	m.WSClients.Inc()
}

func (m *Metrics) WSClientDisconnected() {
	if m == nil {
		return
	}
	m.WSClients.Dec()
}

func (m *Metrics) QuotePublished() {
	if m == nil {
		return
	}
	m.QuotesPublished.Inc()
}

func (m *Metrics) SetBreakerState(state float64) {
	if m == nil {
		return
	}
	m.BreakerState.Set(state)
}

func (m *Metrics) BreakerTripped() {
	if m == nil {
		return
	}
	m.BreakerTrips.Inc()
}

func (m *Metrics) PrewarmRun(failed int) {
	if m == nil {
		return
	}
	m.PrewarmRuns.Inc()
	m.PrewarmErrors.Add(float64(failed))
}

// Server serves /metrics and /healthz on its own listener, away from the
// public API port.
type Server struct {
	addr string
	srv  *http.Server
}

// health is the /healthz response body.
type health struct {
	Status          string    `json:"status"`
	SQLiteOK        bool      `json:"sqlite_ok"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	RedisOK         bool      `json:"redis_ok"`
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	StartedAt       time.Time `json:"started_at"`
	UptimeSeconds   float64   `json:"uptime_seconds"`
}

// NewServer creates a metrics and health server. db and rdb may be nil when
// the corresponding cache tier is disabled; a disabled tier reports healthy.
func NewServer(addr string, db *sql.DB, rdb *goredis.Client, started time.Time) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		h := health{
			Status:    "ok",
			SQLiteOK:  true,
			RedisOK:   true,
			StartedAt: started,
		}
		h.UptimeSeconds = time.Since(started).Seconds()

		if db != nil {
			t0 := time.Now()
			if err := db.PingContext(ctx); err != nil {
				h.SQLiteOK = false
				h.Status = "degraded"
			}
			h.SQLiteLatencyMs = float64(time.Since(t0).Microseconds()) / 1000
		}
		if rdb != nil {
			t0 := time.Now()
			if err := rdb.Ping(ctx).Err(); err != nil {
				h.RedisOK = false
				h.Status = "degraded"
			}
			h.RedisLatencyMs = float64(time.Since(t0).Microseconds()) / 1000
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(h)
	})

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", slog.String("addr", s.addr))
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("metrics server error", slog.Any("err", err))
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
