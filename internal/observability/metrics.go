package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/yungbote/moire/internal/platform/logger"
)

type Metrics struct {
	apiRequests   *CounterVec
	apiLatency    *HistogramVec
	apiInflight   *Gauge
	renders       *CounterVec
	renderLatency *HistogramVec
	fieldSamples  *CounterVec
	cacheLookups  *CounterVec
	cacheErrors   *CounterVec
	cacheUp       *Gauge
	cachePing     *Gauge
}

// New returns a metrics registry, or nil when disabled. Every method is safe to
// call on a nil *Metrics.
func New(enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	return &Metrics{
		apiRequests: NewCounterVec("moire_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"moire_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight: NewGauge("moire_api_inflight_requests", "In-flight API requests."),
		renders:     NewCounterVec("moire_renders_total", "Renders by view/mode/render_mode/status.", []string{"view", "mode", "render_mode", "status"}),
		renderLatency: NewHistogramVec(
			"moire_render_duration_seconds",
			"Render latency in seconds by view/render_mode.",
			[]string{"view", "render_mode"},
			[]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		),
		fieldSamples: NewCounterVec("moire_field_samples_total", "Grid samples evaluated by layer count.", []string{"layers"}),
		cacheLookups: NewCounterVec("moire_cache_lookups_total", "Render cache lookups by backend/result.", []string{"backend", "result"}),
		cacheErrors:  NewCounterVec("moire_cache_errors_total", "Render cache errors by backend/op.", []string{"backend", "op"}),
		cacheUp:      NewGauge("moire_cache_up", "Render cache connectivity (1=up, 0=down)."),
		cachePing:    NewGauge("moire_cache_ping_seconds", "Render cache ping latency in seconds."),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.renders, m.renderLatency, m.fieldSamples,
		m.cacheLookups, m.cacheErrors, m.cacheUp, m.cachePing,
	}
	for _, mw := range writers {
		if err := mw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveRender records one finished render; status is "ok", "cached",
// "timeout", "canceled" or "error".
func (m *Metrics) ObserveRender(view, mode, renderMode, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.renders.Inc(view, mode, renderMode, status)
	if status != "cached" {
		m.renderLatency.Observe(dur.Seconds(), view, renderMode)
	}
}

func (m *Metrics) AddFieldSamples(layers string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.fieldSamples.Add(float64(n), layers)
}

func (m *Metrics) ObserveCacheLookup(backend string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.Inc(backend, result)
}

func (m *Metrics) IncCacheError(backend, op string) {
	if m == nil {
		return
	}
	m.cacheErrors.Inc(backend, op)
}

// StartCacheCollector pings the cache on an interval until ctx is done.
func (m *Metrics) StartCacheCollector(ctx context.Context, log *logger.Logger, interval time.Duration, ping func(context.Context) error) {
	if m == nil || ping == nil {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := ping(ctx); err != nil {
					m.cacheUp.Set(0)
					if log != nil && !errors.Is(err, context.Canceled) {
						log.Warn("metrics: cache ping failed", "error", err)
					}
					continue
				}
				m.cacheUp.Set(1)
				m.cachePing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
