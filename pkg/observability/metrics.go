package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Hook call outcomes used as the status label.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds the plugin runtime Prometheus metrics. All methods are safe
// to call on a nil *Metrics, which records nothing.
type Metrics struct {
	PluginsLoaded         prometheus.Gauge
	HookCallsTotal        *prometheus.CounterVec
	HookDuration          *prometheus.HistogramVec
	DispatchTotal         *prometheus.CounterVec
	DiscoverySkippedTotal *prometheus.CounterVec
	RegistrySavesTotal    *prometheus.CounterVec
}

// NewMetrics creates the plugin metrics and registers them with registry
// when it is non-nil.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		PluginsLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lumi_plugins_loaded",
				Help: "Number of extensions currently held by the plugin manager",
			},
		),
		HookCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumi_plugin_hook_calls_total",
				Help: "Total number of extension hook invocations",
			},
			[]string{"plugin", "hook", "status"},
		),
		HookDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lumi_plugin_hook_duration_seconds",
				Help:    "Extension hook duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"hook"},
		),
		DispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumi_plugin_dispatch_total",
				Help: "Total number of host event dispatches",
			},
			[]string{"event"},
		),
		DiscoverySkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumi_plugin_discovery_skipped_total",
				Help: "Extension packages skipped during discovery or initialization",
			},
			[]string{"reason"},
		),
		RegistrySavesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumi_registry_saves_total",
				Help: "Total number of plugin registry writes",
			},
			[]string{"status"},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.PluginsLoaded,
			m.HookCallsTotal,
			m.HookDuration,
			m.DispatchTotal,
			m.DiscoverySkippedTotal,
			m.RegistrySavesTotal,
		)
	}

	return m
}

// RecordHook records a single extension hook invocation.
func (m *Metrics) RecordHook(plugin, hook string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.HookCallsTotal.WithLabelValues(plugin, hook, statusOf(err)).Inc()
	m.HookDuration.WithLabelValues(hook).Observe(elapsed.Seconds())
}

// RecordDispatch counts a host dispatch call for event.
func (m *Metrics) RecordDispatch(event string) {
	if m == nil {
		return
	}
	m.DispatchTotal.WithLabelValues(event).Inc()
}

// RecordDiscoverySkip counts an extension dropped during discovery or init.
func (m *Metrics) RecordDiscoverySkip(reason string) {
	if m == nil {
		return
	}
	m.DiscoverySkippedTotal.WithLabelValues(reason).Inc()
}

// RecordRegistrySave counts a registry write.
func (m *Metrics) RecordRegistrySave(err error) {
	if m == nil {
		return
	}
	m.RegistrySavesTotal.WithLabelValues(statusOf(err)).Inc()
}

// SetPluginsLoaded sets the loaded extension gauge.
func (m *Metrics) SetPluginsLoaded(n int) {
	if m == nil {
		return
	}
	m.PluginsLoaded.Set(float64(n))
}

// Handler returns an HTTP handler exposing the metrics in registry.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

func statusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}
