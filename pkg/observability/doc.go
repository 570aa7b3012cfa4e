// Package observability provides logging setup, Prometheus metrics, health
// checks, panic recovery and graceful shutdown for the plugin runtime.
//
// # Logging
//
//	log := observability.NewLogger(observability.ParseLevel("debug"), observability.FormatJSON, os.Stderr)
//	observability.PluginLogger(log, "datetime").Info("ready")
//
// # Prometheus Metrics
//
//	reg := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(reg)
//	metrics.RecordHook("datetime", "on_message_received", elapsed, err)
//	http.Handle("/metrics", observability.Handler(reg))
//
// A nil *Metrics is valid and records nothing.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version, observability.DependencyCheck{
//		Name: "registry", Required: true, Check: store.Ping,
//	})
//
// # Related Packages
//
//   - pkg/config: observability settings
//   - pkg/plugins: hook instrumentation
package observability
