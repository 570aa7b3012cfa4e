// Package api provides the admin HTTP API for the plugin runtime.
//
// # Overview
//
// The server exposes the plugin manager, the dashboard collector and the
// health checker over a small REST surface built on gorilla/mux:
//
//	GET  /api/v1/plugins                  list loaded plugins
//	GET  /api/v1/plugins/{name}           one plugin
//	POST /api/v1/plugins/{name}/enable    204, 404 if not loaded
//	POST /api/v1/plugins/{name}/disable   204, 404 if not loaded
//	PUT  /api/v1/plugins/{name}/config    merge settings, 400 on schema violation
//	POST /api/v1/plugins/sync             re-read the registry
//	POST /api/v1/messages                 run the message transform chain
//	GET  /api/v1/dashboard                latest dashboard snapshot (?refresh=true)
//	GET  /healthz, /readyz                liveness and readiness
//	GET  /metrics                         Prometheus metrics
//
// # Usage
//
//	srv := api.NewServer(manager,
//		api.WithDashboard(collector),
//		api.WithHealth(health),
//		api.WithMetricsHandler(observability.Handler(reg)),
//		api.WithLogger(log),
//	)
//	http.ListenAndServe(":8080", srv)
//
// Every request passes through the httputil request ID, logging and recovery
// middleware.
package api
