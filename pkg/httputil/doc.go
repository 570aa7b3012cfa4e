// Package httputil holds the JSON response, request parsing and middleware
// helpers shared by the admin HTTP API.
//
//	httputil.WriteJSON(w, http.StatusOK, infos)
//	httputil.WriteNotFoundError(w, "plugin not found")
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(log),
//		httputil.RecoveryMiddleware(log),
//	)(router)
package httputil
