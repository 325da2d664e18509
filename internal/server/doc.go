// Package server provides the shared server context, browser sessions and
// the HTTP API of calview.
//
// # Key Components
//
// ServerContext holds the identity service and creates one calendar backend
// per signed-in account, wrapped with instrumentation and the optional
// sqlite event cache.
//
// SessionManager maps the calview_session cookie to a Session holding the
// signed-in account, a pending PKCE login and a view.Controller. Several
// users can share one server instance.
//
// HTTPServer routes the sign-in flow (/auth/login, /auth/callback,
// /auth/logout), the calendar API (/api/me, /api/view, /api/events), the
// health endpoints and optionally the MCP endpoint at /mcp. Upstream errors
// are reported as a generic retryable 502 response; their details only go
// to the logs.
//
// MetricsServer exposes Prometheus metrics on a dedicated port.
package server
