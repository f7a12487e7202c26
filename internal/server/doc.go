// Package server provides the HTTP display surface: the dashboard page and
// its API.
//
// It handles all HTTP concerns:
//
//   - Dashboard serving: Serves the embedded HTML/CSS/JS dashboard at "/"
//   - REST API: JSON snapshot of every Handle at "/api/handles"
//   - Streams: Server-Sent Events at "/api/sse" and a WebSocket at "/api/ws"
//   - Control: enabling Handles and toggling visibility through a [Controller]
//   - Metrics: Prometheus exposition at "/metrics"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
