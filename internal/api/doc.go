// Package api hosts the ops HTTP server that runs beside an audit. Routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress/runs, /v1/progress/runs/{id} and
//     /v1/progress/runs/{id}/categories for run progress backed by the
//     RunRepository interface.
package api
