// Package api hosts the optional HTTP status server that runs alongside a
// crawl. Notable routes:
//   - GET /healthz and /readyz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/run for the latest progress observation of the active run.
package api
