// Package api hosts the optional operator HTTP surface that runs alongside a
// CLI invocation. Routes:
//   - GET /healthz for liveness checks.
//   - GET /status for the progress of the current run.
//   - GET /metrics for Prometheus scraping.
package api
