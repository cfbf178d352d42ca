// Package api is the HTTP client for the roster-export workflow service.
// Endpoints used:
//   - GET /api/fields for the exportable column catalog.
//   - POST /api/run to submit an export job.
//   - GET /api/jobs/{id} for a one-shot job snapshot.
//   - GET /api/jobs/{id}/stream for the server-sent event stream.
//   - GET /download?path= for result files.
//   - GET /health for liveness.
package api
