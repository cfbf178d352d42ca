// Package progress carries client-side telemetry about export runs. The session
// and stream controller emit Events into a non-blocking Hub, which batches them
// on a background goroutine and fans them out to sinks such as structured logs,
// Prometheus collectors, run history, and completion notifications.
package progress
