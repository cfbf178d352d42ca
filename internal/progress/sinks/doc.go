// Package sinks contains progress.Sink implementations: structured logs,
// Prometheus collectors, run history persistence, and finish notifications.
package sinks
