// Package sinks implements concrete progress consumers: Prometheus metrics,
// repository-backed run bookkeeping, and structured logging.
package sinks
