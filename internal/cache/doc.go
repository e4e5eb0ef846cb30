// Package cache implements the content-addressed artifact store that gives
// pipeline reruns idempotency. Entries are keyed by a stable fingerprint over
// (stage name, normalized stage inputs, config version); the index lives in
// SQLite next to a blob directory for binary artifacts. Concurrent producers
// for the same fingerprint are collapsed by single-flight, and eviction is
// bounded by total size, entry age, and a free-space floor. Storage failures
// are always recoverable: callers treat them as a miss and recompute.
package cache
