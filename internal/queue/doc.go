// Package queue persists pipeline jobs in SQLite and exposes the
// status-driven operations the workflow manager polls against.
package queue
