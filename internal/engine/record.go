// Package engine is the query-execution and row-reconciliation core. A
// caller submits SQL requests; the bridge runs each one on a background
// goroutine against the shared pool; a tick-driven consumer polls finished
// work and reconciles returned rows against the live record set by primary
// key. The consumer never blocks on I/O.
package engine

import "cmp"

// Record is the contract a row-backed type satisfies to participate in
// synchronization: a stable primary key and value equality, so the
// reconciler can tell a true update from a no-op. The comparable bound
// means record types hold only comparable fields.
type Record[K cmp.Ordered] interface {
	comparable
	PrimaryKey() K
}

// Row is the single-row view a decoder reads from. Satisfied by every
// db.Rows cursor.
type Row interface {
	Scan(dest ...any) error
}

// Decoder turns one result row into a record. Decoders run on background
// goroutines and must not touch shared state.
type Decoder[T any] func(Row) (T, error)
