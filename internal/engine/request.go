package engine

import (
	"github.com/google/uuid"
)

// Mode controls how a request's result rows are reconciled.
type Mode int

const (
	// ModeQuery upserts returned rows. Keys absent from the result are
	// left alone, so a narrow SELECT never evicts unrelated records.
	ModeQuery Mode = iota

	// ModeFullSync treats the result as the authoritative table state:
	// rows are upserted and every live record not named in the result is
	// removed.
	ModeFullSync

	// ModeDelete treats returned rows as deletions: each returned key is
	// removed from the live set. Pair with DELETE ... RETURNING *.
	ModeDelete
)

func (m Mode) String() string {
	switch m {
	case ModeQuery:
		return "query"
	case ModeFullSync:
		return "full_sync"
	case ModeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Request is one SQL statement bound to a record type's synchronizer.
// Requests are immutable values consumed exactly once by the bridge; the
// With/As helpers return modified copies.
type Request struct {
	ID      uuid.UUID
	SQL     string
	Args    []any
	Mode    Mode
	Trigger bool
}

// NewQuery builds a ModeQuery request with a fresh ID. Args are bound
// positionally with the backend's own placeholder syntax (? for SQLite,
// $1 for Postgres); the engine passes them through untouched.
func NewQuery(sql string, args ...any) Request {
	return Request{ID: uuid.New(), SQL: sql, Args: args}
}

// WithTrigger returns a copy whose applied changes are fanned out on the
// event bus after reconciliation.
func (r Request) WithTrigger() Request {
	r.Trigger = true
	return r
}

// AsFullSync returns a copy reconciled in ModeFullSync.
func (r Request) AsFullSync() Request {
	r.Mode = ModeFullSync
	return r
}

// AsDelete returns a copy reconciled in ModeDelete.
func (r Request) AsDelete() Request {
	r.Mode = ModeDelete
	return r
}

// Label is a short form of the statement for logs and spans.
func (r Request) Label() string {
	const max = 60
	if len(r.SQL) <= max {
		return r.SQL
	}
	return r.SQL[:max] + "..."
}
