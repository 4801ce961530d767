package engine

import "cmp"

// Outcome is the finished result of one request: either decoded rows, in
// the order the database returned them, or a QueryError. Produced once by
// the bridge's background task and consumed once by a tick.
type Outcome[K cmp.Ordered, T Record[K]] struct {
	Request Request
	Rows    []T
	Err     error
}
