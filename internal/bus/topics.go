package bus

// Query lifecycle topics. One submitted event per request, then exactly
// one completed or failed event when its task finishes.
const (
	TopicQuerySubmitted = "query.submitted"
	TopicQueryCompleted = "query.completed"
	TopicQueryFailed    = "query.failed"
)

// Record change topics, published per applied change for requests that
// asked for trigger fan-out.
const (
	TopicRecordInserted = "record.inserted"
	TopicRecordUpdated  = "record.updated"
	TopicRecordRemoved  = "record.removed"
)

// QueryEvent is published on query.submitted and query.completed.
type QueryEvent struct {
	RequestID string // request UUID
	SQL       string // statement text (shortened for display by consumers)
	Mode      string // query, full_sync, or delete
	RowCount  int    // decoded rows; zero on submitted
}

// QueryFailure is published on query.failed. The live record set was left
// untouched; resubmission is the caller's call.
type QueryFailure struct {
	RequestID string
	SQL       string
	Kind      string // CONNECTION, QUERY, or DECODE
	Err       error
}

// RecordChange is published on record.* topics. Key is the record's
// primary key; Record is the post-change value (nil for removals).
type RecordChange struct {
	RequestID string
	Op        string // inserted, updated, or removed
	Key       any
	Record    any
}
