package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes a failed query for reporting and metrics.
type Kind string

const (
	// KindConnection covers pool exhaustion and unreachable backends.
	KindConnection Kind = "CONNECTION"

	// KindQuery covers malformed SQL, constraint violations, and other
	// statement-level failures.
	KindQuery Kind = "QUERY"

	// KindDecode covers row shapes the record decoder cannot read.
	KindDecode Kind = "DECODE"
)

// QueryError is the error variant of a query outcome. It is data, not a
// crash: the bridge wraps every task failure into one and the polling
// side routes it to the failure report untouched.
type QueryError struct {
	Kind Kind
	SQL  string
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v (sql: %s)", strings.ToLower(string(e.Kind)), e.Err, e.SQL)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Classify maps a driver error to a Kind. Drivers do not share a sentinel
// vocabulary, so this inspects messages for known patterns and falls back
// to KindQuery.
func Classify(err error) Kind {
	if err == nil {
		return KindQuery
	}
	if errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return KindConnection
	}

	msg := strings.ToLower(err.Error())

	// Connection-level: refused/reset sockets, closed pools, dial failures.
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "closed pool") ||
		strings.Contains(msg, "pool closed") ||
		strings.Contains(msg, "database is closed") ||
		strings.Contains(msg, "bad connection") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "dial error") {
		return KindConnection
	}

	return KindQuery
}

// queryErr wraps a raw driver error with its classified kind.
func queryErr(sqlText string, err error) *QueryError {
	return &QueryError{Kind: Classify(err), SQL: sqlText, Err: err}
}

// decodeErr wraps a decoder failure.
func decodeErr(sqlText string, err error) *QueryError {
	return &QueryError{Kind: KindDecode, SQL: sqlText, Err: err}
}
