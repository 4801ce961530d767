package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/basket/sqlsync/internal/db"
	otelx "github.com/basket/sqlsync/internal/otel"
)

// defaultQueueSize bounds the completion queue. A full queue back-pressures
// background tasks, never the polling side.
const defaultQueueSize = 64

// BridgeConfig holds the dependencies for a Bridge.
type BridgeConfig[K cmp.Ordered, T Record[K]] struct {
	Pool      db.Pool
	Decode    Decoder[T]
	QueueSize int // completion queue capacity; defaults to 64 if zero
	Logger    *slog.Logger
	Tracer    trace.Tracer
	Metrics   *otelx.Metrics
}

// Bridge runs query requests on background goroutines and hands finished
// outcomes back across a completion queue. Submit never blocks the
// caller; Poll never blocks the tick. All I/O and decoding happens on the
// background side; outcomes cross the queue as immutable values.
type Bridge[K cmp.Ordered, T Record[K]] struct {
	pool    db.Pool
	decode  Decoder[T]
	done    chan Outcome[K, T]
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *otelx.Metrics

	inFlight atomic.Int64
}

// NewBridge creates a Bridge from the given config.
func NewBridge[K cmp.Ordered, T Record[K]](cfg BridgeConfig[K, T]) *Bridge[K, T] {
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer(otelx.TracerName)
	}
	return &Bridge[K, T]{
		pool:    cfg.Pool,
		decode:  cfg.Decode,
		done:    make(chan Outcome[K, T], size),
		logger:  logger,
		tracer:  tracer,
		metrics: cfg.Metrics,
	}
}

// Submit enqueues the request for execution and returns immediately. The
// ctx bounds the background round trip: cancel it and the task completes
// with a connection-kind error outcome.
func (b *Bridge[K, T]) Submit(ctx context.Context, req Request) {
	b.inFlight.Add(1)
	if b.metrics != nil {
		b.metrics.TasksInFlight.Add(ctx, 1)
	}
	go b.run(ctx, req)
}

// Poll drains and returns every outcome whose task finished since the
// previous call, in completion order. It never blocks; with nothing
// finished it returns nil.
func (b *Bridge[K, T]) Poll() []Outcome[K, T] {
	var out []Outcome[K, T]
	for {
		select {
		case oc := <-b.done:
			out = append(out, oc)
		default:
			return out
		}
	}
}

// InFlight reports how many submitted tasks have not yet been delivered
// to the completion queue.
func (b *Bridge[K, T]) InFlight() int {
	return int(b.inFlight.Load())
}

// run executes one request. Every exit path, panics included, delivers
// exactly one outcome; a failed task is data on the queue, never a crash.
func (b *Bridge[K, T]) run(ctx context.Context, req Request) {
	start := time.Now()
	ctx, span := otelx.StartClientSpan(ctx, b.tracer, "sqlsync.query",
		otelx.AttrQueryID.String(req.ID.String()),
		otelx.AttrQueryMode.String(req.Mode.String()),
	)

	out := Outcome[K, T]{Request: req}
	func() {
		defer func() {
			if r := recover(); r != nil {
				out.Rows = nil
				out.Err = &QueryError{Kind: KindQuery, SQL: req.SQL, Err: fmt.Errorf("task panic: %v", r)}
			}
		}()
		out.Rows, out.Err = b.execute(ctx, req)
	}()

	elapsed := time.Since(start)
	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Error())
		b.logger.Warn("query failed",
			"request_id", req.ID,
			"sql", req.Label(),
			"elapsed", elapsed,
			"error", out.Err,
		)
	} else {
		span.SetAttributes(otelx.AttrRowCount.Int(len(out.Rows)))
		b.logger.Debug("query completed",
			"request_id", req.ID,
			"sql", req.Label(),
			"rows", len(out.Rows),
			"elapsed", elapsed,
		)
	}
	span.End()
	b.record(ctx, req, out, elapsed)
	if b.metrics != nil {
		b.metrics.TasksInFlight.Add(ctx, -1)
	}

	b.done <- out
	b.inFlight.Add(-1)
}

// execute runs the statement and decodes every row in the database's
// returned order.
func (b *Bridge[K, T]) execute(ctx context.Context, req Request) ([]T, error) {
	rows, err := b.pool.Query(ctx, req.SQL, req.Args...)
	if err != nil {
		return nil, queryErr(req.SQL, err)
	}
	defer rows.Close()

	var records []T
	for rows.Next() {
		rec, err := b.decode(rows)
		if err != nil {
			return nil, decodeErr(req.SQL, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, queryErr(req.SQL, err)
	}
	return records, nil
}

func (b *Bridge[K, T]) record(ctx context.Context, req Request, out Outcome[K, T], elapsed time.Duration) {
	if b.metrics == nil {
		return
	}
	mode := attribute.String("mode", req.Mode.String())
	b.metrics.QueryDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(mode))
	if out.Err != nil {
		var qe *QueryError
		kind := string(KindQuery)
		if errors.As(out.Err, &qe) {
			kind = string(qe.Kind)
		}
		b.metrics.QueryErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
		return
	}
	b.metrics.RowsDecoded.Add(ctx, int64(len(out.Rows)), metric.WithAttributes(mode))
}
