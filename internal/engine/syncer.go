package engine

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/basket/sqlsync/internal/bus"
	"github.com/basket/sqlsync/internal/db"
	otelx "github.com/basket/sqlsync/internal/otel"
)

// Config holds the dependencies for a Syncer. Pool and Decode are
// required; everything else has a usable zero value.
type Config[K cmp.Ordered, T Record[K]] struct {
	Pool      db.Pool
	Decode    Decoder[T]
	Bus       *bus.Bus // optional; nil disables notifications
	QueueSize int
	Logger    *slog.Logger
	Tracer    trace.Tracer
	Metrics   *otelx.Metrics
}

// Failure pairs a failed request with its error for the tick report.
type Failure struct {
	Request Request
	Err     error
}

// Report is everything one tick applied: changes in application order and
// one failure entry per errored outcome. Both empty when nothing finished.
type Report[K cmp.Ordered, T Record[K]] struct {
	Changes  []Change[K, T]
	Failures []Failure
}

// Empty reports whether the tick applied and surfaced nothing.
func (r Report[K, T]) Empty() bool {
	return len(r.Changes) == 0 && len(r.Failures) == 0
}

// Syncer keeps one record type's in-memory set synchronized with its
// database. Submit hands requests to the bridge; Tick, called once per
// host loop iteration, polls finished work and reconciles it in. The
// record map is touched only inside Tick, on the caller's goroutine.
type Syncer[K cmp.Ordered, T Record[K]] struct {
	bridge  *Bridge[K, T]
	records map[K]T
	bus     *bus.Bus
	logger  *slog.Logger
	metrics *otelx.Metrics
}

// New wires a Syncer for one record type against the given pool.
func New[K cmp.Ordered, T Record[K]](cfg Config[K, T]) (*Syncer[K, T], error) {
	if cfg.Pool == nil {
		return nil, errors.New("sqlsync: pool is required")
	}
	if cfg.Decode == nil {
		return nil, errors.New("sqlsync: decoder is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bridge := NewBridge(BridgeConfig[K, T]{
		Pool:      cfg.Pool,
		Decode:    cfg.Decode,
		QueueSize: cfg.QueueSize,
		Logger:    logger,
		Tracer:    cfg.Tracer,
		Metrics:   cfg.Metrics,
	})
	return &Syncer[K, T]{
		bridge:  bridge,
		records: make(map[K]T),
		bus:     cfg.Bus,
		logger:  logger,
		metrics: cfg.Metrics,
	}, nil
}

// Submit enqueues a request for background execution and returns
// immediately. Results land in a later Tick. Safe from any goroutine;
// only Tick is bound to the consumer's.
func (s *Syncer[K, T]) Submit(ctx context.Context, req Request) {
	s.publish(bus.TopicQuerySubmitted, bus.QueryEvent{
		RequestID: req.ID.String(),
		SQL:       req.Label(),
		Mode:      req.Mode.String(),
	})
	s.bridge.Submit(ctx, req)
}

// Tick polls the bridge and reconciles every finished outcome into the
// live set. Failed outcomes leave the set untouched and surface in the
// report's failures. Never blocks; with nothing finished it performs
// zero mutations.
func (s *Syncer[K, T]) Tick() Report[K, T] {
	var report Report[K, T]
	for _, oc := range s.bridge.Poll() {
		if oc.Err != nil {
			report.Failures = append(report.Failures, Failure{Request: oc.Request, Err: oc.Err})
			s.reportFailure(oc)
			continue
		}
		changes := s.apply(oc)
		report.Changes = append(report.Changes, changes...)
		s.reportSuccess(oc, changes)
	}
	return report
}

// apply reconciles one successful outcome per its request's mode.
func (s *Syncer[K, T]) apply(oc Outcome[K, T]) []Change[K, T] {
	switch oc.Request.Mode {
	case ModeDelete:
		return ReconcileDelete(s.records, oc.Rows)
	case ModeFullSync:
		return ReconcileFull(s.records, oc.Rows)
	default:
		return Reconcile(s.records, oc.Rows)
	}
}

func (s *Syncer[K, T]) reportSuccess(oc Outcome[K, T], changes []Change[K, T]) {
	req := oc.Request
	s.publish(bus.TopicQueryCompleted, bus.QueryEvent{
		RequestID: req.ID.String(),
		SQL:       req.Label(),
		Mode:      req.Mode.String(),
		RowCount:  len(oc.Rows),
	})
	if req.Trigger {
		for _, ch := range changes {
			s.publish(topicFor(ch.Op), bus.RecordChange{
				RequestID: req.ID.String(),
				Op:        ch.Op.String(),
				Key:       ch.Key,
				Record:    recordPayload(ch),
			})
		}
	}
	if len(changes) > 0 {
		s.logger.Debug("reconciled",
			"request_id", req.ID,
			"mode", req.Mode.String(),
			"rows", len(oc.Rows),
			"changes", len(changes),
			"live", len(s.records),
		)
	}
	s.count(changes)
}

func (s *Syncer[K, T]) reportFailure(oc Outcome[K, T]) {
	req := oc.Request
	kind := string(KindQuery)
	var qe *QueryError
	if errors.As(oc.Err, &qe) {
		kind = string(qe.Kind)
	}
	s.publish(bus.TopicQueryFailed, bus.QueryFailure{
		RequestID: req.ID.String(),
		SQL:       req.Label(),
		Kind:      kind,
		Err:       oc.Err,
	})
	s.logger.Warn("query outcome failed",
		"request_id", req.ID,
		"kind", kind,
		"error", oc.Err,
	)
}

func (s *Syncer[K, T]) count(changes []Change[K, T]) {
	if s.metrics == nil || len(changes) == 0 {
		return
	}
	ctx := context.Background()
	var delta int64
	for _, ch := range changes {
		s.metrics.ChangesApplied.Add(ctx, 1,
			metric.WithAttributes(attribute.String("op", ch.Op.String())))
		switch ch.Op {
		case OpInserted:
			delta++
		case OpRemoved:
			delta--
		}
	}
	if delta != 0 {
		s.metrics.LiveRecords.Add(ctx, delta)
	}
}

func (s *Syncer[K, T]) publish(topic string, payload any) {
	if s.bus != nil {
		s.bus.Publish(topic, payload)
	}
}

func topicFor(op Op) string {
	switch op {
	case OpUpdated:
		return bus.TopicRecordUpdated
	case OpRemoved:
		return bus.TopicRecordRemoved
	default:
		return bus.TopicRecordInserted
	}
}

// recordPayload picks the value a change notification carries: the new
// record for inserts and updates, nil for removals.
func recordPayload[K cmp.Ordered, T Record[K]](ch Change[K, T]) any {
	if ch.Op == OpRemoved {
		return nil
	}
	return ch.New
}

// Get returns the live record for key, if any.
func (s *Syncer[K, T]) Get(key K) (T, bool) {
	rec, ok := s.records[key]
	return rec, ok
}

// Len returns the number of live records.
func (s *Syncer[K, T]) Len() int {
	return len(s.records)
}

// Keys returns the live primary keys in ascending order.
func (s *Syncer[K, T]) Keys() []K {
	keys := slices.Collect(maps.Keys(s.records))
	slices.Sort(keys)
	return keys
}

// Snapshot returns a copy of the live set. The copy is the caller's; the
// Syncer keeps mutating its own map on later ticks.
func (s *Syncer[K, T]) Snapshot() map[K]T {
	return maps.Clone(s.records)
}

// InFlight reports how many submitted requests have not yet completed.
func (s *Syncer[K, T]) InFlight() int {
	return s.bridge.InFlight()
}
