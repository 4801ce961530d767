package otel

import "go.opentelemetry.io/otel/metric"

// Metrics holds all sqlsync metric instruments.
type Metrics struct {
	QueryDuration  metric.Float64Histogram
	RowsDecoded    metric.Int64Counter
	ChangesApplied metric.Int64Counter
	QueryErrors    metric.Int64Counter
	TasksInFlight  metric.Int64UpDownCounter
	LiveRecords    metric.Int64UpDownCounter
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.QueryDuration, err = meter.Float64Histogram("sqlsync.query.duration",
		metric.WithDescription("Database round trip duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.RowsDecoded, err = meter.Int64Counter("sqlsync.query.rows",
		metric.WithDescription("Rows decoded from completed queries"),
	)
	if err != nil {
		return nil, err
	}

	m.ChangesApplied, err = meter.Int64Counter("sqlsync.reconcile.changes",
		metric.WithDescription("Record changes applied by reconciliation"),
	)
	if err != nil {
		return nil, err
	}

	m.QueryErrors, err = meter.Int64Counter("sqlsync.query.errors",
		metric.WithDescription("Failed query outcomes by error kind"),
	)
	if err != nil {
		return nil, err
	}

	m.TasksInFlight, err = meter.Int64UpDownCounter("sqlsync.tasks.inflight",
		metric.WithDescription("Submitted query tasks not yet polled"),
	)
	if err != nil {
		return nil, err
	}

	m.LiveRecords, err = meter.Int64UpDownCounter("sqlsync.records.live",
		metric.WithDescription("Records currently held in the live set"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
