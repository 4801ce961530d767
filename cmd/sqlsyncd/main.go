// Command sqlsyncd runs a demo synchronizer for the foos table: it keeps
// an in-memory set of Foo records reconciled against the configured
// database and logs every applied change. It is the reference host loop
// for the engine; real hosts embed a Syncer and call Tick from their own
// frame loop instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/basket/sqlsync/internal/bus"
	"github.com/basket/sqlsync/internal/config"
	"github.com/basket/sqlsync/internal/cron"
	"github.com/basket/sqlsync/internal/db"
	"github.com/basket/sqlsync/internal/engine"
	otelx "github.com/basket/sqlsync/internal/otel"
)

// Version is set via ldflags at build time: -ldflags "-X main.Version=..."
var Version = "v0.1-dev"

const drainTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sqlsyncd:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "sqlsync.yaml", "path to config file")
		dbURL      = flag.String("db", "", "database url (overrides config)")
		schemaPath = flag.String("schema", "", "apply DDL file before syncing")
		insertText = flag.String("insert", "", "insert a foos row with this text, with trigger fan-out")
		once       = flag.Bool("once", false, "exit after the initial sync settles")
		version    = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Println("sqlsyncd", Version)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *dbURL != "" {
		cfg.Database.URL = *dbURL
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := otelx.Init(ctx, cfg.Otel)
	if err != nil {
		return fmt.Errorf("init otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()
	metrics, err := otelx.NewMetrics(provider.Meter)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	pool, err := db.Open(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer pool.Close()

	if *schemaPath != "" {
		ddl, err := os.ReadFile(*schemaPath)
		if err != nil {
			return fmt.Errorf("read schema: %w", err)
		}
		if err := pool.Exec(ctx, string(ddl)); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		logger.Info("schema applied", "path", *schemaPath)
	}

	eventBus := bus.New()
	syncer, err := engine.New(engine.Config[int64, Foo]{
		Pool:      pool,
		Decode:    decodeFoo,
		Bus:       eventBus,
		QueueSize: cfg.QueueSize,
		Logger:    logger,
		Tracer:    provider.Tracer,
		Metrics:   metrics,
	})
	if err != nil {
		return fmt.Errorf("create syncer: %w", err)
	}

	scheduler, err := newScheduler(cfg, syncer, logger)
	if err != nil {
		return err
	}
	if scheduler != nil {
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	// Watch trigger fan-out alongside the tick reports.
	recordSub := eventBus.Subscribe("record.")
	defer eventBus.Unsubscribe(recordSub)
	go logRecordEvents(logger, recordSub)

	// Initial authoritative sync, then the optional demo insert.
	syncer.Submit(ctx, engine.NewQuery("SELECT * FROM foos").AsFullSync())
	if *insertText != "" {
		syncer.Submit(ctx, insertRequest(cfg.Database.URL, *insertText))
	}

	logger.Info("sqlsyncd started",
		"version", Version,
		"database", cfg.Database.URL,
		"tick_interval", cfg.TickInterval(),
	)

	ticker := time.NewTicker(cfg.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drain(syncer, logger)
			logger.Info("sqlsyncd stopped", "live_records", syncer.Len())
			return nil
		case <-ticker.C:
			report := syncer.Tick()
			logReport(logger, syncer, report)
			if *once && syncer.InFlight() == 0 && scheduler == nil {
				logger.Info("initial sync settled", "live_records", syncer.Len(), "keys", syncer.Keys())
				return nil
			}
		}
	}
}

// insertRequest builds the demo INSERT with the backend's placeholder
// dialect; RETURNING * feeds the new row straight back into the live set.
func insertRequest(url, text string) engine.Request {
	stmt := "INSERT INTO foos (text) VALUES (?) RETURNING *"
	if strings.HasPrefix(url, "postgres") {
		stmt = "INSERT INTO foos (text) VALUES ($1) RETURNING *"
	}
	return engine.NewQuery(stmt, text).WithTrigger()
}

func newScheduler(cfg config.Config, syncer *engine.Syncer[int64, Foo], logger *slog.Logger) (*cron.Scheduler, error) {
	if len(cfg.Schedules) == 0 {
		return nil, nil
	}
	schedules := make([]cron.Schedule, 0, len(cfg.Schedules))
	for _, sc := range cfg.Schedules {
		schedules = append(schedules, cron.Schedule{
			Name:    sc.Name,
			Expr:    sc.Cron,
			SQL:     sc.SQL,
			Mode:    parseMode(sc.Mode),
			Trigger: sc.Trigger,
		})
	}
	scheduler, err := cron.NewScheduler(cron.Config{
		Target:    syncer,
		Schedules: schedules,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return scheduler, nil
}

func parseMode(mode string) engine.Mode {
	switch mode {
	case "full_sync":
		return engine.ModeFullSync
	case "delete":
		return engine.ModeDelete
	default:
		return engine.ModeQuery
	}
}

func logReport(logger *slog.Logger, syncer *engine.Syncer[int64, Foo], report engine.Report[int64, Foo]) {
	for _, ch := range report.Changes {
		switch ch.Op {
		case engine.OpRemoved:
			logger.Info("record removed", "key", ch.Key, "was", ch.Old)
		default:
			logger.Info("record "+ch.Op.String(), "key", ch.Key, "now", ch.New)
		}
	}
	for _, f := range report.Failures {
		logger.Error("query failed", "request_id", f.Request.ID, "error", f.Err)
	}
	if !report.Empty() {
		logger.Info("live set", "records", syncer.Len())
	}
}

func logRecordEvents(logger *slog.Logger, sub *bus.Subscription) {
	for event := range sub.Ch() {
		change, ok := event.Payload.(bus.RecordChange)
		if !ok {
			continue
		}
		logger.Debug("trigger fan-out",
			"topic", event.Topic,
			"request_id", change.RequestID,
			"key", change.Key,
		)
	}
}

// drain gives in-flight tasks a bounded window to finish so their
// outcomes are not lost; discarding them would also be safe.
func drain(syncer *engine.Syncer[int64, Foo], logger *slog.Logger) {
	deadline := time.Now().Add(drainTimeout)
	for syncer.InFlight() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
		syncer.Tick()
	}
	if n := syncer.InFlight(); n > 0 {
		logger.Warn("shutdown with tasks still in flight", "count", n)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
