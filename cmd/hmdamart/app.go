package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"hmdamart/internal/events"
	"hmdamart/internal/incremental"
	incmetrics "hmdamart/internal/incremental/metrics"
	"hmdamart/internal/lock"
	"hmdamart/internal/materialize"
	"hmdamart/internal/platform/config"
	"hmdamart/internal/platform/kafka"
	"hmdamart/internal/platform/postgres"
	redisclient "hmdamart/internal/platform/redis"
	"hmdamart/internal/store/derived"
	"hmdamart/internal/store/source"
	"hmdamart/internal/tiering"
	httptransport "hmdamart/internal/transport/http"
)

// app owns every long-lived handle a command opens.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry

	db      *sql.DB
	derived *derived.PostgresStore
	tiers   *tiering.Service

	pool       *pgxpool.Pool
	redis      *redisclient.Client
	kafka      *kgo.Client
	controller *incremental.Controller
}

func newApp(cfg config.Config, logger *slog.Logger) *app {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &app{cfg: cfg, logger: logger, registry: reg}
}

// openStore connects the derived store and the tier lookups that read it.
func (a *app) openStore(ctx context.Context) error {
	db, err := postgres.OpenDB(ctx, a.cfg.Derived.DSN)
	if err != nil {
		return fmt.Errorf("derived store: %w", err)
	}
	a.db = db
	a.derived = derived.NewPostgres(db)
	if a.cfg.Derived.EnsureSchema {
		if err := a.derived.EnsureSchema(ctx); err != nil {
			return err
		}
	}
	a.tiers, err = tiering.New(a.derived, tiering.WithLogger(a.logger))
	return err
}

// openPipeline connects the source feed and the optional lock and event
// backends, then builds the controller. openStore must have run.
func (a *app) openPipeline(ctx context.Context) error {
	dsn := a.cfg.Source.DSN
	if dsn == "" {
		dsn = a.cfg.Derived.DSN
	}
	pool, err := postgres.OpenPool(ctx, dsn)
	if err != nil {
		return fmt.Errorf("source feed: %w", err)
	}
	a.pool = pool

	m := a.cfg.Materialize
	opts := []incremental.Option{
		incremental.WithLogger(a.logger),
		incremental.WithMetrics(incmetrics.New(a.registry)),
		incremental.WithMaterializer(materialize.New(
			materialize.WithWorkers(m.Workers),
			materialize.WithChunkSize(m.ChunkSize),
		)),
		incremental.WithFloor(m.FloorYear),
		incremental.WithBatchSize(m.BatchSize),
		incremental.WithRetryPolicy(incremental.RetryPolicy{
			MaxAttempts:     m.MaxAttempts,
			InitialInterval: m.InitialBackoff,
			MaxInterval:     m.MaxBackoff,
		}),
	}

	if a.redis, err = redisclient.New(ctx, a.cfg.Redis); err != nil {
		return err
	}
	if a.redis != nil {
		opts = append(opts, incremental.WithLocker(lock.NewRedis(a.redis.Client,
			lock.WithTTL(a.cfg.Redis.LockTTL),
			lock.WithLogger(a.logger),
		)))
	} else {
		a.logger.WarnContext(ctx, "redis not configured, runs are serialized within this process only")
	}

	if a.kafka, err = kafka.New(ctx, a.cfg.Kafka); err != nil {
		return err
	}
	if a.kafka != nil {
		k := a.cfg.Kafka
		if err := events.EnsureTopic(ctx, kadm.NewClient(a.kafka), k.Topic, k.Partitions, k.ReplicationFactor); err != nil {
			return err
		}
		opts = append(opts, incremental.WithPublisher(events.NewKafkaPublisher(a.kafka, k.Topic)))
	}

	a.controller, err = incremental.New(source.NewPostgres(a.pool, source.WithTable(a.cfg.Source.Table)), a.derived, opts...)
	return err
}

// checks reports reachability of every open backend.
func (a *app) checks() map[string]httptransport.Check {
	out := map[string]httptransport.Check{}
	if a.db != nil {
		out["derived"] = a.db.PingContext
	}
	if a.pool != nil {
		out["source"] = a.pool.Ping
	}
	if a.redis != nil {
		out["redis"] = a.redis.Health
	}
	if a.kafka != nil {
		out["kafka"] = a.kafka.Ping
	}
	return out
}

func (a *app) Close() error {
	var errs []error
	if a.kafka != nil {
		a.kafka.Close()
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
