package main

import (
	"context"
	"fmt"
	"time"

	"voice-ivr/internal/audit"
	"voice-ivr/internal/config"
	"voice-ivr/pkg/utils"
)

// auditLedger is the opened audit backend plus what it needs at shutdown
// and for readiness probes.
type auditLedger struct {
	repo   audit.Repository
	checks map[string]func(ctx context.Context) error
	closer func()
}

func (l auditLedger) Close() {
	if l.closer != nil {
		l.closer()
	}
}

func openAuditLedger(ctx context.Context, cfg config.Config) (auditLedger, error) {
	switch cfg.Audit.Backend {
	case config.AuditBackendPostgres:
		db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			return auditLedger{}, fmt.Errorf("postgres: %w", err)
		}
		repo, err := audit.NewPostgresRepo(db)
		if err == nil {
			err = repo.EnsureSchema(ctx)
		}
		if err != nil {
			_ = db.Close()
			return auditLedger{}, err
		}
		return auditLedger{
			repo: repo,
			checks: map[string]func(context.Context) error{
				"postgres": func(ctx context.Context) error { return utils.HealthCheck(ctx, db, 2*time.Second) },
			},
			closer: func() { _ = db.Close() },
		}, nil

	case config.AuditBackendRedis:
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			return auditLedger{}, fmt.Errorf("redis: %w", err)
		}
		repo, err := audit.NewRedisRepo(rdb, cfg.Audit.Stream, 0)
		if err != nil {
			_ = rdb.Close()
			return auditLedger{}, err
		}
		return auditLedger{
			repo: repo,
			checks: map[string]func(context.Context) error{
				"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			},
			closer: func() { _ = rdb.Close() },
		}, nil

	default:
		return auditLedger{repo: audit.NewMemoryRepo(10_000)}, nil
	}
}
