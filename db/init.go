package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/gomantics/gitwatch/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:embed schema/*.sql
var embedSchema embed.FS

var defaultPool *pgxpool.Pool

// ErrDisabled is returned by queries when no database is configured.
var ErrDisabled = errors.New("database disabled")

// Init connects to the database and applies the schema. Without a DSN the
// database stays disabled and persistence falls back to memory.
func Init(lc fx.Lifecycle, l *zap.Logger) error {
	dsn := config.Database.Dsn()
	if dsn == "" {
		l.Info("no database configured, last-seen commits are kept in memory")
		return nil
	}

	ctx := context.Background()

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("failed to parse database config: %w", err)
	}

	// One writer per poll run plus API reads.
	poolConfig.MaxConns = 4
	poolConfig.MinConns = 1
	poolConfig.MaxConnIdleTime = 10 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("database unreachable: %w", err)
	}
	defaultPool = pool

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			l.Info("closing database pool")
			defaultPool.Close()
			defaultPool = nil
			return nil
		},
	})

	if err := ApplySchema(ctx, l); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	l.Info("cursor database ready", zap.String("host", poolConfig.ConnConfig.Host))
	return nil
}

// Enabled reports whether a database pool is available.
func Enabled() bool {
	return defaultPool != nil
}

// Ping checks the connection. It returns ErrDisabled without a database.
func Ping(ctx context.Context) error {
	if defaultPool == nil {
		return ErrDisabled
	}
	return defaultPool.Ping(ctx)
}

// ApplySchema runs every embedded schema file in name order. The files are
// idempotent, so this runs on every start.
func ApplySchema(ctx context.Context, l *zap.Logger) error {
	if defaultPool == nil {
		return ErrDisabled
	}

	files, err := fs.Glob(embedSchema, "schema/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)

	conn, err := defaultPool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	for _, file := range files {
		sql, err := embedSchema.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		if _, err := conn.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("failed to apply %s: %w", file, err)
		}
		l.Debug("schema applied", zap.String("file", file))
	}
	return nil
}
