// Package database opens the PostgreSQL pool shared by the repositories and
// applies the embedded schema migrations.
package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/matheusmosca/retail-pos/internal/config"
)

// Connect builds the pgx pool and waits for the database to answer a ping.
func Connect(ctx context.Context, cfg config.Database, logger logrus.FieldLogger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse database config")
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MaxConnLifetime = cfg.ConnLifetime
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create connection pool")
	}

	retries := cfg.ConnectRetries
	if retries <= 0 {
		retries = 1
	}
	for i := 0; i < retries; i++ {
		if err = pool.Ping(ctx); err == nil {
			logger.WithField("database", cfg.Name).Info("✅ Connected to database with connection pool")
			return pool, nil
		}
		logger.Infof("⏳ Waiting for database... (%d/%d)", i+1, retries)

		select {
		case <-ctx.Done():
			pool.Close()
			return nil, errors.Wrap(ctx.Err(), "gave up waiting for database")
		case <-time.After(time.Second):
		}
	}

	pool.Close()
	return nil, errors.Wrapf(err, "failed to connect to database after %d attempts", retries)
}

// NewSQLX exposes the same pool through database/sql for the sqlx based
// read queries. Closing the returned DB does not close the pool.
func NewSQLX(pool *pgxpool.Pool) *sqlx.DB {
	return sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx")
}
