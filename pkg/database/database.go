// Package database holds the PostgreSQL pool of the inventory service and the
// organization scoped transactions every write goes through.
package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/chefos/chefos-backend/pkg/config"
	"github.com/chefos/chefos-backend/pkg/logger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const healthTimeout = time.Second

// DB is the connection pool. Repositories reach it through Conn so that
// calls made inside WithOrg join the open transaction.
type DB struct {
	*sqlx.DB
	logger *logger.Logger
}

// Connect opens the pool sized from cfg and checks the server answers
func Connect(ctx context.Context, cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	pool, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("reach database %s: %w", cfg.Database, err)
	}

	log.Info().
		Str("database", cfg.Database).
		Int("max_open_conns", cfg.MaxOpenConns).
		Msg("connected to database")
	return Wrap(pool, log), nil
}

// Wrap adopts an existing sqlx handle (tests pass a sqlmock-backed one)
func Wrap(db *sqlx.DB, log *logger.Logger) *DB {
	if log == nil {
		log = logger.Nop()
	}
	return &DB{DB: db, logger: log}
}

// Health pings the server and reports pool usage
func (db *DB) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	stats := db.Stats()
	status := map[string]string{
		"status":     "up",
		"open_conns": strconv.Itoa(stats.OpenConnections),
		"in_use":     strconv.Itoa(stats.InUse),
		"wait_count": strconv.FormatInt(stats.WaitCount, 10),
	}
	if err := db.PingContext(ctx); err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
	}
	return status
}

// inTx runs fn in a new transaction, committing when it returns nil
func (db *DB) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error().Err(rbErr).Msg("failed to roll back transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
