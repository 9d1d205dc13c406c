package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Database представляет подключение к базе данных.
type Database struct {
	Pool   *pgxpool.Pool
	logger *zap.Logger
}

// New создает пул подключений к PostgreSQL и проверяет его пингом.
func New(ctx context.Context, dsn string, maxConns int32, logger *zap.Logger) (*Database, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database dsn: %w", err)
	}

	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("connected to PostgreSQL", zap.Int32("maxConns", poolConfig.MaxConns))

	return &Database{Pool: pool, logger: logger}, nil
}

// Close закрывает пул подключений.
func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info("database connection pool closed")
	}
}
