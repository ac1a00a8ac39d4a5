package postgres

import (
	"context"
	"errors"
	"time"

	"vms/ticket-service/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PoolConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	MaxConnIdle    time.Duration
	AcquireTimeout time.Duration
}

// NewPool builds the process-wide connection pool. Callers own its lifecycle:
// created at startup, closed on shutdown.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnIdle > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdle
	}
	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// acquire checks a connection out of the pool with a bounded wait. A pool
// exhausted past the acquire timeout surfaces store.ErrPoolTimeout instead of
// blocking the request indefinitely.
func (s *Store) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	acquireCtx := ctx
	if s.acquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, s.acquireTimeout)
		defer cancel()
	}
	conn, err := s.pool.Acquire(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, store.ErrPoolTimeout
		}
		return nil, err
	}
	return conn, nil
}

// withConn runs fn on a pooled connection, releasing it on every exit path.
func (s *Store) withConn(ctx context.Context, fn func(conn *pgxpool.Conn) error) error {
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return fn(conn)
}
