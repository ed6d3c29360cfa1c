package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/jobsearch-ingest/internal/query"
	"github.com/JakeFAU/jobsearch-ingest/internal/records"
)

// PoolConfig controls the connection pool behind a Reader.
type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	ConnectTimeout  time.Duration
}

type queryPool interface {
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Ping(context.Context) error
	Close()
}

// Reader runs compiled stored queries. It is safe for concurrent use.
type Reader struct {
	pool queryPool
}

// NewReader opens a pool for read traffic.
func NewReader(ctx context.Context, cfg PoolConfig) (*Reader, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Reader{pool: pool}, nil
}

// NewReaderWithPool wraps an existing pool (primarily for testing).
func NewReaderWithPool(pool queryPool) (*Reader, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Reader{pool: pool}, nil
}

// Vacancies runs plan against the vacancies table. The result is never nil.
func (r *Reader) Vacancies(ctx context.Context, plan query.Plan) ([]records.Vacancy, error) {
	out := []records.Vacancy{}
	err := r.each(ctx, plan, func(row map[string]any) error {
		v, err := decodeVacancy(row)
		if err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query vacancies: %w", err)
	}
	return out, nil
}

// Resumes runs plan against the resumes table. The result is never nil.
func (r *Reader) Resumes(ctx context.Context, plan query.Plan) ([]records.Resume, error) {
	out := []records.Resume{}
	err := r.each(ctx, plan, func(row map[string]any) error {
		res, err := decodeResume(row)
		if err != nil {
			return err
		}
		out = append(out, res)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query resumes: %w", err)
	}
	return out, nil
}

// Query runs plan against the table for kind and returns []records.Vacancy or
// []records.Resume.
func (r *Reader) Query(ctx context.Context, plan query.Plan, kind records.Kind) (any, error) {
	switch kind {
	case records.KindVacancy:
		return r.Vacancies(ctx, plan)
	case records.KindResume:
		return r.Resumes(ctx, plan)
	default:
		return nil, fmt.Errorf("unsupported record kind %q", kind)
	}
}

// Ping checks the pool can reach the database.
func (r *Reader) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases the pool.
func (r *Reader) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

// Executor exposes the pool for DDL when it supports Exec.
func (r *Reader) Executor() (Execer, bool) {
	e, ok := r.pool.(Execer)
	return e, ok
}

func (r *Reader) each(ctx context.Context, plan query.Plan, fn func(map[string]any) error) error {
	rows, err := r.pool.Query(ctx, plan.SQL, plan.Args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		if names == nil {
			for _, fd := range rows.FieldDescriptions() {
				names = append(names, fd.Name)
			}
		}
		values, err := rows.Values()
		if err != nil {
			return fmt.Errorf("read row: %w", err)
		}
		if len(values) != len(names) {
			return fmt.Errorf("row has %d values for %d columns", len(values), len(names))
		}
		row := make(map[string]any, len(names))
		for i, name := range names {
			row[name] = values[i]
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}
