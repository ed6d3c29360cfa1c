// Package postgres persists vacancy and resume records and serves compiled
// stored queries against them.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JakeFAU/jobsearch-ingest/internal/query"
	"github.com/JakeFAU/jobsearch-ingest/internal/records"
)

// ConnConfig controls the single connection owned by a Writer.
type ConnConfig struct {
	DSN            string
	ConnectTimeout time.Duration
}

type conn interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Ping(context.Context) error
	Close(context.Context) error
}

// Writer upserts records over one dedicated connection. It is not safe for
// concurrent use; each persistence worker owns its own Writer.
type Writer struct {
	conn conn
}

var errUnsupportedRecord = errors.New("unsupported record type")

var (
	upsertVacancySQL = upsertStatement(query.VacancySchema)
	upsertResumeSQL  = upsertStatement(query.ResumeSchema)
)

// Connect opens a dedicated connection for a Writer.
func Connect(ctx context.Context, cfg ConnConfig) (*Writer, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	connCfg, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.ConnectTimeout > 0 {
		connCfg.ConnectTimeout = cfg.ConnectTimeout
	}
	c, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Writer{conn: c}, nil
}

// NewWriterWithConn wraps an existing connection (primarily for testing).
func NewWriterWithConn(c conn) (*Writer, error) {
	if c == nil {
		return nil, fmt.Errorf("connection is required")
	}
	return &Writer{conn: c}, nil
}

// Upsert dispatches on the record variant.
func (w *Writer) Upsert(ctx context.Context, rec records.Record) error {
	switch r := rec.(type) {
	case records.Vacancy:
		return w.UpsertVacancy(ctx, r)
	case *records.Vacancy:
		return w.UpsertVacancy(ctx, *r)
	case records.Resume:
		return w.UpsertResume(ctx, r)
	case *records.Resume:
		return w.UpsertResume(ctx, *r)
	default:
		return fmt.Errorf("%w: %T", errUnsupportedRecord, rec)
	}
}

// UpsertVacancy inserts v or overwrites every non-key column of the existing row.
func (w *Writer) UpsertVacancy(ctx context.Context, v records.Vacancy) error {
	if err := v.Validate(); err != nil {
		return err
	}
	args := []any{
		v.ID,
		v.Name,
		v.Area,
		v.AverageSalary,
		v.Currency,
		v.Type,
		v.Employer,
		v.Requirement,
		v.Responsibility,
		v.Schedule,
		v.Experience,
		v.Employment,
	}
	if _, err := w.conn.Exec(ctx, upsertVacancySQL, args...); err != nil {
		return fmt.Errorf("upsert vacancy %s: %w", v.ID, err)
	}
	return nil
}

// UpsertResume inserts r or overwrites every non-key column of the existing row.
func (w *Writer) UpsertResume(ctx context.Context, r records.Resume) error {
	if err := r.Validate(); err != nil {
		return err
	}
	lists := make(map[string]*string, 5)
	for name, list := range map[string][]string{
		"specializations": r.Specializations,
		"skills":          r.Skills,
		"employment":      r.Employment,
		"languages":       r.Languages,
		"schedule":        r.Schedule,
	} {
		text, err := records.EncodeStrings(list)
		if err != nil {
			return fmt.Errorf("resume %s %s: %w", r.ID, name, err)
		}
		lists[name] = text
	}
	education, err := records.EncodeEducation(r.Education)
	if err != nil {
		return fmt.Errorf("resume %s education: %w", r.ID, err)
	}
	args := []any{
		r.ID,
		r.Gender,
		r.Age,
		r.Birthday,
		r.SearchStatus,
		r.Address,
		r.Position,
		lists["specializations"],
		r.About,
		r.Salary,
		r.Currency,
		r.PreferredCommuteTime,
		lists["skills"],
		lists["employment"],
		r.MovingStatus,
		r.Citizenship,
		lists["languages"],
		education,
		lists["schedule"],
	}
	if _, err := w.conn.Exec(ctx, upsertResumeSQL, args...); err != nil {
		return fmt.Errorf("upsert resume %s: %w", r.ID, err)
	}
	return nil
}

// Ping checks the connection is still usable.
func (w *Writer) Ping(ctx context.Context) error {
	return w.conn.Ping(ctx)
}

// Close releases the connection.
func (w *Writer) Close(ctx context.Context) error {
	if w == nil || w.conn == nil {
		return nil
	}
	return w.conn.Close(ctx)
}

func upsertStatement(s query.Schema) string {
	cols := s.ColumnNames()
	placeholders := make([]string, len(cols))
	updates := make([]string, 0, len(cols)-1)
	for i, c := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if c != s.Key {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		s.Table,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		s.Key,
		strings.Join(updates, ", "),
	)
}
