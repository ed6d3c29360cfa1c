package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JakeFAU/jobsearch-ingest/internal/records"
)

// IsConnectionError reports whether err may mean the connection itself is gone.
// Errors raised by the server for a single statement, and records rejected
// before reaching the wire, leave the connection usable and return false.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return false
	}
	if errors.Is(err, records.ErrMissingKey) || errors.Is(err, errUnsupportedRecord) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
