// Package main hosts the jobsearch ingestion service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, live search and stored
//     query endpoints. Live search results are returned to the caller and handed
//     to the dispatcher without waiting for persistence.
//   - Dispatcher & queues: one in-memory FIFO per record kind, each drained by a
//     single persistence worker that owns a dedicated Postgres connection and
//     upserts by id.
//   - Stored queries: the filter spec is compiled by internal/query into one
//     parameterized SELECT and executed on a pgx pool.
//   - Source: internal/source/hh calls the vacancy JSON API and scrapes resume
//     pages through the Colly fetcher, paced per host by a token bucket.
//
// Operational notes:
//   - Configure via config.yaml or JOBSEARCH_* environment variables, at minimum
//     JOBSEARCH_DB_DSN.
//   - Run locally: go run ./cmd/jobsearch serve --config config.yaml
//   - SIGINT/SIGTERM stops HTTP first, then drains queues within
//     worker.shutdown_timeout.
package main
