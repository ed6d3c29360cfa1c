// Package api hosts the HTTP gateway. Routes:
//   - GET /health for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /search/vacancies and /search/resumes query the job board live and
//     hand every result to the ingestion pipeline.
//   - GET /store/vacancies and /store/resumes run a filtered, paged query over
//     persisted records. /db/... are kept as aliases.
package api
