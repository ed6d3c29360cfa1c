package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobsearch-ingest/internal/query"
	"github.com/JakeFAU/jobsearch-ingest/internal/records"
	"github.com/JakeFAU/jobsearch-ingest/internal/source/hh"
)

// errUnprocessable marks query parameters that are not the expected type.
var errUnprocessable = errors.New("unprocessable parameter")

func (s *Server) searchVacancies(w http.ResponseWriter, r *http.Request) {
	params, err := parseSearchParams(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	found, err := s.searcher.SearchVacancies(r.Context(), params)
	if err != nil || len(found) == 0 {
		s.searchFailed(w, r, records.KindVacancy, err)
		return
	}
	for _, v := range found {
		s.enqueue(r, v)
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) searchResumes(w http.ResponseWriter, r *http.Request) {
	params, err := parseSearchParams(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	found, err := s.searcher.SearchResumes(r.Context(), params)
	if err != nil || len(found) == 0 {
		s.searchFailed(w, r, records.KindResume, err)
		return
	}
	for _, res := range found {
		s.enqueue(r, res)
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) searchFailed(w http.ResponseWriter, r *http.Request, kind records.Kind, err error) {
	if err == nil {
		err = hh.ErrNoResults
	}
	s.logger.Warn("search failed",
		zap.String("request_id", RequestID(r.Context())),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to fetch %s", kind))
}

// enqueue never blocks the response; a rejected record is only logged.
func (s *Server) enqueue(r *http.Request, rec records.Record) {
	if s.pipeline == nil || s.pipeline.Enqueue(rec) {
		return
	}
	s.logger.Warn("record not queued for persistence",
		zap.String("request_id", RequestID(r.Context())),
		zap.String("kind", string(rec.Kind())),
		zap.String("id", rec.Key()),
	)
}

func (s *Server) storedQuery(kind records.Kind) http.HandlerFunc {
	schema, err := query.SchemaFor(kind)
	if err != nil {
		panic(err)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, err := intParam(q, "page", 0)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		limit, err := intParam(q, "limit", s.opts.DefaultLimit)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		if limit > s.opts.MaxLimit {
			limit = s.opts.MaxLimit
		}

		spec, err := query.ParseSpec(q.Get("filter"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		plan, err := query.Compile(schema, page, limit, spec)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		rows, err := s.reader.Query(r.Context(), plan, kind)
		if err != nil {
			s.logger.Error("stored query failed",
				zap.String("request_id", RequestID(r.Context())),
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "failed to query store")
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func parseSearchParams(q url.Values) (hh.SearchParams, error) {
	page, err := intParam(q, "page", 0)
	if err != nil {
		return hh.SearchParams{}, err
	}
	if page < 0 {
		return hh.SearchParams{}, fmt.Errorf("%w: page must be >= 0", errUnprocessable)
	}
	params := hh.SearchParams{
		Page:       page,
		Text:       strings.TrimSpace(q.Get("text")),
		Experience: strings.TrimSpace(q.Get("experience")),
		Schedule:   strings.TrimSpace(q.Get("schedule")),
		Employment: strings.TrimSpace(q.Get("employment")),
	}
	if raw := strings.TrimSpace(q.Get("salary")); raw != "" {
		salary, err := strconv.Atoi(raw)
		if err != nil {
			return hh.SearchParams{}, fmt.Errorf("%w: salary must be an integer", errUnprocessable)
		}
		params.Salary = &salary
	}
	return params, nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errUnprocessable, name)
	}
	return n, nil
}
