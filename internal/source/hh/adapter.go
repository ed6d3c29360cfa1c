// Package hh is the source adapter for the hh.ru job board. Vacancies come from
// the public JSON API; resumes are scraped from the site's HTML pages.
package hh

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	collyfetcher "github.com/JakeFAU/jobsearch-ingest/internal/fetcher/colly"
	"github.com/JakeFAU/jobsearch-ingest/internal/metrics"
)

var (
	// ErrSourceUnavailable wraps every failure to obtain results from the board.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrNoResults is returned when the board answered but had nothing to offer.
	ErrNoResults = fmt.Errorf("%w: no results", ErrSourceUnavailable)
)

// Fetcher issues one GET.
type Fetcher interface {
	Fetch(ctx context.Context, req collyfetcher.Request) (collyfetcher.Response, error)
}

// Limiter paces outbound calls.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls the adapter's endpoints and timeouts.
type Config struct {
	APIBaseURL         string
	SiteBaseURL        string
	PerPage            int
	VacanciesTimeout   time.Duration
	ResumeTimeout      time.Duration
	ResumeLinksTimeout time.Duration
}

// SearchParams are the caller's search filters. Employment and Schedule may
// hold several comma-separated values.
type SearchParams struct {
	Page       int
	Text       string
	Experience string
	Schedule   string
	Employment string
	Salary     *int
}

// Adapter searches hh.ru.
type Adapter struct {
	cfg     Config
	fetcher Fetcher
	limiter Limiter
	logger  *zap.Logger
}

// New constructs an Adapter. limiter may be nil.
func New(cfg Config, fetcher Fetcher, limiter Limiter, logger *zap.Logger) (*Adapter, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.hh.ru"
	}
	if cfg.SiteBaseURL == "" {
		cfg.SiteBaseURL = "https://hh.ru"
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	cfg.SiteBaseURL = strings.TrimRight(cfg.SiteBaseURL, "/")
	if cfg.PerPage <= 0 {
		cfg.PerPage = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{cfg: cfg, fetcher: fetcher, limiter: limiter, logger: logger}, nil
}

func (a *Adapter) get(ctx context.Context, rawURL string, timeout time.Duration, accept string) ([]byte, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx, rawURL); err != nil {
			return nil, err
		}
	}
	req := collyfetcher.Request{URL: rawURL, Timeout: timeout}
	if accept != "" {
		req.Headers = map[string][]string{"Accept": {accept}}
	}
	resp, err := a.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func unavailable(kind string, err error) error {
	if errors.Is(err, ErrSourceUnavailable) {
		if errors.Is(err, ErrNoResults) {
			metrics.ObserveSourceRequest(kind, metrics.OutcomeEmpty)
		} else {
			metrics.ObserveSourceRequest(kind, metrics.OutcomeError)
		}
		return err
	}
	metrics.ObserveSourceRequest(kind, metrics.OutcomeError)
	return fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, kind, err)
}
