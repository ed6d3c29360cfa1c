package hh

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobsearch-ingest/internal/metrics"
	"github.com/JakeFAU/jobsearch-ingest/internal/records"
)

type named struct {
	Name string `json:"name"`
}

type salary struct {
	From     *int64  `json:"from"`
	To       *int64  `json:"to"`
	Currency *string `json:"currency"`
}

type snippet struct {
	Requirement    *string `json:"requirement"`
	Responsibility *string `json:"responsibility"`
}

type vacancyItem struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Area       *named  `json:"area"`
	Type       *named  `json:"type"`
	Employer   *named  `json:"employer"`
	Schedule   *named  `json:"schedule"`
	Experience *named  `json:"experience"`
	Employment *named  `json:"employment"`
	Snippet    snippet `json:"snippet"`
	Salary     *salary `json:"salary"`
}

type vacanciesPage struct {
	Items *[]vacancyItem `json:"items"`
	Found int            `json:"found"`
	Pages int            `json:"pages"`
}

// SearchVacancies queries the vacancies API for one page of results.
func (a *Adapter) SearchVacancies(ctx context.Context, params SearchParams) ([]records.Vacancy, error) {
	const kind = string(records.KindVacancy)
	endpoint := a.cfg.APIBaseURL + "/vacancies?" + vacancyQuery(params, a.cfg.PerPage).Encode()

	body, err := a.get(ctx, endpoint, a.cfg.VacanciesTimeout, "application/json")
	if err != nil {
		return nil, unavailable(kind, err)
	}
	var page vacanciesPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, unavailable(kind, fmt.Errorf("decode vacancies: %w", err))
	}
	if page.Items == nil {
		return nil, unavailable(kind, fmt.Errorf("decode vacancies: response has no items"))
	}

	out := make([]records.Vacancy, 0, len(*page.Items))
	for _, item := range *page.Items {
		if item.ID == "" {
			a.logger.Warn("skipping vacancy without id")
			continue
		}
		out = append(out, toVacancy(item))
	}
	if len(out) == 0 {
		return nil, unavailable(kind, ErrNoResults)
	}
	metrics.ObserveSourceRequest(kind, metrics.OutcomeOK)
	a.logger.Debug("vacancies fetched", zap.Int("count", len(out)), zap.Int("found", page.Found))
	return out, nil
}

func toVacancy(item vacancyItem) records.Vacancy {
	v := records.Vacancy{
		ID:             item.ID,
		Name:           records.String(item.Name),
		Area:           nameOf(item.Area),
		Type:           nameOf(item.Type),
		Employer:       nameOf(item.Employer),
		Schedule:       nameOf(item.Schedule),
		Experience:     nameOf(item.Experience),
		Employment:     nameOf(item.Employment),
		Responsibility: item.Snippet.Responsibility,
	}
	if item.Snippet.Requirement != nil {
		v.Requirement = records.String(stripHighlight(*item.Snippet.Requirement))
	}
	if item.Salary != nil {
		v.Currency = item.Salary.Currency
		v.AverageSalary = averageSalary(item.Salary)
	}
	return v
}

// averageSalary is the midpoint of a salary fork, or whichever bound is given.
func averageSalary(s *salary) *int64 {
	switch {
	case s.From != nil && s.To != nil:
		return records.Int((*s.From + *s.To) / 2)
	case s.From != nil:
		return records.Int(*s.From)
	case s.To != nil:
		return records.Int(*s.To)
	default:
		return nil
	}
}

func nameOf(n *named) *string {
	if n == nil {
		return nil
	}
	return records.String(n.Name)
}
