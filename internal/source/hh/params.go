package hh

import (
	"net/url"
	"strconv"
	"strings"
)

func vacancyQuery(p SearchParams, perPage int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("per_page", strconv.Itoa(perPage))
	if p.Experience != "" {
		q.Set("experience", p.Experience)
	}
	if p.Text != "" {
		q.Set("text", p.Text)
	}
	for _, v := range splitList(p.Employment) {
		q.Add("employment", v)
	}
	for _, v := range splitList(p.Schedule) {
		q.Add("schedule", v)
	}
	if p.Salary != nil && *p.Salary > 0 {
		q.Set("salary", strconv.Itoa(*p.Salary))
		q.Set("only_with_salary", "true")
	}
	return q
}

// resumeQuery mirrors the site's own search form: free text searches the full
// resume over all time, and a salary becomes a window of plus or minus 10%.
func resumeQuery(p SearchParams, perPage int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("per_page", strconv.Itoa(perPage))
	if p.Experience != "" {
		q.Set("experience", p.Experience)
	}
	if p.Text != "" {
		q.Set("text", p.Text)
		q.Set("logic", "normal")
		q.Set("pos", "full_text")
		q.Set("exp_period", "all_time")
	}
	for _, v := range splitList(p.Employment) {
		q.Add("employment", v)
	}
	for _, v := range splitList(p.Schedule) {
		q.Add("schedule", v)
	}
	if p.Salary != nil && *p.Salary > 0 {
		s := *p.Salary
		q.Set("salary_from", strconv.Itoa(s*9/10))
		q.Set("salary_to", strconv.Itoa(s*11/10))
		q.Set("label", "only_with_salary")
	}
	return q
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
