package hh

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobsearch-ingest/internal/metrics"
	"github.com/JakeFAU/jobsearch-ingest/internal/records"
)

// SearchResumes runs a site search, then fetches and scrapes each resume it
// links to. Pages that fail to load are skipped.
func (a *Adapter) SearchResumes(ctx context.Context, params SearchParams) ([]records.Resume, error) {
	const kind = string(records.KindResume)

	links, err := a.resumeLinks(ctx, params)
	if err != nil {
		return nil, unavailable(kind, err)
	}

	out := make([]records.Resume, 0, len(links))
	for _, link := range links {
		if ctx.Err() != nil {
			return nil, unavailable(kind, ctx.Err())
		}
		body, err := a.get(ctx, link, a.cfg.ResumeTimeout, "text/html")
		if err != nil {
			a.logger.Warn("skipping resume page", zap.String("url", link), zap.Error(err))
			continue
		}
		res, err := parseResume(body)
		if err != nil {
			a.logger.Warn("skipping unparseable resume page", zap.String("url", link), zap.Error(err))
			continue
		}
		res.ID = resumeID(link)
		if res.ID == "" {
			continue
		}
		out = append(out, res)
	}
	if len(out) == 0 {
		return nil, unavailable(kind, ErrNoResults)
	}
	metrics.ObserveSourceRequest(kind, metrics.OutcomeOK)
	a.logger.Debug("resumes fetched", zap.Int("count", len(out)), zap.Int("links", len(links)))
	return out, nil
}

func (a *Adapter) resumeLinks(ctx context.Context, params SearchParams) ([]string, error) {
	endpoint := a.cfg.SiteBaseURL + "/search/resume?" + resumeQuery(params, a.cfg.PerPage).Encode()
	body, err := a.get(ctx, endpoint, a.cfg.ResumeLinksTimeout, "text/html")
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}
	results := doc.Find(`[data-qa="resume-serp__results-search"]`).First()
	if results.Length() == 0 {
		return nil, fmt.Errorf("search page has no results block")
	}

	base, err := url.Parse(a.cfg.SiteBaseURL + "/")
	if err != nil {
		return nil, fmt.Errorf("parse site base url: %w", err)
	}
	seen := make(map[string]struct{})
	var links []string
	results.Find("a.bloko-link").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		link := base.ResolveReference(ref).String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	if len(links) == 0 {
		return nil, ErrNoResults
	}
	return links, nil
}

// resumeID is the last path segment of a resume link.
func resumeID(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	id := path.Base(strings.TrimRight(u.Path, "/"))
	if id == "." || id == "/" {
		return ""
	}
	return id
}

func parseResume(body []byte) (records.Resume, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return records.Resume{}, fmt.Errorf("parse resume page: %w", err)
	}
	page := resumePage{doc: doc}

	r := records.Resume{
		Gender:       page.text("resume-personal-gender"),
		Birthday:     page.text("resume-personal-birthday"),
		SearchStatus: page.text("job-search-status"),
		Address:      page.text("resume-personal-address"),
		Position:     page.text("resume-block-title-position"),
		About:        page.text("resume-block-skills-content"),
	}
	if age := page.text("resume-personal-age"); age != nil {
		r.Age, _ = leadingNumber(*age)
	}
	if spec := page.text("resume-block-position-specialization"); spec != nil {
		r.Specializations = splitList(*spec)
	}
	if sal := page.text("resume-block-salary"); sal != nil {
		amount, currency := leadingNumber(*sal)
		r.Salary = amount
		r.Currency = records.String(currency)
	}
	if travel := doc.Find("span.resume-block-travel-time").First(); travel.Length() > 0 {
		r.PreferredCommuteTime = records.String(clean(travel.Text()))
	}
	if skills := page.qa("skills-table"); skills.Length() > 0 {
		r.Skills = texts(skills.Find(`[data-qa="bloko-tag__text"]`))
	}
	if category := page.qa("resume-block-specialization-category"); category.Length() > 0 {
		lines := category.Parent().Parent().Find("p")
		if lines.Length() > 0 {
			r.Employment = labeledList(lines.Eq(0).Text())
		}
		if lines.Length() > 1 {
			r.Schedule = labeledList(lines.Eq(1).Text())
		}
	}
	if addr := page.qa("resume-personal-address"); addr.Length() > 0 {
		parts := strings.Split(clean(addr.Parent().Text()), ",")
		if len(parts) >= 2 {
			r.MovingStatus = records.String(strings.TrimSpace(parts[len(parts)-2]))
		}
	}
	if extra := page.qa("resume-block-additional"); extra.Length() > 0 {
		if p := extra.Find("p").First(); p.Length() > 0 {
			r.Citizenship = records.String(afterLabel(p.Text()))
		}
	}
	if langs := doc.Find(`p[data-qa="resume-block-language-item"]`); langs.Length() > 0 {
		r.Languages = texts(langs)
	}
	if names := page.qa("resume-block-education-name"); names.Length() > 0 {
		titles := texts(names)
		orgs := texts(page.qa("resume-block-education-organization"))
		n := min(len(titles), len(orgs))
		r.Education = make([]records.Education, 0, n)
		for i := 0; i < n; i++ {
			r.Education = append(r.Education, records.Education{titles[i], orgs[i]})
		}
	}
	return r, nil
}

type resumePage struct {
	doc *goquery.Document
}

func (p resumePage) qa(name string) *goquery.Selection {
	return p.doc.Find(`[data-qa="` + name + `"]`)
}

func (p resumePage) text(name string) *string {
	s := p.qa(name).First()
	if s.Length() == 0 {
		return nil
	}
	return records.String(clean(s.Text()))
}

func texts(s *goquery.Selection) []string {
	out := make([]string, 0, s.Length())
	s.Each(func(_ int, el *goquery.Selection) {
		out = append(out, clean(el.Text()))
	})
	return out
}

// afterLabel drops a leading "Label:" prefix.
func afterLabel(s string) string {
	s = clean(s)
	if i := strings.Index(s, ":"); i >= 0 {
		s = strings.ReplaceAll(s[i+1:], ":", "")
	}
	return strings.TrimSpace(s)
}

func labeledList(s string) []string {
	return splitList(afterLabel(s))
}

// leadingNumber reads digit groups such as "150 000" at the start of s and
// returns them as one number along with the first word that follows.
func leadingNumber(s string) (*int64, string) {
	var digits strings.Builder
	words := strings.Fields(clean(s))
	i := 0
	for ; i < len(words); i++ {
		if !isDigits(words[i]) {
			break
		}
		digits.WriteString(words[i])
	}
	var next string
	if i < len(words) {
		next = words[i]
	}
	if digits.Len() == 0 {
		return nil, next
	}
	n, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return nil, next
	}
	return &n, next
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
