package postgres

import (
	"fmt"

	"github.com/JakeFAU/jobsearch-ingest/internal/records"
)

func decodeVacancy(row map[string]any) (records.Vacancy, error) {
	d := decoder{row: row}
	v := records.Vacancy{
		ID:             d.key("id"),
		Name:           d.text("name"),
		Area:           d.text("area"),
		AverageSalary:  d.integer("average_salary"),
		Currency:       d.text("currency"),
		Type:           d.text("type"),
		Employer:       d.text("employer"),
		Requirement:    d.text("requirement"),
		Responsibility: d.text("responsibility"),
		Schedule:       d.text("schedule"),
		Experience:     d.text("experience"),
		Employment:     d.text("employment"),
	}
	return v, d.err
}

func decodeResume(row map[string]any) (records.Resume, error) {
	d := decoder{row: row}
	r := records.Resume{
		ID:                   d.key("id"),
		Gender:               d.text("gender"),
		Age:                  d.integer("age"),
		Birthday:             d.text("birthday"),
		SearchStatus:         d.text("search_status"),
		Address:              d.text("address"),
		Position:             d.text("position"),
		Specializations:      d.list("specializations"),
		About:                d.text("about"),
		Salary:               d.integer("salary"),
		Currency:             d.text("currency"),
		PreferredCommuteTime: d.text("preferred_commute_time"),
		Skills:               d.list("skills"),
		Employment:           d.list("employment"),
		MovingStatus:         d.text("moving_status"),
		Citizenship:          d.text("citizenship"),
		Languages:            d.list("languages"),
		Schedule:             d.list("schedule"),
	}
	if d.err == nil {
		edu, err := records.DecodeEducation(d.text("education"))
		if err != nil {
			return records.Resume{}, err
		}
		r.Education = edu
	}
	return r, d.err
}

// decoder pulls typed values out of a row and keeps the first failure.
type decoder struct {
	row map[string]any
	err error
}

func (d *decoder) fail(col string, v any) {
	if d.err == nil {
		d.err = fmt.Errorf("column %s: unexpected value type %T", col, v)
	}
}

func (d *decoder) key(col string) string {
	s := d.text(col)
	if s == nil {
		if d.err == nil {
			d.err = fmt.Errorf("column %s: %w", col, records.ErrMissingKey)
		}
		return ""
	}
	return *s
}

func (d *decoder) text(col string) *string {
	switch v := d.row[col].(type) {
	case nil:
		return nil
	case string:
		return &v
	case []byte:
		s := string(v)
		return &s
	default:
		d.fail(col, v)
		return nil
	}
}

func (d *decoder) integer(col string) *int64 {
	switch v := d.row[col].(type) {
	case nil:
		return nil
	case int64:
		return &v
	case int32:
		n := int64(v)
		return &n
	case int16:
		n := int64(v)
		return &n
	case int:
		n := int64(v)
		return &n
	default:
		d.fail(col, v)
		return nil
	}
}

func (d *decoder) list(col string) []string {
	text := d.text(col)
	out, err := records.DecodeStrings(text)
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("column %s: %w", col, err)
	}
	return out
}
