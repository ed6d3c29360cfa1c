// Package query compiles client filter specifications into parameterized SQL
// against the vacancies and resumes tables.
//
// Field names are checked against a static allow-list before compilation and
// every caller-supplied value is bound as a parameter, never spliced into the
// statement text.
package query

import (
	"fmt"

	"github.com/JakeFAU/jobsearch-ingest/internal/records"
)

// ColumnType describes how a column is stored and matched.
type ColumnType int

// Column types. List columns hold canonical JSON text.
const (
	Text ColumnType = iota
	Integer
	List
)

// Column is one allow-listed column.
type Column struct {
	Name string
	Type ColumnType
}

// Schema is the static description of one table.
type Schema struct {
	Kind    records.Kind
	Table   string
	Key     string
	Columns []Column
}

// Column looks up an allow-listed column by name.
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the column names in table order.
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// VacancySchema describes the vacancies table.
var VacancySchema = Schema{
	Kind:  records.KindVacancy,
	Table: "vacancies",
	Key:   "id",
	Columns: []Column{
		{"id", Text},
		{"name", Text},
		{"area", Text},
		{"average_salary", Integer},
		{"currency", Text},
		{"type", Text},
		{"employer", Text},
		{"requirement", Text},
		{"responsibility", Text},
		{"schedule", Text},
		{"experience", Text},
		{"employment", Text},
	},
}

// ResumeSchema describes the resumes table.
var ResumeSchema = Schema{
	Kind:  records.KindResume,
	Table: "resumes",
	Key:   "id",
	Columns: []Column{
		{"id", Text},
		{"gender", Text},
		{"age", Integer},
		{"birthday", Text},
		{"search_status", Text},
		{"address", Text},
		{"position", Text},
		{"specializations", List},
		{"about", Text},
		{"salary", Integer},
		{"currency", Text},
		{"preferred_commute_time", Text},
		{"skills", List},
		{"employment", List},
		{"moving_status", Text},
		{"citizenship", Text},
		{"languages", List},
		{"education", List},
		{"schedule", List},
	},
}

// SchemaFor returns the schema of a record kind.
func SchemaFor(kind records.Kind) (Schema, error) {
	switch kind {
	case records.KindVacancy:
		return VacancySchema, nil
	case records.KindResume:
		return ResumeSchema, nil
	default:
		return Schema{}, fmt.Errorf("no schema for kind %q", kind)
	}
}
