// Package records defines the normalized vacancy and resume records shared by
// the source adapter, the ingestion pipeline, and the stored-query read path.
package records

import (
	"errors"
	"fmt"
)

// FieldVersion identifies the revision of the field lists below. Bump it when a
// column is added or removed so stored rows and wire payloads can be told apart.
const FieldVersion = 1

// Kind names a record variant. The value doubles as the table name.
type Kind string

// Record kinds handled by the pipeline.
const (
	KindVacancy Kind = "vacancies"
	KindResume  Kind = "resumes"
)

// Kinds lists every known kind in a stable order.
var Kinds = []Kind{KindVacancy, KindResume}

// ErrMissingKey is returned by Validate when a record has no primary key.
var ErrMissingKey = errors.New("record id is required")

// ParseKind maps a string onto a known Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindVacancy, KindResume:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown record kind %q", s)
	}
}

// Record is implemented by every record variant.
type Record interface {
	Key() string
	Kind() Kind
	Validate() error
}

// Vacancy is one job posting.
type Vacancy struct {
	ID             string  `json:"id"`
	Name           *string `json:"name"`
	Area           *string `json:"area"`
	Type           *string `json:"type"`
	Employer       *string `json:"employer"`
	Responsibility *string `json:"responsibility"`
	Schedule       *string `json:"schedule"`
	Experience     *string `json:"experience"`
	Employment     *string `json:"employment"`
	Requirement    *string `json:"requirement"`
	Currency       *string `json:"currency"`
	AverageSalary  *int64  `json:"average_salary"`
}

// Key returns the vacancy id.
func (v Vacancy) Key() string { return v.ID }

// Kind returns KindVacancy.
func (Vacancy) Kind() Kind { return KindVacancy }

// Validate checks the primary key is present.
func (v Vacancy) Validate() error {
	if v.ID == "" {
		return ErrMissingKey
	}
	return nil
}

// Education is a (title, organization) pair.
type Education [2]string

// Title returns the degree or course name.
func (e Education) Title() string { return e[0] }

// Organization returns the issuing institution.
func (e Education) Organization() string { return e[1] }

// Resume is one candidate profile.
type Resume struct {
	ID                   string      `json:"id"`
	Gender               *string     `json:"gender"`
	Birthday             *string     `json:"birthday"`
	SearchStatus         *string     `json:"search_status"`
	Address              *string     `json:"address"`
	Position             *string     `json:"position"`
	About                *string     `json:"about"`
	Currency             *string     `json:"currency"`
	PreferredCommuteTime *string     `json:"preferred_commute_time"`
	MovingStatus         *string     `json:"moving_status"`
	Citizenship          *string     `json:"citizenship"`
	Specializations      []string    `json:"specializations"`
	Languages            []string    `json:"languages"`
	Schedule             []string    `json:"schedule"`
	Skills               []string    `json:"skills"`
	Employment           []string    `json:"employment"`
	Education            []Education `json:"education"`
	Age                  *int64      `json:"age"`
	Salary               *int64      `json:"salary"`
}

// Key returns the resume id.
func (r Resume) Key() string { return r.ID }

// Kind returns KindResume.
func (Resume) Kind() Kind { return KindResume }

// Validate checks the primary key is present.
func (r Resume) Validate() error {
	if r.ID == "" {
		return ErrMissingKey
	}
	return nil
}

// String returns a pointer to s, or nil when s is empty. Source fields that
// are blank are stored as NULL, the same as fields the source omitted.
func String(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Int returns a pointer to n.
func Int(n int64) *int64 {
	return &n
}
