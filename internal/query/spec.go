package query

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// Direction is a sort direction. The zero value means "no ordering".
type Direction string

// Sort directions as they appear in compiled SQL.
const (
	Unordered Direction = ""
	Asc       Direction = "ASC"
	Desc      Direction = "DESC"
)

// ParseDirection normalizes an ordering token. Case is ignored.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ASC":
		return Asc, nil
	case "DESC":
		return Desc, nil
	default:
		return Unordered, newError(ErrInvalidOrdering, "%q is not asc or desc", s)
	}
}

// Clause is one pattern match, optionally carrying a sort direction for its field.
type Clause struct {
	Pattern  string
	Ordering Direction
}

// Field groups the clauses given for one column. Clauses are OR-combined.
type Field struct {
	Name    string
	Clauses []Clause
}

// Spec is an ordered filter specification. Fields are AND-combined and keep the
// order in which they appeared on the wire.
type Spec struct {
	Fields []Field
}

// Empty reports whether the spec filters nothing.
func (s Spec) Empty() bool { return len(s.Fields) == 0 }

type wireClause struct {
	Pattern  *string `json:"pattern"`
	Text     *string `json:"text"`
	Ordering *string `json:"ordering"`
}

// ParseSpec decodes the wire form of a filter:
//
//	{"experience":[{"pattern":"No experience"}],"average_salary":[{"pattern":"%","ordering":"desc"}]}
//
// The legacy clause key "text" is accepted in place of "pattern". An empty string
// and "{}" both decode to an empty Spec.
func ParseSpec(raw string) (Spec, error) {
	if strings.TrimSpace(raw) == "" {
		return Spec{}, nil
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()

	tok, err := dec.Token()
	if err != nil {
		return Spec{}, newError(ErrInvalidFilter, "%v", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return Spec{}, newError(ErrInvalidFilter, "filter must be a JSON object")
	}

	var spec Spec
	seen := make(map[string]struct{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Spec{}, newError(ErrInvalidFilter, "%v", err)
		}
		name, ok := tok.(string)
		if !ok {
			return Spec{}, newError(ErrInvalidFilter, "unexpected token %v", tok)
		}
		if _, dup := seen[name]; dup {
			return Spec{}, newError(ErrInvalidFilter, "field %q given more than once", name)
		}
		seen[name] = struct{}{}

		var wire []wireClause
		if err := dec.Decode(&wire); err != nil {
			return Spec{}, newError(ErrInvalidFilter, "field %q: clauses must be a list of objects: %v", name, err)
		}
		field, err := toField(name, wire)
		if err != nil {
			return Spec{}, err
		}
		spec.Fields = append(spec.Fields, field)
	}
	if _, err := dec.Token(); err != nil {
		return Spec{}, newError(ErrInvalidFilter, "%v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Spec{}, newError(ErrInvalidFilter, "trailing data after filter object")
	}
	return spec, nil
}

func toField(name string, wire []wireClause) (Field, error) {
	if len(wire) == 0 {
		return Field{}, newError(ErrInvalidFilter, "field %q has no clauses", name)
	}
	field := Field{Name: name, Clauses: make([]Clause, 0, len(wire))}
	for i, w := range wire {
		pattern := w.Pattern
		if pattern == nil {
			pattern = w.Text
		}
		if pattern == nil {
			return Field{}, newError(ErrInvalidFilter, "field %q clause %d has no pattern", name, i)
		}
		clause := Clause{Pattern: *pattern}
		if w.Ordering != nil {
			dir, err := ParseDirection(*w.Ordering)
			if err != nil {
				return Field{}, err
			}
			clause.Ordering = dir
		}
		field.Clauses = append(field.Clauses, clause)
	}
	return field, nil
}

// Literal escapes LIKE metacharacters so s matches only itself.
func Literal(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Contains builds a pattern matching any value containing s literally.
func Contains(s string) string {
	return "%" + Literal(s) + "%"
}
