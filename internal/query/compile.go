package query

import (
	"fmt"
	"math"
	"strings"
)

// Plan is a compiled statement ready to hand to the driver.
type Plan struct {
	SQL  string
	Args []any
}

// Compile turns a page request and filter spec into a parameterized SELECT.
//
// Per field, clauses become an OR of ILIKE matches; fields are joined by AND.
// Integer columns are cast to text so "%" patterns apply uniformly, and NULL
// columns never match. Each field contributes at most one ORDER BY key, taken
// from the first clause carrying an ordering, in filter order. page is zero-based.
func Compile(schema Schema, page, size int, spec Spec) (Plan, error) {
	if page < 0 {
		return Plan{}, newError(ErrInvalidPage, "page must be >= 0, got %d", page)
	}
	if size < 1 {
		return Plan{}, newError(ErrInvalidPage, "limit must be >= 1, got %d", size)
	}
	if page > 0 && int64(page) > math.MaxInt64/int64(size) {
		return Plan{}, newError(ErrInvalidPage, "page %d is out of range", page)
	}

	var (
		b       strings.Builder
		args    []any
		where   []string
		orderBy []string
	)
	bind := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, field := range spec.Fields {
		col, ok := schema.Column(field.Name)
		if !ok {
			return Plan{}, newError(ErrUnknownField, "%q is not a column of %s", field.Name, schema.Table)
		}
		if len(field.Clauses) == 0 {
			return Plan{}, newError(ErrInvalidFilter, "field %q has no clauses", field.Name)
		}
		target := col.Name
		if col.Type == Integer {
			target = fmt.Sprintf("CAST(%s AS TEXT)", col.Name)
		}

		ors := make([]string, 0, len(field.Clauses))
		ordered := false
		for _, clause := range field.Clauses {
			switch clause.Ordering {
			case Unordered, Asc, Desc:
			default:
				return Plan{}, newError(ErrInvalidOrdering, "%q is not ASC or DESC", string(clause.Ordering))
			}
			ors = append(ors, fmt.Sprintf("%s ILIKE %s", target, bind(clause.Pattern)))
			if clause.Ordering != Unordered && !ordered {
				orderBy = append(orderBy, fmt.Sprintf("%s %s", col.Name, clause.Ordering))
				ordered = true
			}
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}

	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(schema.ColumnNames(), ", "), schema.Table)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	if len(orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(orderBy, ", "))
	}
	limit := bind(int64(size))
	offset := bind(int64(page) * int64(size))
	fmt.Fprintf(&b, " LIMIT %s OFFSET %s", limit, offset)

	return Plan{SQL: b.String(), Args: args}, nil
}
