package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobsearch-ingest/internal/query"
	"github.com/JakeFAU/jobsearch-ingest/internal/records"
)

func newMockReader(t *testing.T) (*Reader, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	r, err := NewReaderWithPool(mock)
	require.NoError(t, err)
	return r, mock
}

func TestReaderVacancies(t *testing.T) {
	t.Parallel()

	r, mock := newMockReader(t)
	spec, err := query.ParseSpec(`{"average_salary":[{"pattern":"%","ordering":"desc"}]}`)
	require.NoError(t, err)
	plan, err := query.Compile(query.VacancySchema, 0, 20, spec)
	require.NoError(t, err)

	rows := pgxmock.NewRows(query.VacancySchema.ColumnNames()).
		AddRow("3", "Lead", "Moscow", int64(50), "RUR", nil, nil, nil, nil, "Remote", nil, nil).
		AddRow("2", "Senior", "Kazan", int64(30), "RUR", nil, nil, nil, nil, nil, nil, nil).
		AddRow("1", "Junior", nil, nil, nil, nil, nil, nil, nil, nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta(plan.SQL)).
		WithArgs(plan.Args...).
		WillReturnRows(rows)

	got, err := r.Vacancies(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "3", got[0].ID)
	require.Equal(t, int64(50), *got[0].AverageSalary)
	require.Equal(t, "Remote", *got[0].Schedule)
	require.Nil(t, got[0].Type)
	require.Nil(t, got[2].AverageSalary)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReaderResumesDecodesLists(t *testing.T) {
	t.Parallel()

	r, mock := newMockReader(t)
	plan, err := query.Compile(query.ResumeSchema, 0, 5, query.Spec{})
	require.NoError(t, err)

	values := make([]any, len(query.ResumeSchema.Columns))
	row := map[string]any{
		"id":              "abc",
		"age":             int64(28),
		"specializations": `["Programmer"]`,
		"skills":          `[]`,
		"education":       `[["BSc","ITMO"]]`,
	}
	for i, name := range query.ResumeSchema.ColumnNames() {
		values[i] = row[name]
	}
	mock.ExpectQuery(regexp.QuoteMeta(plan.SQL)).
		WithArgs(plan.Args...).
		WillReturnRows(pgxmock.NewRows(query.ResumeSchema.ColumnNames()).AddRow(values...))

	got, err := r.Resumes(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, got, 1)
	res := got[0]
	require.Equal(t, "abc", res.ID)
	require.Equal(t, int64(28), *res.Age)
	require.Equal(t, []string{"Programmer"}, res.Specializations)
	require.Equal(t, []string{}, res.Skills)
	require.Nil(t, res.Languages)
	require.Equal(t, []records.Education{{"BSc", "ITMO"}}, res.Education)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReaderEmptyResultIsNotNil(t *testing.T) {
	t.Parallel()

	r, mock := newMockReader(t)
	plan, err := query.Compile(query.VacancySchema, 4, 20, query.Spec{})
	require.NoError(t, err)
	mock.ExpectQuery("SELECT").
		WithArgs(plan.Args...).
		WillReturnRows(pgxmock.NewRows(query.VacancySchema.ColumnNames()))

	got, err := r.Vacancies(context.Background(), plan)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestReaderQueryError(t *testing.T) {
	t.Parallel()

	r, mock := newMockReader(t)
	plan, err := query.Compile(query.VacancySchema, 0, 20, query.Spec{})
	require.NoError(t, err)
	mock.ExpectQuery("SELECT").WithArgs(plan.Args...).WillReturnError(errors.New("conn reset"))

	_, err = r.Vacancies(context.Background(), plan)
	require.Error(t, err)
	require.Contains(t, err.Error(), "query vacancies")
}

func TestReaderRejectsCorruptList(t *testing.T) {
	t.Parallel()

	r, mock := newMockReader(t)
	plan, err := query.Compile(query.ResumeSchema, 0, 5, query.Spec{})
	require.NoError(t, err)
	values := make([]any, len(query.ResumeSchema.Columns))
	values[0] = "abc"
	for i, name := range query.ResumeSchema.ColumnNames() {
		if name == "skills" {
			values[i] = "not json"
		}
	}
	mock.ExpectQuery("SELECT").
		WithArgs(plan.Args...).
		WillReturnRows(pgxmock.NewRows(query.ResumeSchema.ColumnNames()).AddRow(values...))

	_, err = r.Resumes(context.Background(), plan)
	require.ErrorContains(t, err, "column skills")
}

func TestMigrateAppliesEachStatement(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	stmts := Statements()
	require.Len(t, stmts, 2)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS vacancies").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS resumes").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, Migrate(context.Background(), mock))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaColumnsMatchQueryAllowList(t *testing.T) {
	t.Parallel()

	stmts := Statements()
	for i, schema := range []query.Schema{query.VacancySchema, query.ResumeSchema} {
		require.Contains(t, stmts[i], schema.Table)
		for _, col := range schema.ColumnNames() {
			require.Regexp(t, `(?m)^\s+`+col+`\s`, stmts[i], "table %s column %s", schema.Table, col)
		}
	}
}

func TestReaderResumesKeepStoreOrderForSalaryDesc(t *testing.T) {
	t.Parallel()

	r, mock := newMockReader(t)
	spec, err := query.ParseSpec(`{"salary":[{"pattern":"%","ordering":"desc"}]}`)
	require.NoError(t, err)
	plan, err := query.Compile(query.ResumeSchema, 0, 20, spec)
	require.NoError(t, err)
	require.Contains(t, plan.SQL, "ORDER BY salary DESC")

	cols := query.ResumeSchema.ColumnNames()
	rows := pgxmock.NewRows(cols)
	// Stored salaries are {10, 50, 30}; the store applies ORDER BY.
	for _, s := range []struct {
		id     string
		salary int64
	}{{"b", 50}, {"c", 30}, {"a", 10}} {
		values := make([]any, len(cols))
		for i, name := range cols {
			switch name {
			case "id":
				values[i] = s.id
			case "salary":
				values[i] = s.salary
			}
		}
		rows.AddRow(values...)
	}
	mock.ExpectQuery(regexp.QuoteMeta(plan.SQL)).
		WithArgs("%", int64(20), int64(0)).
		WillReturnRows(rows)

	got, err := r.Resumes(context.Background(), plan)
	require.NoError(t, err)
	salaries := make([]int64, 0, len(got))
	for _, res := range got {
		salaries = append(salaries, *res.Salary)
	}
	require.Equal(t, []int64{50, 30, 10}, salaries)
	require.NoError(t, mock.ExpectationsWereMet())
}
