package postgres

import (
	"strconv"
	"strings"
)

// column is a trusted SQL column expression. Only constants in this file
// have this type, so user input can never reach the SQL text.
type column string

const (
	colTenantID     column = "r.tenant_id"
	colStatus       column = "r.status"
	colUserID       column = "r.user_id"
	colLearnerName  column = "r.learner_name"
	colLearnerEmail column = "r.learner_email"
	colCourseTitle  column = "r.course_title"
)

// whereBuilder maps filter values to parameterized clauses. Every value
// goes through args; the SQL text only ever contains placeholders.
type whereBuilder struct {
	clauses []string
	args    []any
}

// arg appends v and returns its placeholder.
func (w *whereBuilder) arg(v any) string {
	w.args = append(w.args, v)
	return "$" + strconv.Itoa(len(w.args))
}

// eq adds "col = v".
func (w *whereBuilder) eq(col column, v any) {
	w.clauses = append(w.clauses, string(col)+" = "+w.arg(v))
}

// eqFold adds a case-insensitive equality.
func (w *whereBuilder) eqFold(col column, v string) {
	w.clauses = append(w.clauses, "LOWER("+string(col)+") = LOWER("+w.arg(v)+")")
}

// containsFold adds a case-insensitive substring match over any of cols.
func (w *whereBuilder) containsFold(term string, cols ...column) {
	p := w.arg("%" + escapeLike(term) + "%")
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = string(c) + " ILIKE " + p
	}
	w.clauses = append(w.clauses, "("+strings.Join(parts, " OR ")+")")
}

// where renders the WHERE clause, or "" without clauses.
func (w *whereBuilder) where() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// escapeLike escapes LIKE metacharacters with the default backslash escape.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
