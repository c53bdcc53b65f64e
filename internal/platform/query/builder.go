// Package query builds the parameterized list queries shared by the
// PostgreSQL repositories.
package query

import (
	"fmt"
	"strings"
)

// Builder accumulates WHERE clauses and their positional arguments for a
// single table (optionally joined) and renders count and page queries.
type Builder struct {
	from    string
	cols    string
	where   string
	args    []interface{}
	orderBy string
}

// New creates a Builder selecting cols from the given FROM expression,
// which may include joins.
func New(from, cols string) *Builder {
	return &Builder{from: from, cols: cols}
}

// Idx returns the next available parameter index.
func (q *Builder) Idx() int { return len(q.args) + 1 }

// Add appends a raw WHERE fragment (without leading "AND"). Placeholders in
// clause must start at Idx().
func (q *Builder) Add(clause string, args ...interface{}) {
	q.where += " AND " + clause
	q.args = append(q.args, args...)
}

// Eq adds "column = value".
func (q *Builder) Eq(column string, value interface{}) {
	q.Add(fmt.Sprintf("%s = $%d", column, q.Idx()), value)
}

// Search adds a substring match of the folded term against a column that
// stores folded text (see SearchText). Empty terms add nothing.
func (q *Builder) Search(column, term string) {
	folded := Fold(term)
	if folded == "" {
		return
	}
	q.Add(fmt.Sprintf("%s LIKE $%d", column, q.Idx()), "%"+escapeLike(folded)+"%")
}

// SearchAny is Search over several folded-text columns, matching when any
// of them contains the term.
func (q *Builder) SearchAny(term string, columns ...string) {
	folded := Fold(term)
	if folded == "" || len(columns) == 0 {
		return
	}
	idx := q.Idx()
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = fmt.Sprintf("%s LIKE $%d", c, idx)
	}
	q.Add("("+strings.Join(parts, " OR ")+")", "%"+escapeLike(folded)+"%")
}

// OrderBy sets the ORDER BY clause (without the "ORDER BY" keyword).
func (q *Builder) OrderBy(orderBy string) {
	q.orderBy = orderBy
}

func (q *Builder) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE 1=1%s", q.from, q.where)
}

func (q *Builder) CountArgs() []interface{} {
	return q.args
}

// DataSQL returns the page query with ORDER BY and LIMIT/OFFSET placeholders.
func (q *Builder) DataSQL() string {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s", q.cols, q.from, q.where)
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", q.Idx(), q.Idx()+1)
	return sql
}

// DataArgs returns the filter arguments followed by limit and offset.
func (q *Builder) DataArgs(limit, offset int) []interface{} {
	result := make([]interface{}, len(q.args), len(q.args)+2)
	copy(result, q.args)
	return append(result, limit, offset)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
