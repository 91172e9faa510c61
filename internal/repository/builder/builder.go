package builder

import (
	"fmt"
	"strings"
)

// SelectBuilder assembles read-only PostgreSQL queries. Conditions use ?
// placeholders, rewritten to $n in argument order by Build.
type SelectBuilder struct {
	columns []string
	table   string
	joins   []condition
	where   []condition
	groupBy []string
	orderBy []string
	limit   int
	offset  int
}

type condition struct {
	sql  string
	args []interface{}
}

// NewSelectBuilder creates an empty SelectBuilder.
func NewSelectBuilder() *SelectBuilder {
	return &SelectBuilder{}
}

// Select specifies the columns to retrieve.
func (b *SelectBuilder) Select(cols ...string) *SelectBuilder {
	b.columns = append(b.columns, cols...)
	return b
}

// From specifies the table to select from.
func (b *SelectBuilder) From(table string) *SelectBuilder {
	b.table = table
	return b
}

// Join adds a JOIN clause. The ON condition may carry placeholders.
func (b *SelectBuilder) Join(joinType, table, on string, args ...interface{}) *SelectBuilder {
	b.joins = append(b.joins, condition{sql: fmt.Sprintf("%s JOIN %s ON %s", joinType, table, on), args: args})
	return b
}

// Where adds a condition. Conditions are combined with AND.
func (b *SelectBuilder) Where(cond string, args ...interface{}) *SelectBuilder {
	b.where = append(b.where, condition{sql: cond, args: args})
	return b
}

// WhereAny adds a parenthesized group of alternatives combined with OR.
// An empty group adds nothing.
func (b *SelectBuilder) WhereAny(fn func(g *SelectBuilder)) *SelectBuilder {
	g := NewSelectBuilder()
	fn(g)
	if len(g.where) == 0 {
		return b
	}
	parts := make([]string, len(g.where))
	var args []interface{}
	for i, c := range g.where {
		parts[i] = c.sql
		args = append(args, c.args...)
	}
	return b.Where("("+strings.Join(parts, " OR ")+")", args...)
}

// GroupBy adds GROUP BY expressions.
func (b *SelectBuilder) GroupBy(cols ...string) *SelectBuilder {
	b.groupBy = append(b.groupBy, cols...)
	return b
}

// OrderBy adds an ORDER BY expression.
func (b *SelectBuilder) OrderBy(order string) *SelectBuilder {
	b.orderBy = append(b.orderBy, order)
	return b
}

// Limit adds a LIMIT clause. Zero means no limit.
func (b *SelectBuilder) Limit(limit int) *SelectBuilder {
	b.limit = limit
	return b
}

// Offset adds an OFFSET clause.
func (b *SelectBuilder) Offset(offset int) *SelectBuilder {
	b.offset = offset
	return b
}

// Build constructs the final SQL string and arguments.
func (b *SelectBuilder) Build() (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(b.columns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(b.table)
	var args []interface{}
	for _, join := range b.joins {
		sb.WriteString(" ")
		sb.WriteString(join.sql)
		args = append(args, join.args...)
	}

	if len(b.where) > 0 {
		conds := make([]string, len(b.where))
		for i, c := range b.where {
			conds[i] = c.sql
			args = append(args, c.args...)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}

	if len(b.groupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(b.groupBy, ", "))
	}
	if len(b.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.orderBy, ", "))
	}
	if b.limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", b.limit))
	}
	if b.offset > 0 {
		sb.WriteString(fmt.Sprintf(" OFFSET %d", b.offset))
	}
	return numberPlaceholders(sb.String()), args
}

// BuildSafe is Build plus a check that every argument has a placeholder.
func (b *SelectBuilder) BuildSafe() (string, []interface{}, error) {
	query, args := b.Build()
	var want int
	for _, c := range b.joins {
		want += strings.Count(c.sql, "?")
	}
	for _, c := range b.where {
		want += strings.Count(c.sql, "?")
	}
	if want != len(args) {
		return "", nil, fmt.Errorf("placeholder count (%d) does not match argument count (%d)", want, len(args))
	}
	return query, args, nil
}

func numberPlaceholders(s string) string {
	parts := strings.Split(s, "?")
	var sb strings.Builder
	for i, part := range parts {
		sb.WriteString(part)
		if i < len(parts)-1 {
			sb.WriteString(fmt.Sprintf("$%d", i+1))
		}
	}
	return sb.String()
}
