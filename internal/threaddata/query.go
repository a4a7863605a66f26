package threaddata

import (
	"errors"
	"fmt"
	"strings"
)

// Builder constructs SELECT queries.
type Builder struct {
	table   string
	columns []string
	where   []whereClause
	orderBy []string
	limit   int
}

type whereClause struct {
	expr string
	args []any
}

// NewQueryBuilder creates a builder for table.
func NewQueryBuilder(table string) *Builder {
	return &Builder{table: table}
}

// Select appends columns or expressions to the select list.
func (b *Builder) Select(columns ...string) *Builder {
	b.columns = append(b.columns, columns...)
	return b
}

// Where adds a condition; conditions are joined with AND.
func (b *Builder) Where(expr string, args ...any) *Builder {
	b.where = append(b.where, whereClause{expr: expr, args: args})
	return b
}

// Eq adds "column = ?".
func (b *Builder) Eq(column string, value any) *Builder {
	return b.Where(column+" = ?", value)
}

// In adds "column IN (...)". An empty value list adds nothing.
func (b *Builder) In(column string, values ...any) *Builder {
	if len(values) == 0 {
		return b
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	return b.Where(fmt.Sprintf("%s IN (%s)", column, marks), values...)
}

// OrderBy adds sort columns; a "-" prefix sorts descending.
func (b *Builder) OrderBy(columns ...string) *Builder {
	for _, col := range columns {
		if rest, ok := strings.CutPrefix(col, "-"); ok {
			col = rest + " DESC"
		}
		b.orderBy = append(b.orderBy, col)
	}
	return b
}

// Limit caps the number of rows.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Build returns the query text and its arguments.
func (b *Builder) Build() (string, []any, error) {
	if b.table == "" {
		return "", nil, errors.New("table name is required")
	}
	var (
		q    strings.Builder
		args []any
	)
	q.WriteString("SELECT ")
	if len(b.columns) == 0 {
		q.WriteString("*")
	} else {
		q.WriteString(strings.Join(b.columns, ", "))
	}
	q.WriteString(" FROM ")
	q.WriteString(b.table)
	if len(b.where) > 0 {
		exprs := make([]string, len(b.where))
		for i, w := range b.where {
			exprs[i] = w.expr
			args = append(args, w.args...)
		}
		q.WriteString(" WHERE ")
		q.WriteString(strings.Join(exprs, " AND "))
	}
	if len(b.orderBy) > 0 {
		q.WriteString(" ORDER BY ")
		q.WriteString(strings.Join(b.orderBy, ", "))
	}
	if b.limit > 0 {
		q.WriteString(" LIMIT ?")
		args = append(args, b.limit)
	}
	return q.String(), args, nil
}
