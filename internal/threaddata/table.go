package threaddata

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Execer matches both *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Table maps rows of a DuckDB table onto a struct type whose fields carry
// `duckdb:"column[,pk]"` tags.
type Table[T any] struct {
	db        Execer
	name      string
	columns   []string
	pkColumns []string
	fieldMap  map[string]int
}

// NewTable reflects the tags of T. It panics if T is not a struct.
func NewTable[T any](db Execer, name string) *Table[T] {
	var zero T
	t := reflect.TypeOf(zero)
	if t.Kind() != reflect.Struct {
		panic("threaddata: table row type must be a struct")
	}
	tbl := &Table[T]{db: db, name: name, fieldMap: make(map[string]int)}
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("duckdb")
		if tag == "" || tag == "-" {
			continue
		}
		parts := strings.Split(tag, ",")
		col := strings.TrimSpace(parts[0])
		tbl.columns = append(tbl.columns, col)
		tbl.fieldMap[col] = i
		if slices.Contains(parts[1:], "pk") {
			tbl.pkColumns = append(tbl.pkColumns, col)
		}
	}
	return tbl
}

// Name returns the table name.
func (t *Table[T]) Name() string { return t.name }

// Columns returns the mapped columns in field order.
func (t *Table[T]) Columns() []string { return t.columns }

func (t *Table[T]) upsertQuery() string {
	placeholders := make([]string, len(t.columns))
	var updates []string
	for i, col := range t.columns {
		placeholders[i] = "?"
		if !slices.Contains(t.pkColumns, col) {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
		}
	}
	// #nosec G201 - table and column names come from struct tags
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.name, strings.Join(t.columns, ", "), strings.Join(placeholders, ", "))
	if len(t.pkColumns) > 0 {
		action := "DO NOTHING"
		if len(updates) > 0 {
			action = "DO UPDATE SET " + strings.Join(updates, ", ")
		}
		query += fmt.Sprintf(" ON CONFLICT (%s) %s", strings.Join(t.pkColumns, ", "), action)
	}
	return query
}

func (t *Table[T]) values(item *T) []any {
	v := reflect.ValueOf(item).Elem()
	out := make([]any, len(t.columns))
	for i, col := range t.columns {
		out[i] = v.Field(t.fieldMap[col]).Interface()
	}
	return out
}

// BatchUpsert writes items in one transaction with a prepared statement,
// retrying the whole batch on transaction conflicts.
func (t *Table[T]) BatchUpsert(ctx context.Context, items []*T) error {
	if len(items) == 0 {
		return nil
	}
	db, ok := t.db.(*sql.DB)
	if !ok {
		return fmt.Errorf("batch upsert into %s: unsupported execer %T", t.name, t.db)
	}
	query := t.upsertQuery()
	return withRetry(ctx, writeRetry, func() (err error) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer func() { _ = stmt.Close() }()
		for _, item := range items {
			if _, err = stmt.ExecContext(ctx, t.values(item)...); err != nil {
				return fmt.Errorf("batch exec: %w", err)
			}
		}
		if err = tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		return nil
	}, isTransactionConflict)
}

// Query runs a SELECT built by b, which must select exactly the table's
// columns, and scans the rows.
func (t *Table[T]) Query(ctx context.Context, b *Builder) ([]*T, error) {
	query, args, err := b.Build()
	if err != nil {
		return nil, err
	}
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.name, err)
	}
	defer func() { _ = rows.Close() }()

	var items []*T
	for rows.Next() {
		var item T
		v := reflect.ValueOf(&item).Elem()
		dest := make([]any, len(t.columns))
		for i, col := range t.columns {
			dest[i] = v.Field(t.fieldMap[col]).Addr().Interface()
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.name, err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// Select returns a builder over the table selecting its mapped columns.
func (t *Table[T]) Select() *Builder {
	return NewQueryBuilder(t.name).Select(t.columns...)
}
