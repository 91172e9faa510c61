// Package sqlsource exposes the result of a SQL query as a tabexport.DataSource.
package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"strings"

	"github.com/locvowork/employee_management_sample/exportgateway/pkg/tabexport"
)

// DB abstracts *sql.DB, *sql.Conn and *sql.Tx.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// QuerySource holds a fully read result set. Items are []interface{} rows
// in result column order.
type QuerySource struct {
	columns []string
	dbTypes []string
	index   map[string]int
	rows    []interface{}

	// ParentColumn names a boolean column marking parent rows.
	ParentColumn string
}

// Query runs query and reads every row.
func Query(ctx context.Context, db DB, query string, args ...interface{}) (*QuerySource, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("getting columns: %w", err)
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("getting column types: %w", err)
	}

	s := &QuerySource{
		columns: columns,
		dbTypes: make([]string, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, name := range columns {
		s.index[name] = i
		s.dbTypes[i] = strings.ToUpper(columnTypes[i].DatabaseTypeName())
	}

	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		for i, v := range values {
			values[i] = s.convert(i, v)
		}
		s.rows = append(s.rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	return s, nil
}

// convert turns driver bytes into strings, except for exact numeric columns
// whose canonical text ("1234.56") becomes a *big.Rat so that it is never
// read as locale formatted text.
func (s *QuerySource) convert(col int, v interface{}) interface{} {
	var text string
	switch t := v.(type) {
	case []byte:
		text = string(t)
	case string:
		text = t
	default:
		return v
	}
	if DataTypeOf(s.dbTypes[col]) == tabexport.TypeBigDecimal {
		if r, ok := new(big.Rat).SetString(text); ok {
			return r
		}
	}
	return text
}

// Columns returns the result column names.
func (s *QuerySource) Columns() []string { return s.columns }

func (s *QuerySource) Items() []interface{} { return s.rows }

func (s *QuerySource) Value(item interface{}, key string) (interface{}, error) {
	acc, ok := s.Accessor(key)
	if !ok {
		return nil, fmt.Errorf("query has no column %q", key)
	}
	return acc(item)
}

// Accessor resolves key to a column index lookup.
func (s *QuerySource) Accessor(key string) (tabexport.Accessor, bool) {
	i, ok := s.index[key]
	if !ok {
		return nil, false
	}
	return func(item interface{}) (interface{}, error) {
		row, ok := item.([]interface{})
		if !ok {
			return nil, fmt.Errorf("item is %T, not a result row", item)
		}
		if i >= len(row) {
			return nil, fmt.Errorf("row has %d columns, want index %d", len(row), i)
		}
		return row[i], nil
	}, true
}

func (s *QuerySource) HasChildren(item interface{}) bool {
	if s.ParentColumn == "" {
		return false
	}
	v, err := s.Value(item, s.ParentColumn)
	if err != nil {
		return false
	}
	flag, _ := v.(bool)
	return flag
}

// Bindings returns one column binding per result column, typed from the
// driver's database type name.
func (s *QuerySource) Bindings() []*tabexport.ColumnBinding {
	out := make([]*tabexport.ColumnBinding, len(s.columns))
	for i, name := range s.columns {
		out[i] = &tabexport.ColumnBinding{
			Key:    name,
			Header: name,
			Type:   DataTypeOf(s.dbTypes[i]),
		}
	}
	return out
}

// DataTypeOf maps a PostgreSQL type name to a column data type.
func DataTypeOf(dbType string) tabexport.DataType {
	switch strings.ToUpper(dbType) {
	case "INT2", "SMALLINT":
		return tabexport.TypeShort
	case "INT4", "INT", "INTEGER", "SERIAL":
		return tabexport.TypeInteger
	case "INT8", "BIGINT", "BIGSERIAL":
		return tabexport.TypeLong
	case "NUMERIC", "DECIMAL":
		return tabexport.TypeBigDecimal
	case "FLOAT4", "REAL":
		return tabexport.TypeFloat
	case "FLOAT8", "DOUBLE PRECISION":
		return tabexport.TypeDouble
	case "DATE", "TIMESTAMP", "TIMESTAMPTZ":
		return tabexport.TypeDate
	case "BOOL", "BOOLEAN":
		return tabexport.TypeBoolean
	default:
		return tabexport.TypeText
	}
}
