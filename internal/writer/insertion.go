// Package writer renders extracted values into a single-row INSERT and
// executes it against the target table.
package writer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/drogue-iot/drogue-postgresql-pusher/internal/models"
)

var tablePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidateTable checks that name is a plain identifier, optionally schema-qualified.
// Table names are rendered into SQL unquoted, so nothing else is accepted.
func ValidateTable(name string) error {
	if !tablePattern.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// ColumnType is the Postgres type a bound parameter is declared as.
type ColumnType string

const (
	ColumnTimestamp ColumnType = "timestamptz"
	ColumnBoolean   ColumnType = "boolean"
	ColumnDouble    ColumnType = "double precision"
	ColumnBigint    ColumnType = "bigint"
	ColumnDecimal   ColumnType = "numeric"
	ColumnText      ColumnType = "varchar"
)

// Writer persists one insertion per call.
type Writer interface {
	NewInsertion(ts time.Time) *Insertion
	Write(ctx context.Context, ins *Insertion) error
}

// Insertion is an ordered row: the timestamp column followed by every
// extracted value, in the order they were added.
type Insertion struct {
	timeColumn string
	timestamp  time.Time
	columns    []string
	values     []models.TypedValue
}

// NewInsertion seeds a row with the timestamp column.
func NewInsertion(timeColumn string, ts time.Time) *Insertion {
	return &Insertion{timeColumn: timeColumn, timestamp: ts}
}

// Add appends a column. Names are not checked here; Statement rejects duplicates.
func (i *Insertion) Add(name string, value models.TypedValue) {
	i.columns = append(i.columns, name)
	i.values = append(i.values, value)
}

// Len is the number of added values, excluding the timestamp.
func (i *Insertion) Len() int { return len(i.columns) }

// Timestamp returns the value bound to the timestamp column.
func (i *Insertion) Timestamp() time.Time { return i.timestamp }

// Columns returns every column name including the timestamp column.
func (i *Insertion) Columns() []string {
	return append([]string{i.timeColumn}, i.columns...)
}

// Value returns the value added under name.
func (i *Insertion) Value(name string) (models.TypedValue, bool) {
	for idx, column := range i.columns {
		if column == name {
			return i.values[idx], true
		}
	}
	return models.TypedValue{}, false
}

// Statement is a rendered insert. SQL is the plain statement; PreparedSQL is
// the same statement with a type cast on every placeholder, and is what gets
// prepared so the server never has to infer parameter types.
type Statement struct {
	SQL         string
	PreparedSQL string
	Types       []ColumnType
	Args        []interface{}
}

// Statement renders the insertion against table.
func (i *Insertion) Statement(table string) (*Statement, error) {
	if err := ValidateTable(table); err != nil {
		return nil, err
	}

	columns := i.Columns()
	seen := make(map[string]struct{}, len(columns))
	for _, column := range columns {
		if _, dup := seen[column]; dup {
			return nil, fmt.Errorf("duplicate column %q in insertion", column)
		}
		seen[column] = struct{}{}
	}

	stmt := &Statement{
		Types: make([]ColumnType, 0, len(columns)),
		Args:  make([]interface{}, 0, len(columns)),
	}
	stmt.Types = append(stmt.Types, ColumnTimestamp)
	stmt.Args = append(stmt.Args, i.timestamp)

	for idx, value := range i.values {
		columnType, arg, err := bind(value)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", i.columns[idx], err)
		}
		stmt.Types = append(stmt.Types, columnType)
		stmt.Args = append(stmt.Args, arg)
	}

	plain := make([]string, len(columns))
	typed := make([]string, len(columns))
	for idx := range columns {
		plain[idx] = "$" + strconv.Itoa(idx+1)
		typed[idx] = plain[idx] + "::" + string(stmt.Types[idx])
	}
	head := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))
	stmt.SQL = head + "(" + strings.Join(plain, ", ") + ")"
	stmt.PreparedSQL = head + "(" + strings.Join(typed, ", ") + ")"

	return stmt, nil
}

// bind picks the column type and driver argument for a value. Unsigned
// integers travel as decimal strings: database/sql refuses uint64 values with
// the high bit set.
func bind(value models.TypedValue) (ColumnType, interface{}, error) {
	switch value.Kind() {
	case models.KindBoolean:
		return ColumnBoolean, value.Bool(), nil
	case models.KindFloat:
		return ColumnDouble, value.Float(), nil
	case models.KindSignedInteger:
		return ColumnBigint, value.Int(), nil
	case models.KindUnsignedInteger:
		return ColumnDecimal, strconv.FormatUint(value.Uint(), 10), nil
	case models.KindText:
		return ColumnText, value.Text(), nil
	default:
		return "", nil, fmt.Errorf("value has no kind")
	}
}
