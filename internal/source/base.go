package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/leapstack-labs/jointab/pkg/core"
	"github.com/leapstack-labs/jointab/pkg/normalize"
)

// BaseSQLSource provides common database/sql functionality for sources.
// Embed it in concrete sources and call QueryTable once a DB is open.
type BaseSQLSource struct {
	Logger     *slog.Logger
	Normalizer normalize.Normalizer

	// Decode, when set, maps driver-specific scan values to the plain Go
	// values Cell understands. Values it does not know pass through.
	Decode func(v any) any
}

// OpenDB opens and pings a database/sql connection.
func (b *BaseSQLSource) OpenDB(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", driver, err)
	}
	return db, nil
}

// QueryTable runs query and converts the result set into a table. Column
// types come from the driver's type names unless overrides names them.
func (b *BaseSQLSource) QueryTable(ctx context.Context, db *sql.DB, query string, overrides map[string]core.ColumnType) (*core.Table, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	b.logger().Debug("querying tab", "query", query)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}

	names := make([]string, len(colTypes))
	types := make([]core.ColumnType, len(colTypes))
	for i, ct := range colTypes {
		names[i] = ct.Name()
		if t, ok := overrides[ct.Name()]; ok {
			types[i] = t
		} else {
			types[i] = ColumnTypeFor(ct.DatabaseTypeName())
		}
	}

	values := make([][]core.Value, len(colTypes))
	raw := make([]any, len(colTypes))
	ptrs := make([]any, len(colTypes))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range raw {
			values[i] = append(values[i], b.Cell(v, types[i]))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	cols := make([]*core.Column, len(names))
	for i, name := range names {
		col, err := core.NewColumn(name, types[i], values[i])
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	return core.NewTable(cols...)
}

var numericTypes = map[string]bool{
	"INT": true, "INTEGER": true, "INT2": true, "INT4": true, "INT8": true,
	"TINYINT": true, "SMALLINT": true, "MEDIUMINT": true, "BIGINT": true, "HUGEINT": true,
	"UTINYINT": true, "USMALLINT": true, "UINTEGER": true, "UBIGINT": true, "UHUGEINT": true,
	"SERIAL": true, "BIGSERIAL": true,
	"REAL": true, "FLOAT": true, "FLOAT4": true, "FLOAT8": true, "DOUBLE": true, "DOUBLE PRECISION": true,
	"DECIMAL": true, "NUMERIC": true, "NUMBER": true,
}

// ColumnTypeFor maps a driver type name (DuckDB, SQLite, Postgres, MySQL) to
// a column type. Unknown names are text.
func ColumnTypeFor(dbType string) core.ColumnType {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	t = strings.TrimPrefix(t, "UNSIGNED ")
	switch {
	case t == "BOOL" || t == "BOOLEAN":
		return core.TypeBoolean
	case strings.HasPrefix(t, "TIMESTAMP") || t == "DATE" || t == "DATETIME":
		return core.TypeTimestamp
	case numericTypes[t]:
		return core.TypeNumber
	default:
		return core.TypeText
	}
}

// Cell converts one scanned driver value to a cell of type t.
func (b *BaseSQLSource) Cell(v any, t core.ColumnType) core.Value {
	if b.Decode != nil {
		v = b.Decode(v)
	}
	var cell core.Value
	switch x := v.(type) {
	case nil:
		return core.Missing()
	case int64:
		cell = core.Int(x)
	case int32:
		cell = core.Int(int64(x))
	case int:
		cell = core.Int(int64(x))
	case uint64:
		cell = core.Number(new(big.Rat).SetInt(new(big.Int).SetUint64(x)))
	case float64:
		cell = core.Float(x)
	case float32:
		cell = core.Float(float64(x))
	case bool:
		cell = core.Bool(x)
	case time.Time:
		cell = core.Timestamp(x)
	case *big.Int:
		cell = core.Number(new(big.Rat).SetInt(x))
	case *big.Rat:
		cell = core.Number(x)
	case []byte:
		return b.Normalizer.Coerce(string(x), t)
	case string:
		return b.Normalizer.Coerce(x, t)
	default:
		return b.Normalizer.Coerce(fmt.Sprint(x), t)
	}
	if t == core.TypeText {
		return core.Text(cell.String())
	}
	return b.Normalizer.Canonicalize(cell, t)
}

func (b *BaseSQLSource) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}
