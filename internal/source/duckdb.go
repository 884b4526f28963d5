package source

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"path/filepath"
	"strings"

	"github.com/marcboeker/go-duckdb"

	"github.com/leapstack-labs/jointab/pkg/core"
	"github.com/leapstack-labs/jointab/pkg/normalize"
)

// DuckDB reads a table or query from a DuckDB database file.
// An empty path opens an in-memory database.
type DuckDB struct {
	BaseSQLSource
}

// NewDuckDB creates a DuckDB source.
func NewDuckDB(logger *slog.Logger, norm normalize.Normalizer) *DuckDB {
	return &DuckDB{BaseSQLSource{Logger: logger, Normalizer: norm, Decode: decodeDuckDB}}
}

// decodeDuckDB turns DECIMAL cells into exact rationals. duckdb.Decimal has
// no value-receiver String, so it cannot go through the text fallback.
func decodeDuckDB(v any) any {
	switch x := v.(type) {
	case duckdb.Decimal:
		return decimalRat(x)
	case *duckdb.Decimal:
		if x == nil {
			return nil
		}
		return decimalRat(*x)
	}
	return v
}

func decimalRat(d duckdb.Decimal) any {
	if d.Value == nil {
		return nil
	}
	den := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d.Scale)), nil)
	return new(big.Rat).SetFrac(d.Value, den)
}

// Load implements Source.
func (d *DuckDB) Load(ctx context.Context, spec Spec) (*core.Table, error) {
	path := spec.Path
	if path == "" {
		path = ":memory:"
	}
	query, err := spec.SelectQuery(quoteIdent)
	if err != nil {
		return nil, err
	}
	overrides, err := spec.ColumnOverrides()
	if err != nil {
		return nil, err
	}

	db, err := d.OpenDB(ctx, "duckdb", path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	return d.QueryTable(ctx, db, query, overrides)
}

// CSVOptions are the options a csv tab accepts.
type CSVOptions struct {
	Delimiter string `mapstructure:"delimiter"`
	Header    *bool  `mapstructure:"header"`
	// AllVarchar disables type sniffing; every column loads as text unless
	// overridden by the tab's columns map.
	AllVarchar bool `mapstructure:"all_varchar"`
}

// CSV reads a delimited file through an in-memory DuckDB, which sniffs the
// dialect and column types.
type CSV struct {
	BaseSQLSource
}

// NewCSV creates a CSV source.
func NewCSV(logger *slog.Logger, norm normalize.Normalizer) *CSV {
	return &CSV{BaseSQLSource{Logger: logger, Normalizer: norm, Decode: decodeDuckDB}}
}

// Load implements Source.
func (c *CSV) Load(ctx context.Context, spec Spec) (*core.Table, error) {
	if spec.Path == "" {
		return nil, fmt.Errorf("csv source needs a path")
	}
	var opts CSVOptions
	if err := DecodeOptions(spec.Options, &opts); err != nil {
		return nil, fmt.Errorf("csv %s: %w", spec.Path, err)
	}
	overrides, err := spec.ColumnOverrides()
	if err != nil {
		return nil, err
	}
	absPath, err := filepath.Abs(spec.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	db, err := c.OpenDB(ctx, "duckdb", ":memory:")
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	c.logger().Debug("reading csv", "path", absPath)
	return c.QueryTable(ctx, db, csvQuery(absPath, opts), overrides)
}

func csvQuery(path string, opts CSVOptions) string {
	args := []string{sqlString(path)}
	header := true
	if opts.Header != nil {
		header = *opts.Header
	}
	args = append(args, fmt.Sprintf("header=%t", header))
	if opts.Delimiter != "" {
		args = append(args, "delim="+sqlString(opts.Delimiter))
	}
	if opts.AllVarchar {
		args = append(args, "all_varchar=true")
	}
	return "SELECT * FROM read_csv_auto(" + strings.Join(args, ", ") + ")"
}

func sqlString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
