package source

import (
	"context"
	"database/sql"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/marcboeker/go-duckdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/jointab/internal/testutil"
	"github.com/leapstack-labs/jointab/pkg/core"
	"github.com/leapstack-labs/jointab/pkg/normalize"
)

func TestCSV_Load(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "people.csv", "id,name,score\n1,Ann,2.5\n2,Bob,\n")

	src := NewCSV(testutil.NewTestLogger(t), normalize.Normalizer{})
	tbl, err := src.Load(context.Background(), Spec{Type: "csv", Path: path})
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "score"}, tbl.Names())
	assert.Equal(t, core.TypeNumber, tbl.Column("id").Type)
	assert.Equal(t, core.TypeText, tbl.Column("name").Type)
	assert.Equal(t, [][]string{
		{"number(1)", "text(Ann)", "number(2.5)"},
		{"number(2)", "text(Bob)", "Missing"},
	}, testutil.Rows(tbl))
}

func TestCSV_Options(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "codes.txt", "code;label\n007;bond\n")

	src := NewCSV(nil, normalize.Normalizer{})
	tbl, err := src.Load(context.Background(), Spec{
		Type:    "csv",
		Path:    path,
		Options: map[string]any{"delimiter": ";", "all_varchar": true},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"text(007)", "text(bond)"}}, testutil.Rows(tbl))

	_, err = src.Load(context.Background(), Spec{Type: "csv", Path: path, Options: map[string]any{"sep": ";"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid options")

	_, err = src.Load(context.Background(), Spec{Type: "csv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a path")
}

func TestCSVQuery(t *testing.T) {
	noHeader := false
	tests := []struct {
		name string
		opts CSVOptions
		want string
	}{
		{"defaults", CSVOptions{}, "SELECT * FROM read_csv_auto('/d/a.csv', header=true)"},
		{"no header", CSVOptions{Header: &noHeader}, "SELECT * FROM read_csv_auto('/d/a.csv', header=false)"},
		{"delimiter quoted", CSVOptions{Delimiter: "'"}, "SELECT * FROM read_csv_auto('/d/a.csv', header=true, delim='''')"},
		{"all varchar", CSVOptions{AllVarchar: true}, "SELECT * FROM read_csv_auto('/d/a.csv', header=true, all_varchar=true)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, csvQuery("/d/a.csv", tt.opts))
		})
	}
}

func TestDuckDB_LoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabs.duckdb")
	db, err := sql.Open("duckdb", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE events (id INTEGER, happened DATE, ok BOOLEAN)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO events VALUES (1, DATE '2024-05-06', true), (2, NULL, false)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	src := NewDuckDB(testutil.NewTestLogger(t), normalize.Normalizer{})
	tbl, err := src.Load(context.Background(), Spec{Type: "duckdb", Path: path, Table: "events"})
	require.NoError(t, err)

	assert.Equal(t, []core.ColumnInfo{
		{Name: "id", Type: core.TypeNumber},
		{Name: "happened", Type: core.TypeTimestamp},
		{Name: "ok", Type: core.TypeBoolean},
	}, tbl.Infos())
	assert.Equal(t, [][]string{
		{"number(1)", "timestamp(2024-05-06T00:00:00Z)", "boolean(true)"},
		{"number(2)", "Missing", "boolean(false)"},
	}, testutil.Rows(tbl))
}

func TestDuckDB_LoadDecimal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.duckdb")
	db, err := sql.Open("duckdb", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE p (id INTEGER, price DECIMAL(10,2), wide DECIMAL(20,2))`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO p VALUES (1, 1.50, 12345678901234567.25), (2, 2.25, NULL)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	src := NewDuckDB(testutil.NewTestLogger(t), normalize.Normalizer{})
	tbl, err := src.Load(context.Background(), Spec{Type: "duckdb", Path: path, Table: "p"})
	require.NoError(t, err)

	assert.Equal(t, []core.ColumnInfo{
		{Name: "id", Type: core.TypeNumber},
		{Name: "price", Type: core.TypeNumber},
		{Name: "wide", Type: core.TypeNumber},
	}, tbl.Infos())
	assert.Equal(t, [][]string{
		{"number(1)", "number(1.5)", "number(12345678901234567.25)"},
		{"number(2)", "number(2.25)", "Missing"},
	}, testutil.Rows(tbl))
}

func TestDecodeDuckDB(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want string
	}{
		{"decimal", duckdb.Decimal{Width: 10, Scale: 2, Value: big.NewInt(150)}, "number(1.5)"},
		{"negative decimal", duckdb.Decimal{Width: 5, Scale: 3, Value: big.NewInt(-125)}, "number(-0.125)"},
		{"zero scale", duckdb.Decimal{Width: 4, Scale: 0, Value: big.NewInt(42)}, "number(42)"},
		{"decimal pointer", &duckdb.Decimal{Width: 10, Scale: 1, Value: big.NewInt(5)}, "number(0.5)"},
		{"nil value", duckdb.Decimal{Width: 10, Scale: 2}, "Missing"},
		{"nil pointer", (*duckdb.Decimal)(nil), "Missing"},
		{"other values pass through", int64(3), "number(3)"},
	}

	b := &BaseSQLSource{Decode: decodeDuckDB}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Cell(tt.v, core.TypeNumber).GoString())
		})
	}
}

func TestDuckDB_InMemoryQuery(t *testing.T) {
	src := NewDuckDB(nil, normalize.Normalizer{})
	tbl, err := src.Load(context.Background(), Spec{
		Type:  "duckdb",
		Query: "SELECT 'x' AS k, 3 AS n",
	})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"text(x)", "number(3)"}}, testutil.Rows(tbl))
}
