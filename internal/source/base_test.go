package source

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/jointab/internal/testutil"
	"github.com/leapstack-labs/jointab/pkg/core"
	"github.com/leapstack-labs/jointab/pkg/normalize"
)

func TestColumnTypeFor(t *testing.T) {
	tests := []struct {
		dbType string
		want   core.ColumnType
	}{
		{"BIGINT", core.TypeNumber},
		{"int4", core.TypeNumber},
		{"DECIMAL(18,3)", core.TypeNumber},
		{"UNSIGNED BIGINT", core.TypeNumber},
		{"DOUBLE PRECISION", core.TypeNumber},
		{"NUMERIC", core.TypeNumber},
		{"BOOLEAN", core.TypeBoolean},
		{"BOOL", core.TypeBoolean},
		{"TIMESTAMP WITH TIME ZONE", core.TypeTimestamp},
		{"TIMESTAMPTZ", core.TypeTimestamp},
		{"DATE", core.TypeTimestamp},
		{"DATETIME", core.TypeTimestamp},
		{"VARCHAR", core.TypeText},
		{"INTERVAL", core.TypeText},
		{"POINT", core.TypeText},
		{"", core.TypeText},
	}

	for _, tt := range tests {
		t.Run(tt.dbType, func(t *testing.T) {
			assert.Equal(t, tt.want, ColumnTypeFor(tt.dbType))
		})
	}
}

func TestBaseSQLSource_Cell(t *testing.T) {
	b := &BaseSQLSource{}
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		v    any
		typ  core.ColumnType
		want string
	}{
		{"nil is missing", nil, core.TypeNumber, "Missing"},
		{"int64", int64(7), core.TypeNumber, "number(7)"},
		{"uint64", uint64(1) << 63, core.TypeNumber, "number(9223372036854775808)"},
		{"float", 2.5, core.TypeNumber, "number(2.5)"},
		{"big rat", big.NewRat(1, 4), core.TypeNumber, "number(0.25)"},
		{"numeric text", []byte("10.50"), core.TypeNumber, "number(10.5)"},
		{"unparseable number", "n/a", core.TypeNumber, "Missing"},
		{"int in text column", int64(42), core.TypeText, "text(42)"},
		{"text kept verbatim", "  Mixed Case ", core.TypeText, "text(  Mixed Case )"},
		{"blank text", "  ", core.TypeText, "Missing"},
		{"bool", true, core.TypeBoolean, "boolean(true)"},
		{"int as boolean", int64(0), core.TypeBoolean, "boolean(false)"},
		{"time", at, core.TypeTimestamp, "timestamp(2024-03-01T12:00:00Z)"},
		{"timestamp text", "2024-03-01 12:00:00", core.TypeTimestamp, "timestamp(2024-03-01T12:00:00Z)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Cell(tt.v, tt.typ).GoString())
		})
	}
}

func TestBaseSQLSource_QueryTable(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := mock.NewRowsWithColumnDefinition(
		mock.NewColumn("id").OfType("BIGINT", int64(0)),
		mock.NewColumn("name").OfType("VARCHAR", ""),
		mock.NewColumn("active").OfType("BOOLEAN", false),
		mock.NewColumn("code").OfType("VARCHAR", ""),
	).
		AddRow(int64(1), "Ann", true, "007").
		AddRow(int64(2), nil, false, "12")
	mock.ExpectQuery(`SELECT * FROM "people"`).WillReturnRows(rows)

	b := &BaseSQLSource{Logger: testutil.NewTestLogger(t), Normalizer: normalize.Normalizer{}}
	tbl, err := b.QueryTable(context.Background(), db, `SELECT * FROM "people"`,
		map[string]core.ColumnType{"code": core.TypeNumber})
	require.NoError(t, err)

	assert.Equal(t, []core.ColumnInfo{
		{Name: "id", Type: core.TypeNumber},
		{Name: "name", Type: core.TypeText},
		{Name: "active", Type: core.TypeBoolean},
		{Name: "code", Type: core.TypeNumber},
	}, tbl.Infos())
	assert.Equal(t, [][]string{
		{"number(1)", "text(Ann)", "boolean(true)", "number(7)"},
		{"number(2)", "Missing", "boolean(false)", "number(12)"},
	}, testutil.Rows(tbl))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLSource_QueryTableErrors(t *testing.T) {
	b := &BaseSQLSource{}

	_, err := b.QueryTable(context.Background(), nil, "SELECT 1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database connection not established")

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	mock.ExpectQuery("SELECT").WillReturnError(assert.AnError)

	_, err = b.QueryTable(context.Background(), db, "SELECT broken", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestSpec_SelectQuery(t *testing.T) {
	q, err := Spec{Table: "sales.orders"}.SelectQuery(quoteIdent)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "sales"."orders"`, q)

	q, err = Spec{Table: "odd`name"}.SelectQuery(quoteBacktick)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `odd``name`", q)

	q, err = Spec{Table: "ignored", Query: "SELECT 1"}.SelectQuery(quoteIdent)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", q)

	_, err = Spec{Type: "sqlite"}.SelectQuery(quoteIdent)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a table or a query")
}

func TestSpec_ColumnOverrides(t *testing.T) {
	got, err := Spec{Columns: map[string]string{"at": " Timestamp ", "n": "number"}}.ColumnOverrides()
	require.NoError(t, err)
	assert.Equal(t, map[string]core.ColumnType{"at": core.TypeTimestamp, "n": core.TypeNumber}, got)

	_, err = Spec{Columns: map[string]string{"x": "blob"}}.ColumnOverrides()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "x"`)
}

func TestDecodeOptions(t *testing.T) {
	var opts CSVOptions
	require.NoError(t, DecodeOptions(map[string]any{"delimiter": ";", "header": "false"}, &opts))
	assert.Equal(t, ";", opts.Delimiter)
	require.NotNil(t, opts.Header)
	assert.False(t, *opts.Header)

	err := DecodeOptions(map[string]any{"delimeter": ";"}, &opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid options")
}
