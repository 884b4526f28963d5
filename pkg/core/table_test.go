package core

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewColumn_RejectsForeignKinds(t *testing.T) {
	_, err := NewColumn("id", TypeNumber, []Value{Int(1), Text("2")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")

	col, err := NewColumn("id", TypeNumber, []Value{Int(1), Missing()})
	require.NoError(t, err)
	assert.Equal(t, 2, col.Len())
}

func TestNewColumn_UnknownType(t *testing.T) {
	_, err := NewColumn("x", ColumnType("blob"), nil)
	require.Error(t, err)
}

func TestNewTable(t *testing.T) {
	tests := []struct {
		name    string
		cols    []*Column
		wantErr string
	}{
		{
			name: "valid",
			cols: []*Column{
				MustColumn("id", TypeNumber, Int(1), Int(2)),
				MustColumn("name", TypeText, Text("a"), Text("b")),
			},
		},
		{
			name: "length mismatch",
			cols: []*Column{
				MustColumn("id", TypeNumber, Int(1), Int(2)),
				MustColumn("name", TypeText, Text("a")),
			},
			wantErr: "has 1 rows, expected 2",
		},
		{
			name: "duplicate name",
			cols: []*Column{
				MustColumn("id", TypeNumber, Int(1)),
				MustColumn("id", TypeText, Text("a")),
			},
			wantErr: "duplicate column name",
		},
		{
			name: "empty table",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := NewTable(tt.cols...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.cols), tbl.Width())
		})
	}
}

func TestTable_Accessors(t *testing.T) {
	tbl := MustTable(
		MustColumn("id", TypeNumber, Int(1), Int(2)),
		MustColumn("name", TypeText, Text("a"), Missing()),
	)

	assert.Equal(t, 2, tbl.RowCount())
	assert.Equal(t, []string{"id", "name"}, tbl.Names())
	assert.Equal(t, 1, tbl.ColumnIndex("name"))
	assert.Equal(t, -1, tbl.ColumnIndex("nope"))
	assert.Nil(t, tbl.Column("nope"))
	assert.True(t, tbl.Cell(1, 1).IsMissing())

	row := tbl.Row(0)
	require.Len(t, row, 2)
	assert.Equal(t, "1", row[0].String())
	assert.Equal(t, "a", row[1].String())
}

func TestValue_Variants(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, Missing().IsMissing())
	assert.True(t, Value{}.IsMissing())
	assert.True(t, Number(nil).IsMissing())
	assert.True(t, Float(nanFloat()).IsMissing())

	assert.True(t, Float(0.1).Identical(Number(big.NewRat(1, 10))))
	assert.True(t, Int(2).Identical(Float(2.0)))
	assert.False(t, Int(2).Identical(Text("2")))
	assert.True(t, Timestamp(ts).Identical(Timestamp(ts.In(time.FixedZone("x", 3600)))))

	assert.Equal(t, "0.25", Float(0.25).String())
	assert.Equal(t, "42", Int(42).String())
	assert.Equal(t, "true", Bool(true).String())
	assert.Equal(t, "2024-03-01T12:00:00Z", Timestamp(ts).String())
	assert.Equal(t, "", Missing().String())
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"42", "42"},
		{"-7", "-7"},
		{"2.5", "2.5"},
		{"-0.125", "-0.125"},
		{"1.50", "1.5"},
		{"0.0000001", "0.0000001"},
		{"12345678901234567.25", "12345678901234567.25"},
		{"-98765432109876543210.0625", "-98765432109876543210.0625"},
		{"1/3", "0.3333333333333333"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, ok := new(big.Rat).SetString(tt.in)
			require.True(t, ok)
			got := FormatNumber(r)
			assert.Equal(t, tt.want, got)
			if tt.in == "1/3" {
				return
			}
			back, ok := new(big.Rat).SetString(got)
			require.True(t, ok)
			assert.Zero(t, r.Cmp(back), "%s did not round-trip through %s", tt.in, got)
		})
	}
}

func TestParseJoinType(t *testing.T) {
	for in, want := range map[string]JoinType{
		"inner":      JoinInner,
		"LEFT":       JoinLeft,
		" right ":    JoinRight,
		"outer":      JoinOuter,
		"full":       JoinOuter,
		"Full Outer": JoinOuter,
	} {
		got, err := ParseJoinType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseJoinType("cross")
	assert.Error(t, err)
}

func TestKeySpecError_Is(t *testing.T) {
	err := error(&KeySpecError{Reason: "not found", Side: SideRight, Column: "id"})

	assert.True(t, errors.Is(err, ErrInvalidKeySpec))
	assert.False(t, errors.Is(err, ErrNoSharedColumns))
	assert.Equal(t, `invalid join key specification: right column "id": not found`, err.Error())

	var kse *KeySpecError
	require.True(t, errors.As(err, &kse))
	assert.Equal(t, SideRight, kse.Side)
}

func nanFloat() float64 {
	zero := 0.0
	return zero / zero
}
