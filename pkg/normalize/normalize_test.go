package normalize

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/jointab/pkg/core"
)

func TestCanonicalize_Text(t *testing.T) {
	tests := []struct {
		name string
		in   core.Value
		want string
	}{
		{"trim and fold", core.Text("  Alice "), "alice"},
		{"collapse internal whitespace", core.Text("New \t  York"), "new york"},
		{"full case fold", core.Text("STRASSE"), "strasse"},
		{"sharp s folds", core.Text("Straße"), "strasse"},
		{"composed and decomposed agree", core.Text("Café"), "café"},
		{"number rendered as text", core.Int(7), "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Canonicalize(tt.in, core.TypeText)
			s, ok := got.AsText()
			require.True(t, ok)
			assert.Equal(t, tt.want, s)
		})
	}
}

func TestCanonicalize_BlankTextIsMissing(t *testing.T) {
	assert.True(t, Canonicalize(core.Text("   "), core.TypeText).IsMissing())
	assert.True(t, Canonicalize(core.Text(""), core.TypeText).IsMissing())
}

func TestCanonicalize_Number(t *testing.T) {
	tests := []struct {
		name    string
		in      core.Value
		want    string
		missing bool
	}{
		{"integer", core.Int(2), "2", false},
		{"float widens exactly", core.Float(0.1), "1/10", false},
		{"decimal text", core.Text(" 2.50 "), "5/2", false},
		{"exponent text", core.Text("1e3"), "1000", false},
		{"bool widens", core.Bool(true), "1", false},
		{"garbage text", core.Text("12abc"), "", true},
		{"thousands separator", core.Text("1,000"), "", true},
		{"timestamp is not a number", core.Timestamp(time.Unix(0, 0)), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Canonicalize(tt.in, core.TypeNumber)
			if tt.missing {
				assert.True(t, got.IsMissing())
				return
			}
			r, ok := got.AsNumber()
			require.True(t, ok)
			assert.Equal(t, tt.want, r.RatString())
		})
	}
}

func TestCanonicalize_NumbersCompareByValue(t *testing.T) {
	a := Canonicalize(core.Int(2), core.TypeNumber)
	b := Canonicalize(core.Text("2.0"), core.TypeNumber)
	c := Canonicalize(core.Float(2), core.TypeNumber)
	assert.True(t, a.Identical(b))
	assert.True(t, a.Identical(c))

	// No epsilon: values that differ in the last place stay distinct.
	d := Canonicalize(core.Float(0.1+0.2), core.TypeNumber)
	e := Canonicalize(core.Text("0.3"), core.TypeNumber)
	assert.False(t, d.Identical(e))
}

func TestCanonicalize_Timestamp(t *testing.T) {
	cet := time.FixedZone("CET", 3600)

	want := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		n    Normalizer
		in   core.Value
		want time.Time
	}{
		{"zoned text", Normalizer{}, core.Text("2024-01-15T10:30:00+01:00"), want},
		{"naive text defaults to utc", Normalizer{}, core.Text("2024-01-15 09:30:00"), want},
		{"naive text in configured zone", New(cet), core.Text("2024-01-15 10:30:00"), want},
		{"zoned value converted to utc", Normalizer{}, core.Timestamp(want.In(cet)), want},
		{"epoch seconds", Normalizer{}, core.Int(want.Unix()), want},
		{"date only", Normalizer{}, core.Text("2024-01-15"), time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.n.Canonicalize(tt.in, core.TypeTimestamp)
			ts, ok := got.AsTimestamp()
			require.True(t, ok)
			assert.True(t, tt.want.Equal(ts), "got %s want %s", ts, tt.want)
			assert.Equal(t, time.UTC, ts.Location())
		})
	}

	assert.True(t, Canonicalize(core.Text("yesterday"), core.TypeTimestamp).IsMissing())
}

func TestCanonicalize_Boolean(t *testing.T) {
	for _, s := range []string{"true", "T", "Yes", "y", "ON", "1"} {
		b, ok := Canonicalize(core.Text(s), core.TypeBoolean).AsBool()
		assert.True(t, ok, s)
		assert.True(t, b, s)
	}
	for _, s := range []string{"false", "F", "no", "N", "off", "0"} {
		b, ok := Canonicalize(core.Text(s), core.TypeBoolean).AsBool()
		assert.True(t, ok, s)
		assert.False(t, b, s)
	}

	b, ok := Canonicalize(core.Int(1), core.TypeBoolean).AsBool()
	assert.True(t, ok)
	assert.True(t, b)

	assert.True(t, Canonicalize(core.Int(2), core.TypeBoolean).IsMissing())
	assert.True(t, Canonicalize(core.Text("maybe"), core.TypeBoolean).IsMissing())
}

func TestCanonicalize_Idempotent(t *testing.T) {
	n := New(time.FixedZone("CET", 3600))

	cases := []struct {
		v   core.Value
		typ core.ColumnType
	}{
		{core.Text("  Mixed   CASE straße "), core.TypeText},
		{core.Text("İstanbul"), core.TypeText},
		{core.Text("ﬁle"), core.TypeText},
		{core.Text("3.14159"), core.TypeNumber},
		{core.Float(1e-7), core.TypeNumber},
		{core.Number(big.NewRat(-7, 3)), core.TypeNumber},
		{core.Text("2024-06-01 12:00:00.123"), core.TypeTimestamp},
		{core.Int(1700000000), core.TypeTimestamp},
		{core.Text("Yes"), core.TypeBoolean},
		{core.Missing(), core.TypeText},
		{core.Text("n/a"), core.TypeNumber},
	}

	for _, c := range cases {
		once := n.Canonicalize(c.v, c.typ)
		twice := n.Canonicalize(once, c.typ)
		assert.True(t, once.Identical(twice), "%#v: %#v != %#v", c.v, once, twice)
	}
}

func TestCoerce(t *testing.T) {
	assert.True(t, Coerce("", core.TypeText).IsMissing())
	assert.True(t, Coerce("  ", core.TypeNumber).IsMissing())

	s, ok := Coerce("  Keep Me ", core.TypeText).AsText()
	require.True(t, ok)
	assert.Equal(t, "  Keep Me ", s)

	r, ok := Coerce("12.5", core.TypeNumber).AsNumber()
	require.True(t, ok)
	assert.Equal(t, "25/2", r.RatString())

	assert.True(t, Coerce("abc", core.TypeNumber).IsMissing())
	assert.True(t, Coerce("2024-13-01", core.TypeTimestamp).IsMissing())

	b, ok := Coerce("no", core.TypeBoolean).AsBool()
	require.True(t, ok)
	assert.False(t, b)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"0", "0", true},
		{"-12", "-12", true},
		{"+0.5", "1/2", true},
		{"1.25e-2", "1/80", true},
		{"1/3", "", false},
		{"0x1F", "", false},
		{"NaN", "", false},
		{"Inf", "", false},
		{"1e99999", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, ok := ParseNumber(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, r.RatString())
			}
		})
	}
}
