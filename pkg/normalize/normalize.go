// Package normalize turns cell values into the canonical form used for join
// key comparison, and coerces raw text into typed cells for loaders.
//
// Canonicalization never fails: anything empty or unparseable for the
// requested column type becomes core.Missing. Every function here is pure and
// idempotent, so canonicalizing a canonical value returns it unchanged.
package normalize

import (
	"math/big"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/leapstack-labs/jointab/pkg/core"
)

// Normalizer canonicalizes values. The zero value interprets zone-naive
// timestamps as UTC.
type Normalizer struct {
	// Location is the zone assumed for timestamps that carry none.
	Location *time.Location
}

// New returns a Normalizer that reads zone-naive timestamps in loc.
func New(loc *time.Location) Normalizer {
	return Normalizer{Location: loc}
}

func (n Normalizer) location() *time.Location {
	if n.Location == nil {
		return time.UTC
	}
	return n.Location
}

// Canonicalize is Normalizer{}.Canonicalize.
func Canonicalize(v core.Value, t core.ColumnType) core.Value {
	return Normalizer{}.Canonicalize(v, t)
}

// Coerce is Normalizer{}.Coerce.
func Coerce(raw string, t core.ColumnType) core.Value {
	return Normalizer{}.Coerce(raw, t)
}

// Canonicalize returns the comparable form of v for a column of type t.
// Values of a foreign kind are converted where the conversion is unambiguous
// (text "42" into a number column, numeric 1/0 into a boolean column, epoch
// seconds into a timestamp column); everything else is Missing.
func (n Normalizer) Canonicalize(v core.Value, t core.ColumnType) core.Value {
	if v.IsMissing() {
		return core.Missing()
	}
	switch t {
	case core.TypeText:
		return canonicalText(v)
	case core.TypeNumber:
		return canonicalNumber(v)
	case core.TypeTimestamp:
		return n.canonicalTimestamp(v)
	case core.TypeBoolean:
		return canonicalBool(v)
	default:
		return core.Missing()
	}
}

// Coerce parses raw text into a cell of type t without canonicalizing it:
// text cells keep their original spelling. Blank input is Missing.
func (n Normalizer) Coerce(raw string, t core.ColumnType) core.Value {
	if strings.TrimSpace(raw) == "" {
		return core.Missing()
	}
	switch t {
	case core.TypeText:
		return core.Text(raw)
	case core.TypeNumber:
		if r, ok := ParseNumber(raw); ok {
			return core.Number(r)
		}
	case core.TypeTimestamp:
		if ts, ok := ParseTimestamp(raw, n.location()); ok {
			return core.Timestamp(ts)
		}
	case core.TypeBoolean:
		if b, ok := ParseBool(raw); ok {
			return core.Bool(b)
		}
	}
	return core.Missing()
}

var foldPool = sync.Pool{
	New: func() any {
		c := cases.Fold()
		return &c
	},
}

// FoldText applies the text key rules: whitespace is trimmed and internal
// runs collapse to one space, case is fully folded, and the result is NFC.
func FoldText(s string) string {
	s = strings.Join(strings.Fields(norm.NFC.String(s)), " ")
	if s == "" {
		return ""
	}
	c := foldPool.Get().(*cases.Caser)
	s = c.String(s)
	foldPool.Put(c)
	return norm.NFC.String(s)
}

func canonicalText(v core.Value) core.Value {
	s, ok := v.AsText()
	if !ok {
		s = v.String()
	}
	if s = FoldText(s); s == "" {
		return core.Missing()
	}
	return core.Text(s)
}

func canonicalNumber(v core.Value) core.Value {
	switch v.Kind() {
	case core.KindNumber:
		return v
	case core.KindText:
		s, _ := v.AsText()
		if r, ok := ParseNumber(s); ok {
			return core.Number(r)
		}
	case core.KindBoolean:
		if b, _ := v.AsBool(); b {
			return core.Int(1)
		}
		return core.Int(0)
	}
	return core.Missing()
}

func (n Normalizer) canonicalTimestamp(v core.Value) core.Value {
	switch v.Kind() {
	case core.KindTimestamp:
		ts, _ := v.AsTimestamp()
		return core.Timestamp(ts.UTC())
	case core.KindText:
		s, _ := v.AsText()
		if ts, ok := ParseTimestamp(s, n.location()); ok {
			return core.Timestamp(ts)
		}
	case core.KindNumber:
		r, _ := v.AsNumber()
		if ts, ok := epochSeconds(r); ok {
			return core.Timestamp(ts)
		}
	}
	return core.Missing()
}

func canonicalBool(v core.Value) core.Value {
	switch v.Kind() {
	case core.KindBoolean:
		return v
	case core.KindText:
		s, _ := v.AsText()
		if b, ok := ParseBool(s); ok {
			return core.Bool(b)
		}
	case core.KindNumber:
		r, _ := v.AsNumber()
		switch {
		case r.Cmp(ratOne) == 0:
			return core.Bool(true)
		case r.Sign() == 0:
			return core.Bool(false)
		}
	}
	return core.Missing()
}

var (
	ratOne      = big.NewRat(1, 1)
	nanosPerSec = big.NewRat(int64(time.Second), 1)
)

// epochSeconds reads r as seconds since the Unix epoch, truncated to the
// nanosecond.
func epochSeconds(r *big.Rat) (time.Time, bool) {
	ns := new(big.Rat).Mul(r, nanosPerSec)
	q := new(big.Int).Quo(ns.Num(), ns.Denom())
	if !q.IsInt64() {
		return time.Time{}, false
	}
	return time.Unix(0, q.Int64()).UTC(), true
}
