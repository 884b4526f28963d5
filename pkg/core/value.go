package core

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// ColumnType is the declared type of a column.
type ColumnType string

// Declared column types.
const (
	TypeText      ColumnType = "text"
	TypeNumber    ColumnType = "number"
	TypeTimestamp ColumnType = "timestamp"
	TypeBoolean   ColumnType = "boolean"
)

// ParseColumnType parses a declared type name.
func ParseColumnType(s string) (ColumnType, error) {
	switch ColumnType(s) {
	case TypeText, TypeNumber, TypeTimestamp, TypeBoolean:
		return ColumnType(s), nil
	}
	return "", fmt.Errorf("unknown column type %q (want text, number, timestamp or boolean)", s)
}

// Kind identifies which variant a Value holds.
type Kind uint8

// Value kinds. KindMissing is the zero kind.
const (
	KindMissing Kind = iota
	KindText
	KindNumber
	KindTimestamp
	KindBoolean
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindTimestamp:
		return "timestamp"
	case KindBoolean:
		return "boolean"
	default:
		return "missing"
	}
}

// Kind returns the value kind cells of this column type carry.
func (t ColumnType) Kind() Kind {
	switch t {
	case TypeText:
		return KindText
	case TypeNumber:
		return KindNumber
	case TypeTimestamp:
		return KindTimestamp
	case TypeBoolean:
		return KindBoolean
	default:
		return KindMissing
	}
}

// Value is a single cell. It is a tagged union over text, number, timestamp,
// boolean and Missing. The zero Value is Missing.
//
// Values are immutable: the number variant shares its *big.Rat and callers
// must not modify what Number returns.
type Value struct {
	kind Kind
	text string
	num  *big.Rat
	ts   time.Time
	b    bool
}

// Missing returns the missing-value sentinel.
func Missing() Value { return Value{} }

// Text returns a text value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Number returns a number value. A nil r is Missing.
func Number(r *big.Rat) Value {
	if r == nil {
		return Value{}
	}
	return Value{kind: KindNumber, num: new(big.Rat).Set(r)}
}

// Int returns a number value holding i.
func Int(i int64) Value {
	return Value{kind: KindNumber, num: new(big.Rat).SetInt64(i)}
}

// Float returns a number value holding f. The float is widened through its
// shortest decimal representation, so Float(0.1) equals the decimal 0.1.
// NaN and infinities are Missing.
func Float(f float64) Value {
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(f, 'g', -1, 64))
	if !ok {
		return Value{}
	}
	return Value{kind: KindNumber, num: r}
}

// Timestamp returns a timestamp value.
func Timestamp(t time.Time) Value { return Value{kind: KindTimestamp, ts: t} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBoolean, b: b} }

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsMissing reports whether v is the missing sentinel.
func (v Value) IsMissing() bool { return v.kind == KindMissing }

// AsText returns the text held by v.
func (v Value) AsText() (string, bool) { return v.text, v.kind == KindText }

// AsNumber returns the number held by v.
func (v Value) AsNumber() (*big.Rat, bool) { return v.num, v.kind == KindNumber }

// AsTimestamp returns the instant held by v.
func (v Value) AsTimestamp() (time.Time, bool) { return v.ts, v.kind == KindTimestamp }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBoolean }

// Identical reports whether v and o hold the same variant and payload.
// Two Missing values are identical here; join matching never uses this.
func (v Value) Identical(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindText:
		return v.text == o.text
	case KindNumber:
		return v.num.Cmp(o.num) == 0
	case KindTimestamp:
		return v.ts.Equal(o.ts)
	case KindBoolean:
		return v.b == o.b
	default:
		return true
	}
}

// String renders v for display. Missing renders as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return FormatNumber(v.num)
	case KindTimestamp:
		return v.ts.Format(time.RFC3339Nano)
	case KindBoolean:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// GoString makes test failure output readable.
func (v Value) GoString() string {
	if v.kind == KindMissing {
		return "Missing"
	}
	return fmt.Sprintf("%s(%s)", v.kind, v.String())
}

// FormatNumber renders r as an integer when it is one and as its exact
// decimal expansion when the expansion terminates. Repeating fractions fall
// back to the shortest float that round-trips.
func FormatNumber(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	if scale, ok := decimalScale(r.Denom()); ok {
		s := r.FloatString(scale)
		return strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	f, _ := r.Float64()
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// decimalScale reports the number of fractional digits needed to write
// 1/den exactly, or false when den has a prime factor other than 2 or 5.
func decimalScale(den *big.Int) (int, bool) {
	d := new(big.Int).Set(den)
	two, five := big.NewInt(2), big.NewInt(5)
	var twos, fives int
	m := new(big.Int)
	for {
		q, rem := new(big.Int).QuoRem(d, two, m)
		if rem.Sign() != 0 {
			break
		}
		d, twos = q, twos+1
	}
	for {
		q, rem := new(big.Int).QuoRem(d, five, m)
		if rem.Sign() != 0 {
			break
		}
		d, fives = q, fives+1
	}
	if d.Cmp(big.NewInt(1)) != 0 {
		return 0, false
	}
	return max(twos, fives), true
}
