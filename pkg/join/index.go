package join

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/zeebo/xxh3"

	"github.com/leapstack-labs/jointab/pkg/core"
	"github.com/leapstack-labs/jointab/pkg/normalize"
)

// keyEncoder turns the key cells of one row into comparable bytes. Equal
// canonical tuples encode to equal bytes and nothing else does.
type keyEncoder struct {
	norm  normalize.Normalizer
	cols  []*core.Column
	types []core.ColumnType
	buf   []byte
}

func newKeyEncoder(t *core.Table, keys []string, side core.Side, n normalize.Normalizer) (*keyEncoder, error) {
	e := &keyEncoder{
		norm:  n,
		cols:  make([]*core.Column, len(keys)),
		types: make([]core.ColumnType, len(keys)),
	}
	for i, k := range keys {
		col := t.Column(k)
		if col == nil {
			return nil, &core.KeySpecError{Reason: "column not found", Side: side, Column: k}
		}
		e.cols[i] = col
		e.types[i] = col.Type
	}
	return e, nil
}

// encode returns the key of row, or false when any component is Missing.
// The returned slice is reused by the next call.
func (e *keyEncoder) encode(row int) ([]byte, bool) {
	e.buf = e.buf[:0]
	for i, col := range e.cols {
		v := e.norm.Canonicalize(col.Values[row], e.types[i])
		if v.IsMissing() {
			return nil, false
		}
		e.buf = appendValue(e.buf, v)
	}
	return e.buf, true
}

func appendValue(b []byte, v core.Value) []byte {
	b = append(b, byte(v.Kind()))
	switch v.Kind() {
	case core.KindText:
		s, _ := v.AsText()
		b = binary.AppendUvarint(b, uint64(len(s)))
		b = append(b, s...)
	case core.KindNumber:
		r, _ := v.AsNumber()
		s := r.RatString()
		b = binary.AppendUvarint(b, uint64(len(s)))
		b = append(b, s...)
	case core.KindTimestamp:
		ts, _ := v.AsTimestamp()
		b = binary.BigEndian.AppendUint64(b, uint64(ts.Unix()))
		b = binary.BigEndian.AppendUint32(b, uint32(ts.Nanosecond()))
	case core.KindBoolean:
		if x, _ := v.AsBool(); x {
			b = append(b, 1)
		} else {
			b = append(b, 0)
		}
	}
	return b
}

type indexEntry struct {
	key  []byte
	rows []uint32
}

// Index maps normalized keys to the rows holding them, in row order.
// Rows whose key has a Missing component are not indexed.
type Index struct {
	buckets map[uint64][]*indexEntry
	keys    int
	rows    int
}

// BuildIndex indexes t on the given key columns.
func BuildIndex(t *core.Table, keys []string, n normalize.Normalizer) (*Index, error) {
	enc, err := newKeyEncoder(t, keys, core.SideRight, n)
	if err != nil {
		return nil, err
	}
	if uint64(t.RowCount()) > math.MaxUint32 {
		return nil, fmt.Errorf("join: table too large to index (%d rows)", t.RowCount())
	}
	ix := &Index{buckets: make(map[uint64][]*indexEntry, t.RowCount())}
	for row := 0; row < t.RowCount(); row++ {
		key, ok := enc.encode(row)
		if !ok {
			continue
		}
		ix.insert(key, uint32(row))
	}
	return ix, nil
}

func (ix *Index) insert(key []byte, row uint32) {
	h := xxh3.Hash(key)
	for _, e := range ix.buckets[h] {
		if bytes.Equal(e.key, key) {
			e.rows = append(e.rows, row)
			ix.rows++
			return
		}
	}
	ix.buckets[h] = append(ix.buckets[h], &indexEntry{
		key:  bytes.Clone(key),
		rows: []uint32{row},
	})
	ix.keys++
	ix.rows++
}

// Lookup returns the rows stored under key in insertion order, or nil.
// The result must not be modified.
func (ix *Index) Lookup(key []byte) []uint32 {
	for _, e := range ix.buckets[xxh3.Hash(key)] {
		if bytes.Equal(e.key, key) {
			return e.rows
		}
	}
	return nil
}

// Len returns the number of distinct keys.
func (ix *Index) Len() int { return ix.keys }

// Rows returns the number of indexed rows.
func (ix *Index) Rows() int { return ix.rows }
