package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/leapstack-labs/jointab/pkg/core"
	"github.com/leapstack-labs/jointab/pkg/normalize"
)

// SchemaMetadataKey is the key-value metadata entry jointab writes into
// parquet files. It records the column order and types, which a parquet
// group schema does not preserve.
const SchemaMetadataKey = "jointab.schema"

// SchemaColumn is one entry of the SchemaMetadataKey document.
type SchemaColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

const parquetBatchSize = 1000

// Parquet reads a flat parquet file. Nested and repeated columns are rejected.
type Parquet struct {
	BaseSQLSource
}

// NewParquet creates a parquet source.
func NewParquet(logger *slog.Logger, norm normalize.Normalizer) *Parquet {
	return &Parquet{BaseSQLSource{Logger: logger, Normalizer: norm}}
}

type parquetColumn struct {
	name    string
	typ     core.ColumnType
	leaf    int
	logical func(parquet.Value) any
	values  []core.Value
}

// Load implements Source.
func (p *Parquet) Load(ctx context.Context, spec Spec) (*core.Table, error) {
	if spec.Path == "" {
		return nil, fmt.Errorf("parquet source needs a path")
	}
	overrides, err := spec.ColumnOverrides()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(spec.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	cols, err := p.columns(pf, overrides)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", spec.Path, err)
	}
	p.logger().Debug("reading parquet", "path", spec.Path, "rows", pf.NumRows(), "columns", len(cols))

	byLeaf := make(map[int]*parquetColumn, len(cols))
	for _, c := range cols {
		byLeaf[c.leaf] = c
	}

	buf := make([]parquet.Row, parquetBatchSize)
	for _, rg := range pf.RowGroups() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := p.readRowGroup(rg, buf, byLeaf); err != nil {
			return nil, err
		}
	}

	out := make([]*core.Column, len(cols))
	for i, c := range cols {
		col, err := core.NewColumn(c.name, c.typ, c.values)
		if err != nil {
			return nil, err
		}
		out[i] = col
	}
	return core.NewTable(out...)
}

func (p *Parquet) readRowGroup(rg parquet.RowGroup, buf []parquet.Row, byLeaf map[int]*parquetColumn) error {
	rows := rg.Rows()
	defer func() { _ = rows.Close() }()

	for {
		n, err := rows.ReadRows(buf)
		for _, row := range buf[:n] {
			seen := make(map[int]bool, len(byLeaf))
			for _, v := range row {
				c, ok := byLeaf[v.Column()]
				if !ok || seen[v.Column()] {
					continue
				}
				seen[v.Column()] = true
				if v.IsNull() {
					c.values = append(c.values, core.Missing())
					continue
				}
				c.values = append(c.values, p.Cell(c.logical(v), c.typ))
			}
			for leaf, c := range byLeaf {
				if !seen[leaf] {
					c.values = append(c.values, core.Missing())
				}
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read rows: %w", err)
		}
		if n == 0 {
			return nil
		}
	}
}

// columns resolves the file's top-level fields in load order.
func (p *Parquet) columns(pf *parquet.File, overrides map[string]core.ColumnType) ([]*parquetColumn, error) {
	schema := pf.Schema()
	declared := map[string]core.ColumnType{}
	var order []string

	if doc, ok := pf.Lookup(SchemaMetadataKey); ok {
		var meta []SchemaColumn
		if err := json.Unmarshal([]byte(doc), &meta); err != nil {
			return nil, fmt.Errorf("invalid %s metadata: %w", SchemaMetadataKey, err)
		}
		for _, m := range meta {
			t, err := core.ParseColumnType(m.Type)
			if err != nil {
				return nil, fmt.Errorf("invalid %s metadata: %w", SchemaMetadataKey, err)
			}
			declared[m.Name] = t
			order = append(order, m.Name)
		}
	} else {
		for _, field := range schema.Fields() {
			order = append(order, field.Name())
		}
	}

	cols := make([]*parquetColumn, 0, len(order))
	for _, name := range order {
		leaf, ok := schema.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("column %q not found in parquet file", name)
		}
		node := leaf.Node
		if !node.Leaf() {
			return nil, fmt.Errorf("column %q is nested, only flat columns are supported", name)
		}
		if node.Repeated() {
			return nil, fmt.Errorf("column %q is repeated, only flat columns are supported", name)
		}

		typ, logical := parquetType(node.Type())
		if t, ok := declared[name]; ok {
			typ = t
		}
		if t, ok := overrides[name]; ok {
			typ = t
		}
		cols = append(cols, &parquetColumn{name: name, typ: typ, leaf: leaf.ColumnIndex, logical: logical})
	}
	return cols, nil
}

// parquetType maps a physical and logical parquet type to a column type and
// a converter producing a value BaseSQLSource.Cell accepts.
func parquetType(t parquet.Type) (core.ColumnType, func(parquet.Value) any) {
	lt := t.LogicalType()
	switch {
	case lt != nil && lt.Timestamp != nil:
		toTime := func(n int64) time.Time { return time.Unix(0, n) }
		switch {
		case lt.Timestamp.Unit.Millis != nil:
			toTime = time.UnixMilli
		case lt.Timestamp.Unit.Micros != nil:
			toTime = time.UnixMicro
		}
		return core.TypeTimestamp, func(v parquet.Value) any {
			return toTime(v.Int64()).UTC()
		}
	case lt != nil && lt.Date != nil:
		return core.TypeTimestamp, func(v parquet.Value) any {
			return time.Unix(int64(v.Int32())*86400, 0).UTC()
		}
	case lt != nil && lt.Decimal != nil:
		scale := lt.Decimal.Scale
		return core.TypeNumber, func(v parquet.Value) any {
			var unscaled *big.Int
			switch v.Kind() {
			case parquet.Int32:
				unscaled = big.NewInt(int64(v.Int32()))
			case parquet.Int64:
				unscaled = big.NewInt(v.Int64())
			default:
				unscaled = twosComplement(v.ByteArray())
			}
			denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(scale)), nil)
			return new(big.Rat).SetFrac(unscaled, denom)
		}
	}

	switch t.Kind() {
	case parquet.Boolean:
		return core.TypeBoolean, func(v parquet.Value) any { return v.Boolean() }
	case parquet.Int32:
		return core.TypeNumber, func(v parquet.Value) any { return int64(v.Int32()) }
	case parquet.Int64:
		return core.TypeNumber, func(v parquet.Value) any { return v.Int64() }
	case parquet.Float:
		return core.TypeNumber, func(v parquet.Value) any { return v.Float() }
	case parquet.Double:
		return core.TypeNumber, func(v parquet.Value) any { return v.Double() }
	default:
		return core.TypeText, func(v parquet.Value) any { return string(v.ByteArray()) }
	}
}

// twosComplement decodes a big-endian two's complement integer.
func twosComplement(b []byte) *big.Int {
	n := new(big.Int).SetBytes(b)
	if len(b) > 0 && b[0]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8)))
	}
	return n
}
