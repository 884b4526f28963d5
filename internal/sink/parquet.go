package sink

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/leapstack-labs/jointab/internal/source"
	"github.com/leapstack-labs/jointab/pkg/core"
)

const parquetBatchSize = 1000

// Parquet writes a flat file with one optional leaf per column. Numbers are
// stored as UTF-8 text so no precision is lost; the column types and order
// are recorded under source.SchemaMetadataKey and restored on load.
type Parquet struct{}

func (Parquet) Write(w io.Writer, t *core.Table) error {
	if t.Width() == 0 {
		return errors.New("cannot write a table with no columns to parquet")
	}

	group := make(parquet.Group, t.Width())
	meta := make([]source.SchemaColumn, t.Width())
	for i, col := range t.Columns() {
		group[col.Name] = parquet.Optional(parquetNode(col.Type))
		meta[i] = source.SchemaColumn{Name: col.Name, Type: string(col.Type)}
	}
	schema := parquet.NewSchema("jointab", group)

	doc, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	leaves := make([]int, t.Width())
	for i, col := range t.Columns() {
		leaf, ok := schema.Lookup(col.Name)
		if !ok {
			return fmt.Errorf("column %q missing from parquet schema", col.Name)
		}
		leaves[i] = leaf.ColumnIndex
	}

	pw := parquet.NewWriter(w, schema,
		parquet.Compression(&parquet.Snappy),
		parquet.KeyValueMetadata(source.SchemaMetadataKey, string(doc)),
	)

	rows := make([]parquet.Row, 0, parquetBatchSize)
	for r := 0; r < t.RowCount(); r++ {
		row := make(parquet.Row, t.Width())
		for c, col := range t.Columns() {
			row[leaves[c]] = parquetValue(col.Values[r]).Level(0, definitionLevel(col.Values[r]), leaves[c])
		}
		rows = append(rows, row)
		if len(rows) == parquetBatchSize {
			if _, err := pw.WriteRows(rows); err != nil {
				return fmt.Errorf("failed to write rows: %w", err)
			}
			rows = rows[:0]
		}
	}
	if len(rows) > 0 {
		if _, err := pw.WriteRows(rows); err != nil {
			return fmt.Errorf("failed to write rows: %w", err)
		}
	}
	return pw.Close()
}

func parquetNode(t core.ColumnType) parquet.Node {
	switch t {
	case core.TypeBoolean:
		return parquet.Leaf(parquet.BooleanType)
	case core.TypeTimestamp:
		return parquet.Timestamp(parquet.Nanosecond)
	default:
		return parquet.String()
	}
}

func definitionLevel(v core.Value) int {
	if v.IsMissing() {
		return 0
	}
	return 1
}

func parquetValue(v core.Value) parquet.Value {
	switch v.Kind() {
	case core.KindMissing:
		return parquet.NullValue()
	case core.KindBoolean:
		b, _ := v.AsBool()
		return parquet.BooleanValue(b)
	case core.KindTimestamp:
		ts, _ := v.AsTimestamp()
		return parquet.Int64Value(ts.UnixNano())
	default:
		return parquet.ByteArrayValue([]byte(v.String()))
	}
}
