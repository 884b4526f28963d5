package sink

import (
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/leapstack-labs/jointab/pkg/core"
)

// TypeMetadataKey is the arrow field metadata entry holding the column type.
const TypeMetadataKey = "jointab.type"

// Arrow writes an Arrow IPC file holding a single record batch. Number
// columns become int64 when every value is an integer in range, float64
// otherwise.
type Arrow struct {
	// Allocator defaults to memory.DefaultAllocator.
	Allocator memory.Allocator
}

func (a Arrow) Write(w io.Writer, t *core.Table) error {
	if t.Width() == 0 {
		return errors.New("cannot write a table with no columns to arrow")
	}
	mem := a.Allocator
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	fields := make([]arrow.Field, t.Width())
	arrays := make([]arrow.Array, t.Width())
	defer func() {
		for _, arr := range arrays {
			if arr != nil {
				arr.Release()
			}
		}
	}()
	for i, col := range t.Columns() {
		arr := buildArrowArray(mem, col)
		arrays[i] = arr
		fields[i] = arrow.Field{
			Name:     col.Name,
			Type:     arr.DataType(),
			Nullable: true,
			Metadata: arrow.NewMetadata([]string{TypeMetadataKey}, []string{string(col.Type)}),
		}
	}
	schema := arrow.NewSchema(fields, nil)

	record := array.NewRecord(schema, arrays, int64(t.RowCount()))
	defer record.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("failed to create arrow writer: %w", err)
	}
	if err := fw.Write(record); err != nil {
		_ = fw.Close()
		return fmt.Errorf("failed to write record: %w", err)
	}
	return fw.Close()
}

func buildArrowArray(mem memory.Allocator, col *core.Column) arrow.Array {
	switch col.Type {
	case core.TypeBoolean:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		for _, v := range col.Values {
			if x, ok := v.AsBool(); ok {
				b.Append(x)
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray()

	case core.TypeTimestamp:
		b := array.NewTimestampBuilder(mem, &arrow.TimestampType{Unit: arrow.Nanosecond, TimeZone: "UTC"})
		defer b.Release()
		for _, v := range col.Values {
			if ts, ok := v.AsTimestamp(); ok {
				b.Append(arrow.Timestamp(ts.UnixNano()))
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray()

	case core.TypeNumber:
		if allInt64(col.Values) {
			b := array.NewInt64Builder(mem)
			defer b.Release()
			for _, v := range col.Values {
				if r, ok := v.AsNumber(); ok {
					b.Append(r.Num().Int64())
				} else {
					b.AppendNull()
				}
			}
			return b.NewArray()
		}
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		for _, v := range col.Values {
			if r, ok := v.AsNumber(); ok {
				f, _ := r.Float64()
				b.Append(f)
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray()

	default:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		for _, v := range col.Values {
			if s, ok := v.AsText(); ok {
				b.Append(s)
			} else {
				b.AppendNull()
			}
		}
		return b.NewArray()
	}
}

func allInt64(values []core.Value) bool {
	for _, v := range values {
		r, ok := v.AsNumber()
		if !ok {
			continue
		}
		if !r.IsInt() || !r.Num().IsInt64() {
			return false
		}
	}
	return true
}
