package sink

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/jointab/pkg/core"
)

// CSV writes RFC 4180 records with a header row. Missing cells are empty.
type CSV struct{}

func (CSV) Write(w io.Writer, t *core.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return err
	}
	record := make([]string, t.Width())
	for r := 0; r < t.RowCount(); r++ {
		for c := range record {
			record[c] = t.Cell(c, r).String()
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// JSON writes an array of objects whose keys keep column order.
type JSON struct{}

func (JSON) Write(w io.Writer, t *core.Table) error {
	names := t.Names()
	keys := make([][]byte, len(names))
	for i, name := range names {
		k, err := json.Marshal(name)
		if err != nil {
			return err
		}
		keys[i] = k
	}

	var buf bytes.Buffer
	buf.WriteString("[")
	for r := 0; r < t.RowCount(); r++ {
		if r > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  {")
		for c := range names {
			if c > 0 {
				buf.WriteString(", ")
			}
			buf.Write(keys[c])
			buf.WriteString(": ")
			v, err := jsonValue(t.Cell(c, r))
			if err != nil {
				return err
			}
			buf.Write(v)
		}
		buf.WriteString("}")
	}
	if t.RowCount() > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("]\n")
	_, err := w.Write(buf.Bytes())
	return err
}

func jsonValue(v core.Value) ([]byte, error) {
	switch v.Kind() {
	case core.KindMissing:
		return []byte("null"), nil
	case core.KindNumber:
		return []byte(v.String()), nil
	case core.KindBoolean:
		b, _ := v.AsBool()
		return json.Marshal(b)
	case core.KindTimestamp:
		ts, _ := v.AsTimestamp()
		return json.Marshal(ts.Format(time.RFC3339Nano))
	default:
		return json.Marshal(v.String())
	}
}

// Markdown writes a GitHub-flavored table.
type Markdown struct{}

func (Markdown) Write(w io.Writer, t *core.Table) error {
	if t.RowCount() == 0 {
		_, err := fmt.Fprintln(w, "(0 rows)")
		return err
	}
	names := t.Names()
	header := make([]string, len(names))
	seps := make([]string, len(names))
	for i, name := range names {
		header[i] = escapeMarkdown(name)
		seps[i] = "---"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "| %s |\n", strings.Join(header, " | "))
	fmt.Fprintf(&sb, "| %s |\n", strings.Join(seps, " | "))
	values := make([]string, len(names))
	for r := 0; r < t.RowCount(); r++ {
		for c := range values {
			values[c] = escapeMarkdown(displayValue(t.Cell(c, r)))
		}
		fmt.Fprintf(&sb, "| %s |\n", strings.Join(values, " | "))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// Table renders a box-drawn table followed by a row count.
type Table struct{}

func (Table) Write(w io.Writer, t *core.Table) error {
	if t.RowCount() == 0 {
		_, err := fmt.Fprintln(w, "(0 rows)")
		return err
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)

	header := make(table.Row, t.Width())
	for i, name := range t.Names() {
		header[i] = name
	}
	tw.AppendHeader(header)

	for r := 0; r < t.RowCount(); r++ {
		row := make(table.Row, t.Width())
		for c := range row {
			row[c] = displayValue(t.Cell(c, r))
		}
		tw.AppendRow(row)
	}

	tw.Render()
	_, err := fmt.Fprintf(w, "(%d rows)\n", t.RowCount())
	return err
}

func displayValue(v core.Value) string {
	if v.IsMissing() {
		return "NULL"
	}
	return v.String()
}
