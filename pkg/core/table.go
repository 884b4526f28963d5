package core

import "fmt"

// Column is a named, typed, ordered sequence of cells.
type Column struct {
	Name   string
	Type   ColumnType
	Values []Value
}

// ColumnInfo describes a column without its cells.
type ColumnInfo struct {
	Name string
	Type ColumnType
}

// NewColumn builds a column, checking that every cell is Missing or carries
// the kind of the declared type.
func NewColumn(name string, typ ColumnType, values []Value) (*Column, error) {
	if name == "" {
		return nil, fmt.Errorf("column name is required")
	}
	if _, err := ParseColumnType(string(typ)); err != nil {
		return nil, fmt.Errorf("column %q: %w", name, err)
	}
	want := typ.Kind()
	for i, v := range values {
		if !v.IsMissing() && v.Kind() != want {
			return nil, fmt.Errorf("column %q row %d: %s cell in %s column", name, i, v.Kind(), typ)
		}
	}
	return &Column{Name: name, Type: typ, Values: values}, nil
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.Values) }

// Info returns the column's name and type.
func (c *Column) Info() ColumnInfo { return ColumnInfo{Name: c.Name, Type: c.Type} }

// Table is an ordered set of equally long columns. Column order is significant
// and is preserved by every operation that produces a table.
type Table struct {
	columns []*Column
	byName  map[string]int
	rows    int
}

// NewTable builds a table from columns. Names must be unique and every column
// must have the same length.
func NewTable(columns ...*Column) (*Table, error) {
	t := &Table{
		columns: columns,
		byName:  make(map[string]int, len(columns)),
	}
	for i, col := range columns {
		if col == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if _, dup := t.byName[col.Name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", col.Name)
		}
		t.byName[col.Name] = i
		if i == 0 {
			t.rows = col.Len()
		} else if col.Len() != t.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", col.Name, col.Len(), t.rows)
		}
	}
	return t, nil
}

// MustTable is NewTable for fixtures; it panics on error.
func MustTable(columns ...*Column) *Table {
	t, err := NewTable(columns...)
	if err != nil {
		panic(err)
	}
	return t
}

// MustColumn is NewColumn for fixtures; it panics on error.
func MustColumn(name string, typ ColumnType, values ...Value) *Column {
	c, err := NewColumn(name, typ, values)
	if err != nil {
		panic(err)
	}
	return c
}

// RowCount returns the number of rows.
func (t *Table) RowCount() int { return t.rows }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.columns) }

// Columns returns the columns in order. The slice must not be modified.
func (t *Table) Columns() []*Column { return t.columns }

// Column returns the column with the given name, or nil.
func (t *Table) Column(name string) *Column {
	if i, ok := t.byName[name]; ok {
		return t.columns[i]
	}
	return nil
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	if i, ok := t.byName[name]; ok {
		return i
	}
	return -1
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Infos returns the name and type of every column in order.
func (t *Table) Infos() []ColumnInfo {
	infos := make([]ColumnInfo, len(t.columns))
	for i, c := range t.columns {
		infos[i] = c.Info()
	}
	return infos
}

// Cell returns the value at (column index, row).
func (t *Table) Cell(col, row int) Value {
	return t.columns[col].Values[row]
}

// Row returns a copy of the cells of one row in column order.
func (t *Table) Row(row int) []Value {
	out := make([]Value, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.Values[row]
	}
	return out
}
