// Package source loads tabs into core tables from files and databases.
//
// Each source type registers itself by name; the pipeline looks sources up
// by the type field of a tab definition. Cells are coerced with the
// normalize package, so unparseable values load as Missing instead of
// failing the load.
package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/leapstack-labs/jointab/pkg/core"
)

// Spec describes where a tab comes from.
type Spec struct {
	// Type selects the source: csv, duckdb, sqlite, postgres, mysql, parquet.
	Type string `yaml:"type"`

	// Path is a file path for file-backed sources.
	Path string `yaml:"path,omitempty"`

	// DSN is a connection string for server-backed sources.
	DSN string `yaml:"dsn,omitempty"`

	// Table or Query selects the rows of SQL sources. Query wins when both are set.
	Table string `yaml:"table,omitempty"`
	Query string `yaml:"query,omitempty"`

	// Columns overrides the detected type of named columns.
	Columns map[string]string `yaml:"columns,omitempty"`

	// Options holds source-specific settings, decoded by each source.
	Options map[string]any `yaml:"options,omitempty"`
}

// Source loads one tab.
type Source interface {
	Load(ctx context.Context, spec Spec) (*core.Table, error)
}

// ColumnOverrides parses Spec.Columns.
func (s Spec) ColumnOverrides() (map[string]core.ColumnType, error) {
	if len(s.Columns) == 0 {
		return nil, nil
	}
	out := make(map[string]core.ColumnType, len(s.Columns))
	for name, typ := range s.Columns {
		ct, err := core.ParseColumnType(strings.ToLower(strings.TrimSpace(typ)))
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		out[name] = ct
	}
	return out, nil
}

// SelectQuery returns Query, or a SELECT of every column of Table.
func (s Spec) SelectQuery(quote func(string) string) (string, error) {
	if s.Query != "" {
		return s.Query, nil
	}
	if s.Table == "" {
		return "", fmt.Errorf("%s source needs a table or a query", s.Type)
	}
	return "SELECT * FROM " + quote(s.Table), nil
}

// DecodeOptions decodes Spec.Options into out, rejecting unknown keys.
func DecodeOptions(opts map[string]any, out any) error {
	if len(opts) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(opts); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

// quoteIdent double-quotes a possibly schema-qualified identifier.
func quoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

// quoteBacktick is quoteIdent for MySQL.
func quoteBacktick(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = "`" + strings.ReplaceAll(p, "`", "``") + "`"
	}
	return strings.Join(parts, ".")
}
