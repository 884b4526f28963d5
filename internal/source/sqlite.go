package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/jointab/pkg/core"
	"github.com/leapstack-labs/jointab/pkg/normalize"

	_ "modernc.org/sqlite" // sqlite driver
)

// SQLite reads a table or query from a SQLite database file.
type SQLite struct {
	BaseSQLSource
}

// NewSQLite creates a SQLite source.
func NewSQLite(logger *slog.Logger, norm normalize.Normalizer) *SQLite {
	return &SQLite{BaseSQLSource{Logger: logger, Normalizer: norm}}
}

// Load implements Source.
func (s *SQLite) Load(ctx context.Context, spec Spec) (*core.Table, error) {
	path := spec.Path
	if path == "" {
		path = spec.DSN
	}
	if path == "" {
		return nil, fmt.Errorf("sqlite source needs a path")
	}
	query, err := spec.SelectQuery(quoteIdent)
	if err != nil {
		return nil, err
	}
	overrides, err := spec.ColumnOverrides()
	if err != nil {
		return nil, err
	}

	db, err := s.OpenDB(ctx, "sqlite", path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	return s.QueryTable(ctx, db, query, overrides)
}
