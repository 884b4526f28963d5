package source

import (
	"context"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver

	"github.com/leapstack-labs/jointab/pkg/core"
	"github.com/leapstack-labs/jointab/pkg/normalize"
)

// ServerOptions are the connection options of server-backed sources, used
// when a tab gives no dsn.
type ServerOptions struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

// Postgres reads a table or query from PostgreSQL.
type Postgres struct {
	BaseSQLSource
}

// NewPostgres creates a PostgreSQL source.
func NewPostgres(logger *slog.Logger, norm normalize.Normalizer) *Postgres {
	return &Postgres{BaseSQLSource{Logger: logger, Normalizer: norm}}
}

// Load implements Source.
func (p *Postgres) Load(ctx context.Context, spec Spec) (*core.Table, error) {
	dsn := spec.DSN
	if dsn == "" {
		var opts ServerOptions
		if err := DecodeOptions(spec.Options, &opts); err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		dsn = buildPostgresDSN(opts)
		p.logger().Debug("connecting to postgres", slog.String("host", opts.Host), slog.String("database", opts.Database))
	}
	query, err := spec.SelectQuery(quoteIdent)
	if err != nil {
		return nil, err
	}
	overrides, err := spec.ColumnOverrides()
	if err != nil {
		return nil, err
	}

	db, err := p.OpenDB(ctx, "pgx", dsn)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	return p.QueryTable(ctx, db, query, overrides)
}

// buildPostgresDSN constructs a key=value connection string.
func buildPostgresDSN(opts ServerOptions) string {
	host := opts.Host
	if host == "" {
		host = "localhost"
	}
	port := opts.Port
	if port == 0 {
		port = 5432
	}
	sslmode := opts.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, opts.Database, sslmode)
	if opts.User != "" {
		dsn += fmt.Sprintf(" user=%s", opts.User)
	}
	if opts.Password != "" {
		dsn += fmt.Sprintf(" password=%s", opts.Password)
	}
	return dsn
}
