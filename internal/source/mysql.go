package source

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/leapstack-labs/jointab/pkg/core"
	"github.com/leapstack-labs/jointab/pkg/normalize"
)

// MySQL reads a table or query from MySQL or a wire-compatible server.
type MySQL struct {
	BaseSQLSource
}

// NewMySQL creates a MySQL source.
func NewMySQL(logger *slog.Logger, norm normalize.Normalizer) *MySQL {
	return &MySQL{BaseSQLSource{Logger: logger, Normalizer: norm}}
}

// Load implements Source.
func (m *MySQL) Load(ctx context.Context, spec Spec) (*core.Table, error) {
	dsn, err := mysqlDSN(spec, m.Normalizer.Location)
	if err != nil {
		return nil, err
	}
	query, err := spec.SelectQuery(quoteBacktick)
	if err != nil {
		return nil, err
	}
	overrides, err := spec.ColumnOverrides()
	if err != nil {
		return nil, err
	}

	db, err := m.OpenDB(ctx, "mysql", dsn)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	return m.QueryTable(ctx, db, query, overrides)
}

// mysqlDSN returns a DSN with parseTime forced on, so DATETIME columns
// scan as time.Time read in loc.
func mysqlDSN(spec Spec, loc *time.Location) (string, error) {
	var cfg *mysql.Config
	if spec.DSN != "" {
		parsed, err := mysql.ParseDSN(spec.DSN)
		if err != nil {
			return "", fmt.Errorf("mysql: invalid dsn: %w", err)
		}
		cfg = parsed
	} else {
		var opts ServerOptions
		if err := DecodeOptions(spec.Options, &opts); err != nil {
			return "", fmt.Errorf("mysql: %w", err)
		}
		host := opts.Host
		if host == "" {
			host = "127.0.0.1"
		}
		port := opts.Port
		if port == 0 {
			port = 3306
		}
		cfg = mysql.NewConfig()
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
		cfg.User = opts.User
		cfg.Passwd = opts.Password
		cfg.DBName = opts.Database
	}
	cfg.ParseTime = true
	if loc == nil {
		loc = time.UTC
	}
	cfg.Loc = loc
	return cfg.FormatDSN(), nil
}
