package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"   // registers the "pgx" driver
	_ "github.com/microsoft/go-mssqldb" // registers the "sqlserver" driver

	"github.com/leapstack-labs/leapbi/pkg/core"
)

// Dialect describes how to list columns on one database engine.
type Dialect struct {
	Name          string
	DriverName    string
	DefaultSchema string
	// ColumnsQuery takes the schema and table as its two parameters.
	ColumnsQuery string
}

// Dialects for the supported engines.
var (
	PostgresDialect = Dialect{
		Name:          "postgresql",
		DriverName:    "pgx",
		DefaultSchema: "public",
		ColumnsQuery: `SELECT column_name
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`,
	}
	SQLServerDialect = Dialect{
		Name:          "sqlserver",
		DriverName:    "sqlserver",
		DefaultSchema: "dbo",
		ColumnsQuery: `SELECT c.name
FROM sys.columns c
WHERE c.object_id = OBJECT_ID(QUOTENAME(@p1) + N'.' + QUOTENAME(@p2))
ORDER BY c.column_id`,
	}
)

// SQLIntrospector discovers columns over a database/sql connection.
//
// The columns query runs in the connection's database, so a navigation path
// naming any other database is refused with *DatabaseMismatchError.
type SQLIntrospector struct {
	DB       *sql.DB
	Dialect  Dialect
	Database string // database the connection was opened on
	Logger   *slog.Logger
}

// NewSQLIntrospector wraps an open connection.
// If logger is nil, a discard logger is used.
func NewSQLIntrospector(db *sql.DB, d Dialect, logger *slog.Logger) *SQLIntrospector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLIntrospector{DB: db, Dialect: d, Logger: logger}
}

// DiscoverColumns implements Introspector.
func (s *SQLIntrospector) DiscoverColumns(ctx context.Context, src core.Source, nav core.Navigation) ([]string, error) {
	if s.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	if nav.Table == "" {
		return nil, fmt.Errorf("navigation has no table to introspect")
	}
	target := nav.Database
	if target == "" {
		target = src.Database
	}
	if target != "" && !strings.EqualFold(target, s.Database) {
		return nil, &DatabaseMismatchError{Want: target, Connected: s.Database}
	}
	schema := nav.Schema
	if schema == "" {
		schema = s.Dialect.DefaultSchema
	}

	s.Logger.Debug("discovering columns",
		slog.String("dialect", s.Dialect.Name),
		slog.String("schema", schema),
		slog.String("table", nav.Table))

	rows, err := s.DB.QueryContext(ctx, s.Dialect.ColumnsQuery, schema, nav.Table)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(columns) == 0 {
		return nil, &TableNotFoundError{Schema: schema, Table: nav.Table}
	}
	return columns, nil
}

// Close closes the connection.
func (s *SQLIntrospector) Close() error {
	if s.DB == nil {
		return nil
	}
	s.Logger.Debug("closing introspection connection", slog.String("dialect", s.Dialect.Name))
	return s.DB.Close()
}
