package introspect

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapbi/internal/testutil"
	"github.com/leapstack-labs/leapbi/pkg/core"
)

func TestSQLIntrospector_DiscoverColumns(t *testing.T) {
	tests := []struct {
		name      string
		dialect   Dialect
		database  string
		src       core.Source
		nav       core.Navigation
		setupMock func(mock sqlmock.Sqlmock)
		want      []string
		errMsg    string
	}{
		{
			name:    "postgres default schema",
			dialect: PostgresDialect,
			nav:     core.Navigation{Table: "orders"},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(PostgresDialect.ColumnsQuery)).
					WithArgs("public", "orders").
					WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("id").AddRow("amount").AddRow("note"))
			},
			want: []string{"id", "amount", "note"},
		},
		{
			name:     "sqlserver explicit schema",
			dialect:  SQLServerDialect,
			database: "Sales",
			nav:      core.Navigation{Database: "sales", Schema: "crm", Table: "Customer"},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(SQLServerDialect.ColumnsQuery)).
					WithArgs("crm", "Customer").
					WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("CustomerID"))
			},
			want: []string{"CustomerID"},
		},
		{
			name:    "no rows",
			dialect: PostgresDialect,
			nav:     core.Navigation{Schema: "s", Table: "missing"},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT column_name").
					WillReturnRows(sqlmock.NewRows([]string{"column_name"}))
			},
			errMsg: "table s.missing not found",
		},
		{
			name:    "query error",
			dialect: PostgresDialect,
			nav:     core.Navigation{Table: "t"},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT column_name").WillReturnError(assert.AnError)
			},
			errMsg: "failed to query column metadata",
		},
		{
			name:     "navigation names another database",
			dialect:  SQLServerDialect,
			database: "Sales",
			nav:      core.Navigation{Database: "Archive", Schema: "dbo", Table: "Customer"},
			errMsg:   `navigation targets database "Archive" but the introspection connection is on "Sales"`,
		},
		{
			name:     "source database differs from connection",
			dialect:  PostgresDialect,
			database: "analytics",
			src:      core.Source{Key: "wh", Database: "shop"},
			nav:      core.Navigation{Table: "orders"},
			errMsg:   `targets database "shop"`,
		},
		{
			name:    "database without configured connection database",
			dialect: SQLServerDialect,
			nav:     core.Navigation{Database: "Sales", Table: "Customer"},
			errMsg:  "names no database",
		},
		{
			name:    "no table",
			dialect: PostgresDialect,
			nav:     core.Navigation{Schema: "s"},
			errMsg:  "no table",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()
			if tt.setupMock != nil {
				tt.setupMock(mock)
			}

			in := NewSQLIntrospector(db, tt.dialect, testutil.NewTestLogger(t))
			in.Database = tt.database
			src := tt.src
			if src.Key == "" {
				src.Key = "wh"
			}
			got, err := in.DiscoverColumns(context.Background(), src, tt.nav)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLIntrospector_NoConnection(t *testing.T) {
	in := NewSQLIntrospector(nil, PostgresDialect, nil)
	_, err := in.DiscoverColumns(context.Background(), core.Source{}, core.Navigation{Table: "t"})
	assert.ErrorContains(t, err, "connection not established")
	assert.NoError(t, in.Close())
}

func TestSQLIntrospector_Close(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	in := NewSQLIntrospector(db, SQLServerDialect, nil)
	require.NoError(t, in.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
