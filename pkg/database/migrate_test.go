package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"testing/fstest"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMigrations = fstest.MapFS{
	"001_products.up.sql":   {Data: []byte("CREATE TABLE products (id BIGSERIAL PRIMARY KEY)")},
	"001_products.down.sql": {Data: []byte("DROP TABLE products")},
	"002_wishlist.up.sql":   {Data: []byte("CREATE TABLE wishlist_items (user_id TEXT)")},
	"README.md":             {Data: []byte("notes")},
}

var (
	createTracking = regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")
	checkApplied   = regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)")
	recordVersion  = regexp.QuoteMeta("INSERT INTO schema_migrations (version) VALUES ($1)")
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestMigrationFiles_SortedUpOnly(t *testing.T) {
	names, err := MigrationFiles(testMigrations)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_products.up.sql", "002_wishlist.up.sql"}, names)
}

func TestRunMigrations_AppliesPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(createTracking).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery(checkApplied).WithArgs("001_products.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(checkApplied).WithArgs("002_wishlist.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE wishlist_items")).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(recordVersion).WithArgs("002_wishlist.up.sql").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	applied, err := RunMigrations(context.Background(), mock, testMigrations, quietLogger())

	require.NoError(t, err)
	assert.Equal(t, []string{"002_wishlist.up.sql"}, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_SQLErrorRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(createTracking).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery(checkApplied).WithArgs("001_products.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE products")).WillReturnError(errors.New("syntax error at or near"))
	mock.ExpectRollback()

	_, err = RunMigrations(context.Background(), mock, testMigrations, quietLogger())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "001_products.up.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}
