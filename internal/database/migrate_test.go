package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatementsCoverEveryTable(t *testing.T) {
	stmts := Statements()
	require.Len(t, stmts, 7)
	for _, table := range []string{"resources", "items", "item_resources", "customers", "bookings", "staff_breaks", "booking_locks"} {
		found := false
		for _, s := range stmts {
			if containsTable(s, table) {
				found = true
			}
		}
		assert.True(t, found, table)
	}
}

func containsTable(stmt, table string) bool {
	prefix := "CREATE TABLE IF NOT EXISTS " + table + " "
	return len(stmt) >= len(prefix) && stmt[:len(prefix)] == prefix
}

func TestMigrateStopsOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS resources").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS items").WillReturnError(errors.New("denied"))

	err = Migrate(context.Background(), db)
	assert.ErrorContains(t, err, "schema statement 2")
	assert.NoError(t, mock.ExpectationsWereMet())
}
