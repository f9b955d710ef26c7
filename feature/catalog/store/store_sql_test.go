package store_test

import (
	"context"
	"testing"

	"catalog-manager/feature/catalog/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// setupMockDB opens gorm over a sqlmock connection with the MySQL dialect,
// so the generated SQL can be asserted without a server.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	return db, mock
}

func TestMapOwnerVersionUpsertSQL(t *testing.T) {
	db, mock := setupMockDB(t)
	products := store.NewProductStore()

	// The association repoint must be a single upsert on the composite
	// primary key, not a select-then-write.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `owner_products` .* ON DUPLICATE KEY UPDATE").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := products.MapOwnerVersion(context.Background(), db, "owner-id", "p1", "product-uuid")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentMapOwnerVersionUpsertSQL(t *testing.T) {
	db, mock := setupMockDB(t)
	contents := store.NewContentStore()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `owner_contents` .* ON DUPLICATE KEY UPDATE").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := contents.MapOwnerVersion(context.Background(), db, "owner-id", "c1", "content-uuid")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
