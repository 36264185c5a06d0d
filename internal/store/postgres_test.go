package store

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daftar-erp/daftar/internal/model"
)

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgres(sqlx.NewDb(db, "postgres")), mock
}

func TestMigrateAppliesAllFiles(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS documents").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS documents_collection_updated_at_idx").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Migrate(context.Background(), sqlx.NewDb(db, "postgres")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGet(t *testing.T) {
	pg, mock := newMockPostgres(t)
	q := regexp.QuoteMeta(`SELECT data FROM documents WHERE collection = $1 AND id = $2`)

	mock.ExpectQuery(q).WithArgs(Customers, "c1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"id":"c1","name":"مؤسسة النور"}`)))
	mock.ExpectQuery(q).WithArgs(Customers, "missing").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	s := New(pg)
	c, err := s.Customers.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "مؤسسة النور", c.Name)

	_, err = s.Customers.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresList(t *testing.T) {
	pg, mock := newMockPostgres(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, data FROM documents WHERE collection = $1 ORDER BY id`)).
		WithArgs(Products).
		WillReturnRows(sqlmock.NewRows([]string{"id", "data"}).
			AddRow("p1", []byte(`{"id":"p1","sku":"A"}`)).
			AddRow("p2", []byte(`{"id":"p2","sku":"B"}`)))

	products, err := New(pg).Products.List(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "B", products[1].SKU)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPutUpserts(t *testing.T) {
	pg, mock := newMockPostgres(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO documents (collection, id, data, updated_at)`)).
		WithArgs(Vendors, "v1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := New(pg).Vendors.Put(context.Background(), model.Vendor{ID: "v1", Name: "شركة التوريدات"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDelete(t *testing.T) {
	pg, mock := newMockPostgres(t)
	q := regexp.QuoteMeta(`DELETE FROM documents WHERE collection = $1 AND id = $2`)
	mock.ExpectExec(q).WithArgs(Invoices, "i1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(Invoices, "i2").WillReturnResult(sqlmock.NewResult(0, 0))

	s := New(pg)
	require.NoError(t, s.Invoices.Delete(context.Background(), "i1"))
	assert.ErrorIs(t, s.Invoices.Delete(context.Background(), "i2"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCollections(t *testing.T) {
	pg, mock := newMockPostgres(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT collection FROM documents ORDER BY collection`)).
		WillReturnRows(sqlmock.NewRows([]string{"collection"}).AddRow(Customers).AddRow(Invoices))

	names, err := pg.Collections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{Customers, Invoices}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}
