package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWishlistTestFixture(t *testing.T) (*WishlistRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return NewWishlistRepository(mock), mock
}

// ---------------------------------------------------------------------------
// Add / Remove
// ---------------------------------------------------------------------------

func TestWishlistRepository_Add(t *testing.T) {
	repo, mock := newWishlistTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO wishlist_items").
		WithArgs("42", int64(10)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO wishlist_items").
		WithArgs("42", int64(10)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	added, err := repo.Add(context.Background(), "42", 10)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = repo.Add(context.Background(), "42", 10)
	require.NoError(t, err)
	assert.False(t, added, "second add is a no-op")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWishlistRepository_Add_ExecError(t *testing.T) {
	repo, mock := newWishlistTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO wishlist_items").
		WithArgs("42", int64(10)).
		WillReturnError(errors.New("connection refused"))

	_, err := repo.Add(context.Background(), "42", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "add to wishlist")
}

func TestWishlistRepository_Remove(t *testing.T) {
	repo, mock := newWishlistTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM wishlist_items WHERE user_id =").
		WithArgs("42", int64(10)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM wishlist_items WHERE user_id =").
		WithArgs("42", int64(11)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	removed, err := repo.Remove(context.Background(), "42", 10)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Remove(context.Background(), "42", 11)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Exists / Count
// ---------------------------------------------------------------------------

func TestWishlistRepository_Exists(t *testing.T) {
	repo, mock := newWishlistTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("42", int64(10)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), "42", 10)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWishlistRepository_Count(t *testing.T) {
	repo, mock := newWishlistTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM wishlist_items WHERE user_id =").
		WithArgs("42").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.Count(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestWishlistRepository_Count_Error(t *testing.T) {
	repo, mock := newWishlistTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("42").
		WillReturnError(errors.New("database timeout"))

	_, err := repo.Count(context.Background(), "42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count wishlist items")
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestWishlistRepository_List(t *testing.T) {
	repo, mock := newWishlistTestFixture(t)
	defer mock.Close()

	now := time.Now().UTC().Truncate(time.Microsecond)
	cols := []string{"user_id", "created_at", "id", "slug", "name", "price_cents", "stock", "image_url", "created_at"}
	mock.ExpectQuery("SELECT (.+) FROM wishlist_items w JOIN products p").
		WithArgs("42", 12, 0).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("42", now, int64(10), "lamp-3", "Arc Lamp", int64(2500), 4, "", now).
			AddRow("42", now.Add(-time.Minute), int64(12), "chair-1", "Chair", int64(9900), 1, "", now))

	items, err := repo.List(context.Background(), "42", 12, 0)

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "lamp-3", items[0].Product.Slug)
	assert.Equal(t, int64(12), items[1].Product.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWishlistRepository_List_QueryError(t *testing.T) {
	repo, mock := newWishlistTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM wishlist_items").
		WithArgs("42", 12, 0).
		WillReturnError(errors.New("connection refused"))

	_, err := repo.List(context.Background(), "42", 12, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list wishlist items")
}
