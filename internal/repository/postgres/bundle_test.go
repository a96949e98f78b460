package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jashezan/HomifyHub/pkg/errors"
)

var (
	bundleCols          = []string{"id", "slug", "name", "price_cents", "discount_price_cents"}
	bundleComponentCols = []string{"bundle_id", "id", "slug", "name", "price_cents", "stock", "image_url", "created_at"}
)

func newBundleTestFixture(t *testing.T) (*BundleRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return NewBundleRepository(mock), mock
}

func TestBundleRepository_GetBySlug_Success(t *testing.T) {
	repo, mock := newBundleTestFixture(t)
	defer mock.Close()

	now := time.Now().UTC().Truncate(time.Microsecond)
	discount := int64(21900)
	mock.ExpectQuery("SELECT (.+) FROM bundles WHERE slug =").
		WithArgs("dining-set").
		WillReturnRows(pgxmock.NewRows(bundleCols).
			AddRow(int64(5), "dining-set", "Dining Set", int64(24900), &discount))
	mock.ExpectQuery("FROM bundle_products bp JOIN products p").
		WithArgs([]int64{5}).
		WillReturnRows(pgxmock.NewRows(bundleComponentCols).
			AddRow(int64(5), int64(1), "lamp-3", "Arc Lamp", int64(8900), 12, "", now).
			AddRow(int64(5), int64(2), "chair-1", "Oak Chair", int64(12900), 6, "", now))

	b, err := repo.GetBySlug(context.Background(), "dining-set")

	require.NoError(t, err)
	assert.Equal(t, "Dining Set", b.Name)
	assert.Equal(t, int64(21900), b.EffectivePriceCents())
	require.Len(t, b.Products, 2)
	assert.Equal(t, 6, b.Stock())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBundleRepository_GetBySlug_NotFound(t *testing.T) {
	repo, mock := newBundleTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM bundles WHERE slug =").
		WithArgs("no-set").
		WillReturnError(pgx.ErrNoRows)

	b, err := repo.GetBySlug(context.Background(), "no-set")

	assert.Nil(t, b)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound), "expected ErrNotFound, got: %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBundleRepository_List(t *testing.T) {
	repo, mock := newBundleTestFixture(t)
	defer mock.Close()

	now := time.Now().UTC().Truncate(time.Microsecond)
	mock.ExpectQuery("SELECT (.+) FROM bundles ORDER BY name").
		WithArgs(6).
		WillReturnRows(pgxmock.NewRows(bundleCols).
			AddRow(int64(5), "dining-set", "Dining Set", int64(24900), nil).
			AddRow(int64(7), "reading-nook", "Reading Nook", int64(9900), nil))
	mock.ExpectQuery("FROM bundle_products bp JOIN products p").
		WithArgs([]int64{5, 7}).
		WillReturnRows(pgxmock.NewRows(bundleComponentCols).
			AddRow(int64(5), int64(1), "lamp-3", "Arc Lamp", int64(8900), 12, "", now))

	bundles, err := repo.List(context.Background(), 6)

	require.NoError(t, err)
	require.Len(t, bundles, 2)
	assert.Nil(t, bundles[0].DiscountPriceCents)
	assert.Len(t, bundles[0].Products, 1)
	assert.Empty(t, bundles[1].Products)
	assert.Equal(t, 0, bundles[1].Stock(), "a bundle without products cannot be sold")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBundleRepository_List_EmptySkipsComponents(t *testing.T) {
	repo, mock := newBundleTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM bundles").
		WithArgs(6).
		WillReturnRows(pgxmock.NewRows(bundleCols))

	bundles, err := repo.List(context.Background(), 6)

	require.NoError(t, err)
	assert.Empty(t, bundles)
	assert.NoError(t, mock.ExpectationsWereMet())
}
