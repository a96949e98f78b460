package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jashezan/HomifyHub/pkg/database"
)

func TestFS_UpMigrationsInOrder(t *testing.T) {
	names, err := database.MigrationFiles(FS)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"001_products.up.sql",
		"002_wishlist_items.up.sql",
		"003_seed_products.up.sql",
		"004_bundles.up.sql",
	}, names)
}

func TestFS_EveryUpHasDown(t *testing.T) {
	names, err := database.MigrationFiles(FS)
	require.NoError(t, err)
	for _, up := range names {
		down := up[:len(up)-len(".up.sql")] + ".down.sql"
		_, err := FS.ReadFile(down)
		assert.NoError(t, err, "missing %s", down)
	}
}
