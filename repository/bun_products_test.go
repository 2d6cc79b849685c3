package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-shop-auth/catalog"
)

func newProduct(name string, created time.Time) *catalog.Product {
	return &catalog.Product{
		ID:          uuid.NewString(),
		Name:        name,
		Price:       4999,
		Description: "a chair",
		Image:       catalog.DefaultImage,
		Category:    catalog.CategoryOffice,
		Company:     catalog.CompanyIkea,
		Colors:      []string{"#222", "#fff"},
		Inventory:   catalog.DefaultInventory,
		UserID:      uuid.NewString(),
		CreatedAt:   &created,
		UpdatedAt:   &created,
	}
}

func TestBunProductsCRUD(t *testing.T) {
	repo := NewBunProducts(setupBunDB(t))
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	chair, err := repo.Create(ctx, newProduct("chair", base))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newProduct("desk", base.Add(time.Second)))
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, chair.ID)
	require.NoError(t, err)
	assert.Equal(t, "chair", got.Name)
	assert.Equal(t, []string{"#222", "#fff"}, got.Colors)
	assert.Equal(t, chair.UserID, got.UserID)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "chair", list[0].Name)

	got.Price = 1000
	got.Featured = true
	require.NoError(t, repo.Update(ctx, got))

	updated, err := repo.FindByID(ctx, chair.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), updated.Price)
	assert.True(t, updated.Featured)

	require.NoError(t, repo.Delete(ctx, chair.ID))
	_, err = repo.FindByID(ctx, chair.ID)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestBunProductsMissing(t *testing.T) {
	repo := NewBunProducts(setupBunDB(t))
	ctx := context.Background()

	assert.ErrorIs(t, repo.Delete(ctx, "nope"), catalog.ErrProductNotFound)
	assert.ErrorIs(t, repo.Update(ctx, newProduct("ghost", time.Now())), catalog.ErrProductNotFound)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBunProductsUpdateKeepsOwnerAndCreation(t *testing.T) {
	repo := NewBunProducts(setupBunDB(t))
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	chair, err := repo.Create(ctx, newProduct("chair", base))
	require.NoError(t, err)

	changed := chair.Clone()
	changed.UserID = uuid.NewString()
	later := base.Add(time.Hour)
	changed.UpdatedAt = &later
	changed.Name = "armchair"
	require.NoError(t, repo.Update(ctx, changed))

	got, err := repo.FindByID(ctx, chair.ID)
	require.NoError(t, err)
	assert.Equal(t, "armchair", got.Name)
	assert.Equal(t, chair.UserID, got.UserID)
	assert.True(t, got.CreatedAt.Equal(base))
}

func TestBunProductsMalformedID(t *testing.T) {
	repo := NewBunProducts(setupBunDB(t))

	_, err := repo.FindByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}
