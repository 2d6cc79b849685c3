package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	auth "github.com/goliatone/go-shop-auth"
	"github.com/goliatone/go-shop-auth/catalog"
)

// setupMongoDB connects to SHOP_TEST_MONGO_URI and hands out a throwaway
// database, skipping when no server is configured
func setupMongoDB(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv("SHOP_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("SHOP_TEST_MONGO_URI not set")
	}

	ctx := context.Background()
	cli, err := ConnectMongo(ctx, uri)
	require.NoError(t, err)

	db := cli.Database("shop_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		_ = db.Drop(ctx)
		_ = cli.Disconnect(ctx)
	})
	return db
}

func TestMongoAccounts(t *testing.T) {
	db := setupMongoDB(t)
	ctx := context.Background()

	repo, err := NewMongoAccounts(ctx, db)
	require.NoError(t, err)

	admin := newAccount("Admin@x.com", auth.RoleAdmin, time.Now().UTC())
	ok, err := repo.ClaimBootstrap(ctx, admin.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.ClaimBootstrap(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.Create(ctx, admin)
	require.NoError(t, err)

	_, err = repo.Create(ctx, newAccount("admin@x.com", auth.RoleUser, time.Now().UTC()))
	assert.ErrorIs(t, err, auth.ErrEmailTaken)

	_, err = repo.Create(ctx, newAccount("rogue@x.com", auth.RoleAdmin, time.Now().UTC()))
	assert.ErrorIs(t, err, auth.ErrBootstrapViolation)

	got, err := repo.FindByEmail(ctx, "ADMIN@x.com")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, got.ID)

	got.Name = "Root"
	require.NoError(t, repo.Save(ctx, got))

	byID, err := repo.FindByID(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, "Root", byID.Name)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMongoProducts(t *testing.T) {
	db := setupMongoDB(t)
	ctx := context.Background()
	repo := NewMongoProducts(db)

	chair, err := repo.Create(ctx, newProduct("chair", time.Now().UTC()))
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, chair.ID)
	require.NoError(t, err)
	assert.Equal(t, "chair", got.Name)

	require.NoError(t, repo.Delete(ctx, chair.ID))
	assert.ErrorIs(t, repo.Delete(ctx, chair.ID), catalog.ErrProductNotFound)
}
