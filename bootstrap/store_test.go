package bootstrap_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-session"
	"github.com/goliatone/go-session/bootstrap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := bootstrap.Connect(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, bootstrap.EnsureSchema(context.Background(), db))
	return db
}

func sealKey() [32]byte {
	var key [32]byte
	copy(key[:], "0123456789abcdef0123456789abcdef")
	return key
}

func readySession() session.Session {
	now := time.Now().UTC().Truncate(time.Second)
	return session.Session{
		State:       session.StateReady,
		IdentityID:  "id-1",
		Email:       "alice@example.com",
		DisplayName: "Alice",
		BearerToken: "bearer-1",
		Role:        session.RoleAdmin,
		IsPremium:   true,
		SyncedAt:    &now,
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	store := bootstrap.NewStore(setupDB(t), bootstrap.WithSealKey(sealKey()))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, readySession()))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, session.StateReady, loaded.State)
	assert.Equal(t, "id-1", loaded.IdentityID)
	assert.Equal(t, "alice@example.com", loaded.Email)
	assert.Equal(t, session.RoleAdmin, loaded.Role)
	assert.True(t, loaded.IsPremium)
	assert.Equal(t, "bearer-1", loaded.BearerToken)
	require.NotNil(t, loaded.SyncedAt)
}

func TestStoreLoadEmpty(t *testing.T) {
	store := bootstrap.NewStore(setupDB(t))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStoreSaveIsUpsert(t *testing.T) {
	db := setupDB(t)
	store := bootstrap.NewStore(db, bootstrap.WithSealKey(sealKey()))
	ctx := context.Background()

	sess := readySession()
	require.NoError(t, store.Save(ctx, sess))

	sess.IsPremium = false
	require.NoError(t, store.Save(ctx, sess))

	count, err := db.NewSelect().Model((*bootstrap.SessionSnapshot)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "repeated saves for the same identity update in place")

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, loaded.IsPremium)
}

func TestStoreSkipsAnonymousSessions(t *testing.T) {
	store := bootstrap.NewStore(setupDB(t))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, session.AnonymousSession()))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStoreClear(t *testing.T) {
	store := bootstrap.NewStore(setupDB(t))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, readySession()))
	require.NoError(t, store.Clear(ctx))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStoreTokenSealedAtRest(t *testing.T) {
	db := setupDB(t)
	store := bootstrap.NewStore(db, bootstrap.WithSealKey(sealKey()))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, readySession()))

	record := &bootstrap.SessionSnapshot{}
	require.NoError(t, db.NewSelect().Model(record).Limit(1).Scan(ctx))

	require.NotEmpty(t, record.SealedToken)
	assert.NotContains(t, string(record.SealedToken), "bearer-1")
}

func TestStoreWithoutSealKeyDropsToken(t *testing.T) {
	db := setupDB(t)
	store := bootstrap.NewStore(db)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, readySession()))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded.BearerToken, "tokens are not persisted without a seal key")

	record := &bootstrap.SessionSnapshot{}
	require.NoError(t, db.NewSelect().Model(record).Limit(1).Scan(ctx))
	assert.Empty(t, record.SealedToken)
}
