package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tunnelout/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Discard,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.TunnelRecord{}))
	return db
}

func testRecord(userID string) *models.TunnelRecord {
	return &models.TunnelRecord{
		ID:          userID,
		TunnelID:    "tun-" + userID,
		Subdomain:   "sub-" + userID,
		RemotePort:  10022,
		Status:      models.StatusPending,
		Days:        3,
		PaymentHash: "hash-" + userID,
		ExpiresAt:   time.Now().Add(72 * time.Hour),
	}
}

func TestSaveCreatesRecord(t *testing.T) {
	repo := NewTunnelRepository(setupTestDB(t))
	ctx := context.Background()

	saved, err := repo.Save(ctx, "alice", testRecord("alice"))
	require.NoError(t, err)
	assert.Equal(t, "alice", saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())

	got, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "tun-alice", got.TunnelID)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestSaveDerivesID(t *testing.T) {
	repo := NewTunnelRepository(setupTestDB(t))
	ctx := context.Background()

	rec := testRecord("bob")
	rec.ID = ""
	saved, err := repo.Save(ctx, "bob", rec)
	require.NoError(t, err)
	assert.Equal(t, "bob", saved.ID)

	rec = testRecord("anon")
	rec.ID = ""
	saved, err = repo.Save(ctx, "", rec)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
}

func TestSavePreservesCreatedAt(t *testing.T) {
	repo := NewTunnelRepository(setupTestDB(t))
	ctx := context.Background()

	first, err := repo.Save(ctx, "alice", testRecord("alice"))
	require.NoError(t, err)
	created := first.CreatedAt

	update := testRecord("alice")
	update.Status = models.StatusActive
	update.CreatedAt = time.Time{}
	second, err := repo.Save(ctx, "alice", update)
	require.NoError(t, err)

	assert.WithinDuration(t, created, second.CreatedAt, time.Second)

	got, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.WithinDuration(t, created, got.CreatedAt, time.Second)
}

func TestGetNotFound(t *testing.T) {
	repo := NewTunnelRepository(setupTestDB(t))

	_, err := repo.Get(context.Background(), "nobody")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGetByPaymentHash(t *testing.T) {
	repo := NewTunnelRepository(setupTestDB(t))
	ctx := context.Background()

	_, err := repo.Save(ctx, "alice", testRecord("alice"))
	require.NoError(t, err)

	got, err := repo.GetByPaymentHash(ctx, "hash-alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.ID)

	_, err = repo.GetByPaymentHash(ctx, "no-such-hash")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestList(t *testing.T) {
	repo := NewTunnelRepository(setupTestDB(t))
	ctx := context.Background()

	recs, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = repo.Save(ctx, "alice", testRecord("alice"))
	require.NoError(t, err)
	_, err = repo.Save(ctx, "bob", testRecord("bob"))
	require.NoError(t, err)

	recs, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestDelete(t *testing.T) {
	repo := NewTunnelRepository(setupTestDB(t))
	ctx := context.Background()

	_, err := repo.Save(ctx, "alice", testRecord("alice"))
	require.NoError(t, err)

	// Mismatched tunnel id leaves the record alone.
	require.NoError(t, repo.Delete(ctx, "alice", "other-tunnel"))
	_, err = repo.Get(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, "alice", "tun-alice"))
	_, err = repo.Get(ctx, "alice")
	assert.True(t, errors.Is(err, ErrNotFound))

	// Deleting an absent record is not an error.
	require.NoError(t, repo.Delete(ctx, "alice", ""))
}
