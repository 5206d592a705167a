package repository

import (
	"context"

	"tunnelout/internal/models"
)

// TunnelRepository defines the interface for tunnel record persistence.
// Records are keyed by the owning user's identifier; only the most recently
// created record per user is authoritative.
type TunnelRepository interface {
	// Get returns the latest record for a user, or ErrNotFound
	Get(ctx context.Context, userID string) (*models.TunnelRecord, error)
	// GetByPaymentHash returns the record holding the given payment hash, or ErrNotFound
	GetByPaymentHash(ctx context.Context, paymentHash string) (*models.TunnelRecord, error)
	// List returns all persisted records
	List(ctx context.Context) ([]*models.TunnelRecord, error)
	// Save upserts a record, preserving the original creation time on update
	Save(ctx context.Context, userID string, record *models.TunnelRecord) (*models.TunnelRecord, error)
	// Delete removes a user's record, optionally constrained to a tunnel id
	Delete(ctx context.Context, userID, tunnelID string) error
}
