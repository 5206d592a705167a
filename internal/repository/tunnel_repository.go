package repository

import (
	"context"
	"errors"
	"fmt"

	"tunnelout/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type tunnelRepository struct {
	db *gorm.DB
}

// NewTunnelRepository creates a new tunnel repository instance
func NewTunnelRepository(db *gorm.DB) TunnelRepository {
	return &tunnelRepository{db: db}
}

// Get retrieves the latest record for a user
func (r *tunnelRepository) Get(ctx context.Context, userID string) (*models.TunnelRecord, error) {
	var rec models.TunnelRecord
	err := r.db.WithContext(ctx).
		Where("id = ?", userID).
		Order("created_at DESC").
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: tunnel for user %s", ErrNotFound, userID)
		}
		return nil, err
	}
	return &rec, nil
}

// GetByPaymentHash retrieves a record by its outstanding payment hash
func (r *tunnelRepository) GetByPaymentHash(ctx context.Context, paymentHash string) (*models.TunnelRecord, error) {
	var rec models.TunnelRecord
	err := r.db.WithContext(ctx).
		Where("payment_hash = ?", paymentHash).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: payment hash %s", ErrNotFound, paymentHash)
		}
		return nil, err
	}
	return &rec, nil
}

// List retrieves all persisted records
func (r *tunnelRepository) List(ctx context.Context) ([]*models.TunnelRecord, error) {
	var recs []*models.TunnelRecord
	if err := r.db.WithContext(ctx).Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// Save upserts a record. The record id falls back to the user id, and an
// existing record's creation time is preserved on update.
func (r *tunnelRepository) Save(ctx context.Context, userID string, record *models.TunnelRecord) (*models.TunnelRecord, error) {
	if record.ID == "" {
		if userID != "" {
			record.ID = userID
		} else {
			record.ID = uuid.New().String()
		}
	}

	existing, err := r.Get(ctx, record.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if existing == nil {
		if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
			return nil, err
		}
		return record, nil
	}

	record.CreatedAt = existing.CreatedAt
	if err := r.db.WithContext(ctx).Save(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// Delete removes a user's record, optionally constrained to a tunnel id
func (r *tunnelRepository) Delete(ctx context.Context, userID, tunnelID string) error {
	q := r.db.WithContext(ctx).Where("id = ?", userID)
	if tunnelID != "" {
		q = q.Where("tunnel_id = ?", tunnelID)
	}
	return q.Delete(&models.TunnelRecord{}).Error
}
