package models

import (
	"time"
)

// TunnelStatus is the lifecycle state of a tunnel record
type TunnelStatus string

const (
	StatusPending TunnelStatus = "pending"
	StatusActive  TunnelStatus = "active"
)

// PruneGrace is how long past expiry a record is kept before hard deletion.
// An expired record inside the grace window can still be renewed by a top-up.
const PruneGrace = 7 * 24 * time.Hour

// TunnelRecord is the persisted state of one user's reverse-tunnel subscription.
// ID is the owning user's identifier; there is one authoritative record per user.
type TunnelRecord struct {
	ID             string       `gorm:"primaryKey" json:"id"`
	TunnelID       string       `gorm:"index" json:"tunnel_id"`
	Subdomain      string       `json:"subdomain"`
	RemotePort     int          `json:"remote_port"`
	SSHUser        string       `json:"ssh_user"`
	SSHHost        string       `json:"ssh_host"`
	SSHPrivateKey  string       `json:"ssh_private_key"`
	SSHCommand     string       `json:"ssh_command"`
	PublicURL      string       `json:"public_url"`
	ExpiresAt      time.Time    `json:"expires_at"`
	PaymentHash    string       `gorm:"index" json:"payment_hash"`
	PaymentRequest string       `json:"payment_request"`
	Status         TunnelStatus `gorm:"type:varchar(16);default:'pending'" json:"status"`
	Days           int          `json:"days"`
	LocalHost      string       `gorm:"default:localhost" json:"local_host"`
	LocalPort      int          `gorm:"default:5000" json:"local_port"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

func (TunnelRecord) TableName() string {
	return "tunnels"
}

// IsExpired reports whether the paid period has lapsed.
func (t *TunnelRecord) IsExpired() bool {
	return !time.Now().Before(t.ExpiresAt)
}

// PruneReady reports whether the record has been expired for longer than the
// grace window and should be hard-deleted rather than kept for renewal.
func (t *TunnelRecord) PruneReady() bool {
	return time.Since(t.ExpiresAt) > PruneGrace
}
