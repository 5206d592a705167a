package tunnel

import "tunnelout/internal/models"

// CreateRequest is the body of a create-or-topup call
type CreateRequest struct {
	Days int `json:"days" binding:"required,gt=0"`
}

// Response wraps the caller's current record; Tunnel is null when none exists
type Response struct {
	Tunnel *models.TunnelRecord `json:"tunnel"`
}

// PingResponse reports the reachability of the tunnel's public URL
type PingResponse struct {
	Reachable bool `json:"reachable"`
}
