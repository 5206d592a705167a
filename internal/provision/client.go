// Package provision wraps the remote provisioning/billing service's HTTP API.
// The remote service allocates tunnel endpoints and issues payment invoices;
// this client is stateless and surfaces failures to the caller.
package provision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const requestTimeout = 30 * time.Second

// CreateResult holds the fields returned by the remote create operation
type CreateResult struct {
	TunnelID       string    `json:"tunnel_id"`
	Subdomain      string    `json:"subdomain"`
	RemotePort     int       `json:"remote_port"`
	SSHUser        string    `json:"ssh_user"`
	SSHHost        string    `json:"ssh_host"`
	SSHPrivateKey  string    `json:"ssh_private_key"`
	SSHCommand     string    `json:"ssh_command"`
	PublicURL      string    `json:"public_url"`
	ExpiresAt      time.Time `json:"expires_at"`
	PaymentHash    string    `json:"payment_hash"`
	PaymentRequest string    `json:"payment_request"`
}

// TopupResult holds the payment fields returned by the remote top-up operation.
// The remote top-up is best-effort idempotent and may omit either field.
type TopupResult struct {
	PaymentHash    string `json:"payment_hash"`
	PaymentRequest string `json:"payment_request"`
}

// Client defines the interface for remote tunnel provisioning
type Client interface {
	Create(ctx context.Context, publicID string, days int, note string) (*CreateResult, error)
	Topup(ctx context.Context, tunnelID string, days int) (*TopupResult, error)
}

type httpClient struct {
	base string
	http *http.Client
}

// NewClient creates a provisioning client against the given base URL
func NewClient(base string) Client {
	return &httpClient{
		base: base,
		http: &http.Client{Timeout: requestTimeout},
	}
}

// Create allocates a new tunnel endpoint and its first invoice
func (c *httpClient) Create(ctx context.Context, publicID string, days int, note string) (*CreateResult, error) {
	payload := map[string]interface{}{
		"public_id":   publicID,
		"days":        days,
		"client_note": note,
	}

	var res CreateResult
	if err := c.do(ctx, http.MethodPost, c.base+"/reverse_proxy/api/v1/tunnels", payload, &res); err != nil {
		return nil, fmt.Errorf("remote create failed: %w", err)
	}
	return &res, nil
}

// Topup extends an existing tunnel and returns the new invoice
func (c *httpClient) Topup(ctx context.Context, tunnelID string, days int) (*TopupResult, error) {
	payload := map[string]interface{}{
		"tunnel_id": tunnelID,
		"days":      days,
	}

	var res TopupResult
	url := fmt.Sprintf("%s/reverse_proxy/api/v1/payments/public/%s", c.base, tunnelID)
	if err := c.do(ctx, http.MethodPut, url, payload, &res); err != nil {
		return nil, fmt.Errorf("remote topup failed: %w", err)
	}
	return &res, nil
}

func (c *httpClient) do(ctx context.Context, method, url string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(data))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
