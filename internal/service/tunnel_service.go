package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tunnelout/internal/logging"
	"tunnelout/internal/models"
	"tunnelout/internal/provision"
	"tunnelout/internal/repository"
	"tunnelout/internal/utils"
)

// pingTimeout bounds the reachability probe against the tunnel's public URL
const pingTimeout = 8 * time.Second

// PaymentListeners is the slice of the payment registry the engine drives
type PaymentListeners interface {
	Ensure(userID, paymentHash string)
	Cancel(paymentHash string)
}

// ProcessSupervisor is the slice of the subprocess supervisor the engine drives
type ProcessSupervisor interface {
	WriteKeyMaterial(rec *models.TunnelRecord) (keyPath, knownHostsPath string, err error)
	EnsureRunning(rec *models.TunnelRecord, keyPath, knownHostsPath string)
	BuildScript(rec *models.TunnelRecord, keyPath, knownHostsPath string) string
	Stop(tunnelID string)
}

// TunnelService is the tunnel lifecycle engine. It owns all record state
// transitions and composes the record store, the remote provisioning client,
// the payment listener registry and the process supervisor.
type TunnelService interface {
	// FetchExisting returns the user's record, deleting it first when it is
	// prune-ready. With prunePending set, a pending record is discarded too.
	FetchExisting(ctx context.Context, userID string, prunePending bool) (*models.TunnelRecord, error)
	// CreateOrTopup provisions a new tunnel for the user, or extends the
	// existing one. Safe to call repeatedly: a live record routes to top-up.
	CreateOrTopup(ctx context.Context, userID string, days int) (*models.TunnelRecord, error)
	// Activate marks the record active, ensures the subprocess is running and
	// extends expiry once per paid period. Resolution prefers the payment
	// hash and happens under the per-user lock; nil is returned when nothing
	// resolves, including a hash whose invoice was since superseded.
	Activate(ctx context.Context, userID, paymentHash string) (*models.TunnelRecord, error)
	// Ping probes the record's public URL. Failures report unreachable.
	Ping(ctx context.Context, userID string) bool
	// Delete tears down the user's record, its listener and its subprocess
	Delete(ctx context.Context, userID string) error
}

type tunnelService struct {
	repo        repository.TunnelRepository
	provisioner provision.Client
	listeners   PaymentListeners
	procs       ProcessSupervisor

	publicID  string
	localHost string
	localPort int

	pingClient *http.Client
	now        func() time.Time
	locks      *userLocks
}

// NewTunnelService creates the lifecycle engine. listenHost/listenPort is the
// service's own listen address; the local end of each tunnel is derived from
// it, with a wildcard bind mapped to loopback.
func NewTunnelService(
	repo repository.TunnelRepository,
	provisioner provision.Client,
	listeners PaymentListeners,
	procs ProcessSupervisor,
	publicID, listenHost string,
	listenPort int,
) TunnelService {
	localHost, localPort := utils.NormalizeLocalBind(listenHost, listenPort)
	return &tunnelService{
		repo:        repo,
		provisioner: provisioner,
		listeners:   listeners,
		procs:       procs,
		publicID:    publicID,
		localHost:   localHost,
		localPort:   localPort,
		pingClient:  &http.Client{Timeout: pingTimeout},
		now:         time.Now,
		locks:       newUserLocks(),
	}
}

// FetchExisting returns the user's record, pruning lapsed state on the way
func (s *tunnelService) FetchExisting(ctx context.Context, userID string, prunePending bool) (*models.TunnelRecord, error) {
	rec, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if rec.PruneReady() {
		return nil, s.discard(ctx, rec)
	}
	if prunePending && rec.Status == models.StatusPending {
		return nil, s.discard(ctx, rec)
	}
	return rec, nil
}

// discard cancels the record's payment listener before deleting it, so a late
// settlement cannot resurrect a removed record.
func (s *tunnelService) discard(ctx context.Context, rec *models.TunnelRecord) error {
	s.listeners.Cancel(rec.PaymentHash)
	if err := s.repo.Delete(ctx, rec.ID, rec.TunnelID); err != nil {
		return fmt.Errorf("failed to prune record: %w", err)
	}
	return nil
}

func (s *tunnelService) CreateOrTopup(ctx context.Context, userID string, days int) (*models.TunnelRecord, error) {
	if days <= 0 {
		return nil, ErrInvalidDays
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	existing, err := s.FetchExisting(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.topup(ctx, existing, days)
	}
	return s.create(ctx, userID, days)
}

func (s *tunnelService) topup(ctx context.Context, rec *models.TunnelRecord, days int) (*models.TunnelRecord, error) {
	pay, err := s.provisioner.Topup(ctx, rec.TunnelID, days)
	if err != nil {
		return nil, err
	}

	// A new invoice supersedes the old one: drop the stale listener so a
	// late settlement of the previous hash cannot re-activate this record.
	if pay.PaymentHash != "" && pay.PaymentHash != rec.PaymentHash {
		s.listeners.Cancel(rec.PaymentHash)
		rec.PaymentHash = pay.PaymentHash
	}
	if pay.PaymentRequest != "" {
		rec.PaymentRequest = pay.PaymentRequest
	}

	rec.Days = days
	rec.Status = models.StatusPending
	rec.LocalHost, rec.LocalPort = s.localHost, s.localPort
	rec.UpdatedAt = s.now()

	saved, err := s.repo.Save(ctx, rec.ID, rec)
	if err != nil {
		return nil, err
	}
	s.listeners.Ensure(saved.ID, saved.PaymentHash)
	return saved, nil
}

func (s *tunnelService) create(ctx context.Context, userID string, days int) (*models.TunnelRecord, error) {
	res, err := s.provisioner.Create(ctx, s.publicID, days, userID)
	if err != nil {
		return nil, err
	}

	expiresAt := res.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = s.now()
	}

	rec := &models.TunnelRecord{
		ID:             userID,
		TunnelID:       res.TunnelID,
		Subdomain:      res.Subdomain,
		RemotePort:     res.RemotePort,
		SSHUser:        res.SSHUser,
		SSHHost:        res.SSHHost,
		SSHPrivateKey:  res.SSHPrivateKey,
		SSHCommand:     res.SSHCommand,
		PublicURL:      res.PublicURL,
		ExpiresAt:      expiresAt,
		PaymentHash:    res.PaymentHash,
		PaymentRequest: res.PaymentRequest,
		Status:         models.StatusPending,
		Days:           days,
		LocalHost:      s.localHost,
		LocalPort:      s.localPort,
		UpdatedAt:      s.now(),
	}

	saved, err := s.repo.Save(ctx, userID, rec)
	if err != nil {
		return nil, err
	}
	s.listeners.Ensure(saved.ID, saved.PaymentHash)
	return saved, nil
}

func (s *tunnelService) Activate(ctx context.Context, userID, paymentHash string) (*models.TunnelRecord, error) {
	lockID := userID
	if lockID == "" {
		rec, err := s.resolve(ctx, userID, paymentHash)
		if err != nil || rec == nil {
			return nil, err
		}
		lockID = rec.ID
	}

	unlock := s.locks.lock(lockID)
	defer unlock()

	// Resolve under the lock: a concurrent top-up may have rotated the
	// payment hash while we waited, and activation must see its result.
	rec, err := s.resolve(ctx, lockID, paymentHash)
	if err != nil || rec == nil {
		return nil, err
	}

	logger := logging.GetLogger()
	rec.LocalHost, rec.LocalPort = s.localHost, s.localPort

	keyPath, knownHostsPath, err := s.procs.WriteKeyMaterial(rec)
	if err != nil {
		// Degraded: the record still activates, connectivity stays down
		// until the next rehydration attempt and is observable via Ping.
		logger.Error("failed to write key material for tunnel %s: %v", rec.TunnelID, err)
	} else {
		s.procs.EnsureRunning(rec, keyPath, knownHostsPath)
		rec.SSHCommand = s.procs.BuildScript(rec, keyPath, knownHostsPath)
	}

	// Extend once per paid period: on a payment event, or when the record
	// was still pending. Re-activation of an active record never extends.
	if paymentHash != "" || rec.Status == models.StatusPending {
		base := rec.ExpiresAt
		if now := s.now(); base.Before(now) {
			base = now
		}
		rec.ExpiresAt = base.Add(time.Duration(rec.Days) * 24 * time.Hour)
	}

	rec.Status = models.StatusActive
	rec.UpdatedAt = s.now()

	return s.repo.Save(ctx, rec.ID, rec)
}

// resolve finds the activation target: by payment hash when triggered by a
// payment event, by user identity when rehydrating. A hash with no matching
// record means its invoice was superseded or pruned; it must not fall back to
// the user's record, which by then carries a different outstanding invoice.
func (s *tunnelService) resolve(ctx context.Context, userID, paymentHash string) (*models.TunnelRecord, error) {
	if paymentHash != "" {
		rec, err := s.repo.GetByPaymentHash(ctx, paymentHash)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return rec, nil
	}
	return s.FetchExisting(ctx, userID, false)
}

func (s *tunnelService) Ping(ctx context.Context, userID string) bool {
	rec, err := s.FetchExisting(ctx, userID, false)
	if err != nil || rec == nil || rec.PublicURL == "" {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rec.PublicURL, nil)
	if err != nil {
		return false
	}

	resp, err := s.pingClient.Do(req)
	if err != nil {
		logging.GetLogger().Info("ping failed for %s: %v", rec.PublicURL, err)
		return false
	}
	defer resp.Body.Close()

	// Proxy/server errors on the target still mean the tunnel itself is up
	return resp.StatusCode < 500
}

func (s *tunnelService) Delete(ctx context.Context, userID string) error {
	unlock := s.locks.lock(userID)
	defer unlock()

	rec, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	s.listeners.Cancel(rec.PaymentHash)
	s.procs.Stop(rec.TunnelID)
	return s.repo.Delete(ctx, rec.ID, rec.TunnelID)
}
