package tasks

import (
	"context"
	"sync"
	"time"

	"tunnelout/internal/logging"
	"tunnelout/internal/models"
	"tunnelout/internal/repository"
	"tunnelout/internal/service"
)

// sweepInterval is the fixed period between rehydration passes
const sweepInterval = 5 * time.Minute

// Rehydrator restores in-memory tracked state from persisted records: payment
// listeners for pending records, subprocesses for active ones. It is the
// recovery mechanism after any restart.
type Rehydrator struct {
	repo      repository.TunnelRepository
	svc       service.TunnelService
	listeners service.PaymentListeners
	interval  time.Duration
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewRehydrator creates a new rehydration sweep task
func NewRehydrator(repo repository.TunnelRepository, svc service.TunnelService, listeners service.PaymentListeners) *Rehydrator {
	return &Rehydrator{
		repo:      repo,
		svc:       svc,
		listeners: listeners,
		interval:  sweepInterval,
		done:      make(chan struct{}),
	}
}

// Start begins the sweep in the background, running once immediately
func (r *Rehydrator) Start() {
	r.wg.Add(1)
	go r.runPeriodically()
}

// Stop gracefully stops the sweep
func (r *Rehydrator) Stop() {
	close(r.done)
	r.wg.Wait()
}

func (r *Rehydrator) runPeriodically() {
	defer r.wg.Done()
	logger := logging.GetLogger()

	logger.Info("Starting rehydration sweep")

	r.sweep()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.done:
			logger.Info("Rehydration sweep stopped")
			return
		}
	}
}

// sweep re-derives running state from persisted records. It never returns an
// error: failures are logged and retried on the next interval.
func (r *Rehydrator) sweep() {
	ctx := context.Background()
	logger := logging.GetLogger()

	records, err := r.repo.List(ctx)
	if err != nil {
		if repository.IsNotReady(err) {
			// Schema not migrated yet; wait for the next pass
			return
		}
		logger.Error("rehydrate: failed to list records: %v", err)
		return
	}

	for _, rec := range records {
		switch rec.Status {
		case models.StatusPending:
			r.listeners.Ensure(rec.ID, rec.PaymentHash)
		case models.StatusActive:
			if _, err := r.svc.Activate(ctx, rec.ID, ""); err != nil {
				logger.Error("rehydrate: failed to activate tunnel for user %s: %v", rec.ID, err)
			}
		}
	}
}
