// Package payments tracks one live payment-event subscription per outstanding
// payment hash. Each subscription watches the remote event stream and triggers
// tunnel activation when the payment settles. Subscriptions reconnect
// indefinitely: payment confirmation has no deadline of its own.
package payments

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"tunnelout/internal/logging"

	"github.com/gorilla/websocket"
)

// resubscribeDelay is the fixed wait between reconnect attempts
const resubscribeDelay = 5 * time.Second

// ActivateFunc is invoked once when a watched payment settles
type ActivateFunc func(ctx context.Context, userID, paymentHash string)

type dialFunc func(ctx context.Context, url string) (*websocket.Conn, error)

// Registry owns the in-memory mapping of payment hash to live subscription.
// At most one subscription exists per payment hash at any time.
type Registry struct {
	wsBase   string
	activate ActivateFunc
	backoff  time.Duration
	dial     dialFunc

	mu       sync.Mutex
	watchers map[string]context.CancelFunc
	wg       sync.WaitGroup
}

// NewRegistry creates a listener registry against the given websocket base URL.
// SetActivate must be called before the first Ensure.
func NewRegistry(wsBase string) *Registry {
	return &Registry{
		wsBase:   wsBase,
		backoff:  resubscribeDelay,
		watchers: make(map[string]context.CancelFunc),
		dial: func(ctx context.Context, url string) (*websocket.Conn, error) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			return conn, err
		},
	}
}

// SetActivate binds the settlement callback. The lifecycle engine and the
// registry reference each other, so the callback is bound after construction.
func (r *Registry) SetActivate(fn ActivateFunc) {
	r.activate = fn
}

// Ensure starts a subscription for the given payment hash. It is a no-op when
// the hash is empty or a subscription for it is already tracked.
func (r *Registry) Ensure(userID, paymentHash string) {
	if paymentHash == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.watchers[paymentHash]; ok {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.watchers[paymentHash] = cancel
	r.wg.Add(1)
	go r.watch(ctx, userID, paymentHash)
}

// Cancel stops the subscription for a payment hash and removes its handle.
// Used on shutdown, superseding top-up, and record pruning.
func (r *Registry) Cancel(paymentHash string) {
	if paymentHash == "" {
		return
	}

	r.mu.Lock()
	cancel, ok := r.watchers[paymentHash]
	delete(r.watchers, paymentHash)
	r.mu.Unlock()

	if ok {
		cancel()
	}
}

// Tracked reports whether a subscription exists for the payment hash
func (r *Registry) Tracked(paymentHash string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.watchers[paymentHash]
	return ok
}

// Shutdown cancels every subscription and waits for the workers to exit
func (r *Registry) Shutdown() {
	r.mu.Lock()
	for hash, cancel := range r.watchers {
		cancel()
		delete(r.watchers, hash)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Registry) remove(paymentHash string) {
	r.mu.Lock()
	delete(r.watchers, paymentHash)
	r.mu.Unlock()
}

// paymentEvent is the JSON shape of a payment stream message. Settlement is
// signalled either by an explicit success status or a boolean paid flag.
type paymentEvent struct {
	Status string `json:"status"`
	Paid   bool   `json:"paid"`
}

func (e paymentEvent) settled() bool {
	return e.Status == "success" || e.Paid
}

func (r *Registry) watch(ctx context.Context, userID, paymentHash string) {
	defer r.wg.Done()
	defer r.remove(paymentHash)

	logger := logging.GetLogger()
	url := r.wsBase + "/" + paymentHash

	for {
		settled, err := r.subscribeOnce(ctx, url, userID, paymentHash)
		if settled || ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Warn("payment stream error for %s: %v", paymentHash, err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.backoff):
		}
	}
}

// subscribeOnce holds one websocket session open until settlement, stream
// closure, or cancellation. It returns true once the payment settled.
func (r *Registry) subscribeOnce(ctx context.Context, url, userID, paymentHash string) (bool, error) {
	conn, err := r.dial(ctx, url)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	// Close the connection on cancellation to unblock ReadMessage
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return false, nil
			}
			return false, err
		}

		var ev paymentEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			logging.GetLogger().Warn("failed to parse payment payload for %s: %s", paymentHash, string(msg))
			continue
		}

		if ev.settled() {
			r.activate(ctx, userID, paymentHash)
			return true, nil
		}
	}
}
