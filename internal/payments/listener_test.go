package payments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"tunnelout/internal/logging"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "payments-test")
	if err != nil {
		panic(err)
	}
	logging.Configure(&logging.Config{
		File:       filepath.Join(dir, "test.log"),
		MaxSize:    1,
		MaxBackups: 1,
		MaxAge:     1,
	})
	os.Exit(m.Run())
}

// paymentServer serves one scripted websocket session per connection
func paymentServer(t *testing.T, sessions ...[]string) (*httptest.Server, string) {
	t.Helper()

	var conns atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		n := int(conns.Add(1)) - 1
		if n >= len(sessions) {
			// Out of script: hold the connection open until the client leaves
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}
		for _, msg := range sessions[n] {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
	}))
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestSettlementTriggersActivation(t *testing.T) {
	srv, wsBase := paymentServer(t, []string{
		"not even json",
		`{"status":"pending"}`,
		`{"paid":true}`,
	})
	defer srv.Close()

	r := NewRegistry(wsBase)
	var activations atomic.Int32
	r.SetActivate(func(ctx context.Context, userID, paymentHash string) {
		assert.Equal(t, "alice", userID)
		assert.Equal(t, "hash-1", paymentHash)
		activations.Add(1)
	})

	r.Ensure("alice", "hash-1")
	waitFor(t, func() bool { return activations.Load() == 1 })

	// A settled subscription removes its own handle.
	waitFor(t, func() bool { return !r.Tracked("hash-1") })
	r.Shutdown()
	assert.Equal(t, int32(1), activations.Load())
}

func TestSettlementViaSuccessStatus(t *testing.T) {
	srv, wsBase := paymentServer(t, []string{`{"status":"success"}`})
	defer srv.Close()

	r := NewRegistry(wsBase)
	var activations atomic.Int32
	r.SetActivate(func(ctx context.Context, userID, paymentHash string) {
		activations.Add(1)
	})

	r.Ensure("alice", "hash-1")
	waitFor(t, func() bool { return activations.Load() == 1 })
	r.Shutdown()
}

func TestEnsureIsIdempotent(t *testing.T) {
	srv, wsBase := paymentServer(t)
	defer srv.Close()

	r := NewRegistry(wsBase)
	r.SetActivate(func(ctx context.Context, userID, paymentHash string) {})

	var dials atomic.Int32
	inner := r.dial
	r.dial = func(ctx context.Context, url string) (*websocket.Conn, error) {
		dials.Add(1)
		return inner(ctx, url)
	}

	r.Ensure("alice", "hash-1")
	r.Ensure("alice", "hash-1")
	r.Ensure("alice", "")

	waitFor(t, func() bool { return dials.Load() == 1 })
	assert.True(t, r.Tracked("hash-1"))
	assert.False(t, r.Tracked(""))

	r.Shutdown()
	assert.Equal(t, int32(1), dials.Load())
}

func TestCancelStopsSubscription(t *testing.T) {
	srv, wsBase := paymentServer(t)
	defer srv.Close()

	r := NewRegistry(wsBase)
	var activations atomic.Int32
	r.SetActivate(func(ctx context.Context, userID, paymentHash string) {
		activations.Add(1)
	})

	r.Ensure("alice", "hash-1")
	waitFor(t, func() bool { return r.Tracked("hash-1") })

	r.Cancel("hash-1")
	assert.False(t, r.Tracked("hash-1"))

	// The worker must unblock from its read and exit.
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not exit after cancel")
	}
	assert.Zero(t, activations.Load())
}

func TestReconnectAfterStreamClose(t *testing.T) {
	// First session ends without settlement, second one settles.
	srv, wsBase := paymentServer(t,
		[]string{`{"status":"pending"}`},
		[]string{`{"paid":true}`},
	)
	defer srv.Close()

	r := NewRegistry(wsBase)
	r.backoff = 20 * time.Millisecond
	var activations atomic.Int32
	r.SetActivate(func(ctx context.Context, userID, paymentHash string) {
		activations.Add(1)
	})

	r.Ensure("alice", "hash-1")
	waitFor(t, func() bool { return activations.Load() == 1 })
	r.Shutdown()
}

func TestReconnectAfterDialFailure(t *testing.T) {
	srv, wsBase := paymentServer(t, []string{`{"paid":true}`})
	defer srv.Close()

	r := NewRegistry(wsBase)
	r.backoff = 20 * time.Millisecond
	var activations atomic.Int32
	r.SetActivate(func(ctx context.Context, userID, paymentHash string) {
		activations.Add(1)
	})

	var dials atomic.Int32
	inner := r.dial
	r.dial = func(ctx context.Context, url string) (*websocket.Conn, error) {
		if dials.Add(1) == 1 {
			return nil, &websocket.CloseError{Code: websocket.CloseAbnormalClosure}
		}
		return inner(ctx, url)
	}

	r.Ensure("alice", "hash-1")
	waitFor(t, func() bool { return activations.Load() == 1 })
	require.GreaterOrEqual(t, dials.Load(), int32(2))
	r.Shutdown()
}
