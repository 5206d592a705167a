package service

import "sync"

// userLocks serializes record mutation per user. Payment events, API calls and
// the rehydration sweep can all target the same user concurrently; the lock
// preserves the one-authoritative-record invariant.
type userLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{m: make(map[string]*sync.Mutex)}
}

// lock acquires the per-user mutex and returns its unlock function
func (l *userLocks) lock(userID string) func() {
	l.mu.Lock()
	m, ok := l.m[userID]
	if !ok {
		m = &sync.Mutex{}
		l.m[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
