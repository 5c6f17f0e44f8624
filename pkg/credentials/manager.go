package credentials

import (
	"context"
	"sync"
	"time"
)

// freshnessBuffer is how far ahead of expiry a cached credential stops
// being served. A token with less runway than this is refreshed eagerly so
// downstream calls never race an expiring token.
const freshnessBuffer = 5 * time.Minute

// IssuedCredential is a provider-scoped access token. Credentials live
// only in the manager's memory and are replaced, never mutated.
type IssuedCredential struct {
	Token     string
	ScopeID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ExchangeFunc trades an app assertion for a credential scoped to scopeID.
// It is the only network-bound operation in this package and must honor
// the caller's context.
type ExchangeFunc func(ctx context.Context, assertion, scopeID string) (IssuedCredential, error)

// Manager owns the per-scope credential cache. Construct one per process
// and pass it by reference; tests construct their own with a fake clock.
type Manager struct {
	principal  *Principal
	now        func() time.Time
	onExchange func(scopeID string)

	mu    sync.Mutex
	cache map[string]IssuedCredential
}

// NewManager creates a Manager for the given principal.
func NewManager(principal *Principal) *Manager {
	return &Manager{
		principal: principal,
		now:       time.Now,
		cache:     make(map[string]IssuedCredential),
	}
}

// WithClock overrides the manager's time source. Test hook.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// OnExchange registers a callback fired after every successful exchange,
// typically for metrics. Call before the manager is shared.
func (m *Manager) OnExchange(fn func(scopeID string)) *Manager {
	m.onExchange = fn
	return m
}

// ScopedToken returns a credential for scopeID, exchanging a fresh
// assertion when the cache has no entry with more than the freshness
// buffer of lifetime left. A failed exchange leaves the cache unchanged.
//
// Concurrent misses on the same scope may each run an exchange; the last
// write wins and the extra tokens simply go unused.
func (m *Manager) ScopedToken(ctx context.Context, scopeID string, exchange ExchangeFunc) (IssuedCredential, error) {
	now := m.now()

	m.mu.Lock()
	cached, ok := m.cache[scopeID]
	m.mu.Unlock()
	if ok && cached.ExpiresAt.Sub(now) > freshnessBuffer {
		return cached, nil
	}

	assertion, err := m.principal.Assertion(now)
	if err != nil {
		return IssuedCredential{}, err
	}
	issued, err := exchange(ctx, assertion, scopeID)
	if err != nil {
		return IssuedCredential{}, err
	}
	issued.ScopeID = scopeID
	if issued.IssuedAt.IsZero() {
		issued.IssuedAt = now
	}

	m.mu.Lock()
	m.cache[scopeID] = issued
	m.mu.Unlock()

	if m.onExchange != nil {
		m.onExchange(scopeID)
	}
	return issued, nil
}

// Invalidate evicts the cached credential for scopeID. Call it after an
// observed downstream 401/403 so the next request re-authenticates
// instead of retrying a known-bad token.
func (m *Manager) Invalidate(scopeID string) {
	m.mu.Lock()
	delete(m.cache, scopeID)
	m.mu.Unlock()
}
