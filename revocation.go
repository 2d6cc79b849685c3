package auth

import (
	"sync"
	"time"
)

// Revoker tracks token ids revoked before their natural expiry
type Revoker interface {
	Revoke(tokenID string, expiresAt time.Time)
	IsRevoked(tokenID string) bool
}

// MemoryRevoker is a process local revocation set. Entries are dropped
// once the token would have expired anyway.
type MemoryRevoker struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevoker returns an empty revocation set
func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke marks tokenID as revoked until expiresAt
func (m *MemoryRevoker) Revoke(tokenID string, expiresAt time.Time) {
	if tokenID == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.prune()
	m.entries[tokenID] = expiresAt
}

// IsRevoked reports whether tokenID was revoked and has not expired yet
func (m *MemoryRevoker) IsRevoked(tokenID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.entries[tokenID]
	if !ok {
		return false
	}

	if m.now().After(exp) {
		delete(m.entries, tokenID)
		return false
	}
	return true
}

// Len returns the number of tracked ids
func (m *MemoryRevoker) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryRevoker) prune() {
	now := m.now()
	for id, exp := range m.entries {
		if now.After(exp) {
			delete(m.entries, id)
		}
	}
}
