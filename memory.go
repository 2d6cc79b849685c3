package auth

import (
	"context"
	"sort"
	"sync"
)

// MemoryAccounts is an in process AccountStore. It backs tests and the
// "memory" store driver; contents are lost on restart.
type MemoryAccounts struct {
	mu        sync.RWMutex
	byID      map[string]*Account
	byEmail   map[string]string
	bootstrap string
}

// NewMemoryAccounts returns an empty store
func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{
		byID:    map[string]*Account{},
		byEmail: map[string]string{},
	}
}

var _ AccountStore = (*MemoryAccounts)(nil)

// FindByEmail returns the account registered with email
func (m *MemoryAccounts) FindByEmail(_ context.Context, email string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return m.byID[id].Clone(), nil
}

// FindByID returns the account with id
func (m *MemoryAccounts) FindByID(_ context.Context, id string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.byID[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return account.Clone(), nil
}

// Count returns the number of stored accounts
func (m *MemoryAccounts) Count(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.byID)), nil
}

// Create stores a new account, enforcing unique emails
func (m *MemoryAccounts) Create(_ context.Context, account *Account) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record := account.Clone()
	record.Email = NormalizeEmail(record.Email)

	if _, taken := m.byEmail[record.Email]; taken {
		return nil, ErrEmailTaken
	}
	if record.Role == RoleAdmin && m.bootstrap != record.ID {
		return nil, ErrBootstrapViolation
	}

	m.byID[record.ID] = record
	m.byEmail[record.Email] = record.ID

	return record.Clone(), nil
}

// Save overwrites an existing account
func (m *MemoryAccounts) Save(_ context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.byID[account.ID]
	if !ok {
		return ErrAccountNotFound
	}

	record := account.Clone()
	record.Email = NormalizeEmail(record.Email)

	if owner, taken := m.byEmail[record.Email]; taken && owner != record.ID {
		return ErrEmailTaken
	}

	delete(m.byEmail, current.Email)
	m.byID[record.ID] = record
	m.byEmail[record.Email] = record.ID

	return nil
}

// ListByRole returns accounts with role ordered by creation
func (m *MemoryAccounts) ListByRole(_ context.Context, role Role) ([]*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Account, 0, len(m.byID))
	for _, account := range m.byID {
		if account.Role == role {
			out = append(out, account.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].CreatedAt, out[j].CreatedAt
		if a == nil || b == nil || a.Equal(*b) {
			return out[i].ID < out[j].ID
		}
		return a.Before(*b)
	})

	return out, nil
}

// ClaimBootstrap records accountID as the bootstrap admin. Only the first
// caller wins.
func (m *MemoryAccounts) ClaimBootstrap(_ context.Context, accountID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.bootstrap != "" {
		return false, nil
	}
	m.bootstrap = accountID
	return true, nil
}

// ReleaseBootstrap frees the marker if accountID still holds it and was
// never persisted
func (m *MemoryAccounts) ReleaseBootstrap(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.bootstrap != accountID {
		return nil
	}
	if _, persisted := m.byID[accountID]; persisted {
		return nil
	}
	m.bootstrap = ""
	return nil
}
