package catalog

import (
	"context"
	"sort"
	"sync"
)

// MemoryProducts is an in process Products repository
type MemoryProducts struct {
	mu   sync.RWMutex
	byID map[string]*Product
}

func NewMemoryProducts() *MemoryProducts {
	return &MemoryProducts{byID: map[string]*Product{}}
}

var _ Products = (*MemoryProducts)(nil)

func (m *MemoryProducts) Create(_ context.Context, product *Product) (*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[product.ID] = product.Clone()
	return product.Clone(), nil
}

func (m *MemoryProducts) List(context.Context) ([]*Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Product, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, p.Clone())
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

func (m *MemoryProducts) FindByID(_ context.Context, id string) (*Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return p.Clone(), nil
}

func (m *MemoryProducts) Update(_ context.Context, product *Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[product.ID]; !ok {
		return ErrProductNotFound
	}
	m.byID[product.ID] = product.Clone()
	return nil
}

func (m *MemoryProducts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return ErrProductNotFound
	}
	delete(m.byID, id)
	return nil
}
