package alerts

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory alert store for demo/development mode.
type MemoryStore struct {
	mu     sync.RWMutex
	alerts map[string]*Alert
	byTxn  map[string]string // transaction ID -> alert ID
}

// NewMemoryStore creates a new in-memory alert store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		alerts: make(map[string]*Alert),
		byTxn:  make(map[string]string),
	}
}

func (m *MemoryStore) Create(ctx context.Context, alert *Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := copyAlert(alert)
	m.alerts[alert.ID] = cp
	m.byTxn[alert.TransactionID] = alert.ID
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	alert, ok := m.alerts[id]
	if !ok {
		return nil, ErrAlertNotFound
	}
	return copyAlert(alert), nil
}

func (m *MemoryStore) GetByTransaction(ctx context.Context, transactionID string) (*Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byTxn[transactionID]
	if !ok {
		return nil, ErrAlertNotFound
	}
	return copyAlert(m.alerts[id]), nil
}

func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]*Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Alert, 0, len(m.alerts))
	for _, alert := range m.alerts {
		if filter.Status != "" && alert.Status != filter.Status {
			continue
		}
		if filter.UserID != "" && alert.UserID != filter.UserID {
			continue
		}
		result = append(result, copyAlert(alert))
	}

	// Newest first, matching the postgres store.
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *MemoryStore) Update(ctx context.Context, alert *Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.alerts[alert.ID]; !ok {
		return ErrAlertNotFound
	}
	m.alerts[alert.ID] = copyAlert(alert)
	return nil
}

// copyAlert deep-copies an alert so callers never share slices or
// pointers with the store.
func copyAlert(a *Alert) *Alert {
	cp := *a
	if a.ViolatedRules != nil {
		cp.ViolatedRules = append([]string(nil), a.ViolatedRules...)
	}
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		cp.ResolvedAt = &t
	}
	return &cp
}
