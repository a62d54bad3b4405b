package rules

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory rule store for demo/development mode.
type MemoryStore struct {
	mu    sync.RWMutex
	rules map[string]*Rule
}

// NewMemoryStore creates a new in-memory rule store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rules: make(map[string]*Rule)}
}

func (m *MemoryStore) Create(ctx context.Context, rule *Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *rule
	m.rules[rule.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rule, ok := m.rules[id]
	if !ok {
		return nil, ErrRuleNotFound
	}
	cp := *rule
	return &cp, nil
}

func (m *MemoryStore) List(ctx context.Context, activeOnly bool) ([]*Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Rule, 0, len(m.rules))
	for _, rule := range m.rules {
		if activeOnly && !rule.Active {
			continue
		}
		cp := *rule
		result = append(result, &cp)
	}

	// Stable order: oldest first, matching the postgres store.
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MemoryStore) Update(ctx context.Context, rule *Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rules[rule.ID]; !ok {
		return ErrRuleNotFound
	}
	cp := *rule
	m.rules[rule.ID] = &cp
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rules[id]; !ok {
		return ErrRuleNotFound
	}
	delete(m.rules, id)
	return nil
}
