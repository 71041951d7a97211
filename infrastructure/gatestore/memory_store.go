// Package gatestore provides GateDefinitionProvider implementations: an
// in-memory store and a YAML directory store with hot reload.
package gatestore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ahrav/go-gatekeeper/internal/domain"
	"github.com/ahrav/go-gatekeeper/internal/ports"
)

var (
	_ ports.GateDefinitionProvider = (*MemoryStore)(nil)
	_ ports.GateLister             = (*MemoryStore)(nil)
)

// MemoryStore holds gate definitions in a map guarded by a RWMutex.
// Replace swaps the whole set, so readers never see a partial reload.
type MemoryStore struct {
	mu    sync.RWMutex
	gates map[string]*domain.GateDefinition
}

// NewMemoryStore creates a store seeded with defs. Later duplicates win.
func NewMemoryStore(defs ...*domain.GateDefinition) *MemoryStore {
	s := &MemoryStore{gates: make(map[string]*domain.GateDefinition, len(defs))}
	for _, def := range defs {
		s.gates[def.ID] = def
	}
	return s
}

// GetGate returns a copy of the definition so callers cannot mutate the
// stored one.
func (s *MemoryStore) GetGate(ctx context.Context, id string) (*domain.GateDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	def, ok := s.gates[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrGateNotFound, id)
	}

	cp := *def
	return &cp, nil
}

// ListGateIDs returns all ids in sorted order.
func (s *MemoryStore) ListGateIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.gates))
	for id := range s.gates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Put adds or replaces one definition.
func (s *MemoryStore) Put(def *domain.GateDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gates[def.ID] = def
}

// Delete removes a definition. Missing ids are ignored.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.gates, id)
}

// Replace swaps the entire definition set.
func (s *MemoryStore) Replace(gates map[string]*domain.GateDefinition) {
	next := make(map[string]*domain.GateDefinition, len(gates))
	for id, def := range gates {
		next[id] = def
	}

	s.mu.Lock()
	s.gates = next
	s.mu.Unlock()
}

// Len returns the number of stored gates.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.gates)
}
