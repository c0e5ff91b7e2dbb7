package ledger

import (
	"context"
	"strings"
	"sync"

	"github.com/glogos/zone/internal/anchor"
	"github.com/glogos/zone/internal/attestation"
)

// MemoryStore is an in-memory, thread-safe Store implementation. It is
// primarily useful for testing and for single-process deployments that do
// not require durability across restarts.
type MemoryStore struct {
	mu           sync.RWMutex
	attestations map[string]*attestation.Attestation
	anchors      []*anchor.Anchor
	byRoot       map[string]*anchor.Anchor
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		attestations: make(map[string]*attestation.Attestation),
		byRoot:       make(map[string]*anchor.Anchor),
	}
}

// PutAttestation implements Store.
func (s *MemoryStore) PutAttestation(_ context.Context, att *attestation.Attestation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *att
	s.attestations[strings.ToLower(att.AttestationID)] = &cp
	return nil
}

// GetAttestation implements Store.
func (s *MemoryStore) GetAttestation(_ context.Context, id string) (*attestation.Attestation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	att, ok := s.attestations[strings.ToLower(id)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *att
	return &cp, nil
}

// HasAttestation implements Store.
func (s *MemoryStore) HasAttestation(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.attestations[strings.ToLower(id)]
	return ok, nil
}

// AttestationIDs implements Store.
func (s *MemoryStore) AttestationIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.attestations))
	for id := range s.attestations {
		ids = append(ids, id)
	}
	return ids, nil
}

// PutAnchor implements Store.
func (s *MemoryStore) PutAnchor(_ context.Context, a *anchor.Anchor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	cp.MerkleRoot = strings.ToLower(cp.MerkleRoot)
	s.anchors = append(s.anchors, &cp)
	s.byRoot[cp.MerkleRoot] = &cp
	return nil
}

// LatestAnchor implements Store.
func (s *MemoryStore) LatestAnchor(_ context.Context) (*anchor.Anchor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.anchors) == 0 {
		return nil, nil
	}
	cp := *s.anchors[len(s.anchors)-1]
	return &cp, nil
}

// AnchorForRoot implements Store.
func (s *MemoryStore) AnchorForRoot(_ context.Context, root string) (*anchor.Anchor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byRoot[strings.ToLower(root)]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
