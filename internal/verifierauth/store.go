// Package verifierauth onboards relying parties (age gates) and authenticates
// their API keys. Keys are stored bcrypt-hashed; the plaintext is shown once
// at issuance.
package verifierauth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"agetoken/internal/sentinel"
)

// Verifier is an onboarded relying party allowed to call the verification
// endpoint.
type Verifier struct {
	ID        string
	Name      string
	KeyHash   string // bcrypt hash of the key secret
	CreatedAt time.Time
}

// Store is the persistence interface for verifiers.
// Error Contract: FindByID returns sentinel.ErrNotFound (wrapped) when no
// verifier exists.
type Store interface {
	Create(ctx context.Context, verifier *Verifier) error
	FindByID(ctx context.Context, id string) (*Verifier, error)
	List(ctx context.Context) ([]Verifier, error)
}

// InMemoryStore stores verifiers in memory for tests/dev.
type InMemoryStore struct {
	mu        sync.RWMutex
	verifiers map[string]*Verifier
}

// NewInMemoryStore constructs an empty in-memory verifier store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{verifiers: make(map[string]*Verifier)}
}

func (s *InMemoryStore) Create(_ context.Context, verifier *Verifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *verifier
	s.verifiers[verifier.ID] = &clone
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (*Verifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if verifier, ok := s.verifiers[id]; ok {
		clone := *verifier
		return &clone, nil
	}
	return nil, fmt.Errorf("verifier not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) List(_ context.Context) ([]Verifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Verifier, 0, len(s.verifiers))
	for _, verifier := range s.verifiers {
		out = append(out, *verifier)
	}
	return out, nil
}
