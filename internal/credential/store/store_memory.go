package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"agetoken/internal/sentinel"
)

// InMemoryDeviceStore stores device records in memory for tests/dev. The
// single map lock also serializes concurrent registrations for the same
// fingerprint: the last writer wins, matching the upsert contract.
type InMemoryDeviceStore struct {
	mu      sync.RWMutex
	records map[string]*DeviceRecord
}

// NewInMemoryDeviceStore constructs an empty in-memory device store.
func NewInMemoryDeviceStore() *InMemoryDeviceStore {
	return &InMemoryDeviceStore{records: make(map[string]*DeviceRecord)}
}

func (s *InMemoryDeviceStore) Upsert(_ context.Context, record *DeviceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	s.records[record.Fingerprint] = &clone
	return nil
}

func (s *InMemoryDeviceStore) FindByFingerprint(_ context.Context, fingerprint string) (*DeviceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.records[fingerprint]; ok {
		clone := *record
		return &clone, nil
	}
	return nil, fmt.Errorf("device record not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryDeviceStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for fingerprint, record := range s.records {
		if record.ExpiresAt.Before(now) {
			delete(s.records, fingerprint)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of stored records. Test helper.
func (s *InMemoryDeviceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
