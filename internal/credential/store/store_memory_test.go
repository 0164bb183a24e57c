package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agetoken/internal/sentinel"
)

func TestUpsert_SupersedesPriorRecord(t *testing.T) {
	s := NewInMemoryDeviceStore()
	ctx := context.Background()

	first := &DeviceRecord{
		Fingerprint:    "abc123",
		CredentialHash: "hash-1",
		ExpiresAt:      time.Now().Add(time.Hour),
	}
	require.NoError(t, s.Upsert(ctx, first))

	second := &DeviceRecord{
		Fingerprint:    "abc123",
		CredentialHash: "hash-2",
		ExpiresAt:      time.Now().Add(2 * time.Hour),
	}
	require.NoError(t, s.Upsert(ctx, second))

	got, err := s.FindByFingerprint(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "hash-2", got.CredentialHash)
	assert.Equal(t, 1, s.Len(), "at most one active record per fingerprint")
}

func TestFindByFingerprint_NotFound(t *testing.T) {
	s := NewInMemoryDeviceStore()
	_, err := s.FindByFingerprint(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestFindByFingerprint_ReturnsCopy(t *testing.T) {
	s := NewInMemoryDeviceStore()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, &DeviceRecord{Fingerprint: "fp", CredentialHash: "h"}))

	got, err := s.FindByFingerprint(ctx, "fp")
	require.NoError(t, err)
	got.CredentialHash = "mutated"

	again, err := s.FindByFingerprint(ctx, "fp")
	require.NoError(t, err)
	assert.Equal(t, "h", again.CredentialHash)
}

func TestDeleteExpired(t *testing.T) {
	s := NewInMemoryDeviceStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Upsert(ctx, &DeviceRecord{Fingerprint: "old", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, s.Upsert(ctx, &DeviceRecord{Fingerprint: "live", ExpiresAt: now.Add(time.Hour)}))

	removed, err := s.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = s.FindByFingerprint(ctx, "old")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	_, err = s.FindByFingerprint(ctx, "live")
	assert.NoError(t, err)
}
