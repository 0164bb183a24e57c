// Package store persists DeviceRecord rows binding a device fingerprint to
// the most recently issued credential.
package store

import (
	"context"
	"time"
)

// DeviceRecord binds a device fingerprint to the hash of its latest
// credential. The webauthn credential ID and public key are retained so age
// gates can run assertion ceremonies; no age or personal data is stored.
type DeviceRecord struct {
	Fingerprint    string // primary key, hex SHA-256 of the device public key
	CredentialHash string // hex SHA-256 of the serialized credential
	CredentialID   []byte
	PublicKey      []byte
	ExpiresAt      time.Time
}

// DeviceStore is the persistence interface for device records.
// Error Contract: FindByFingerprint returns sentinel.ErrNotFound (wrapped)
// when no record exists.
type DeviceStore interface {
	// Upsert stores the record, superseding any prior record for the same
	// fingerprint. At most one active record per fingerprint ever exists.
	Upsert(ctx context.Context, record *DeviceRecord) error

	FindByFingerprint(ctx context.Context, fingerprint string) (*DeviceRecord, error)

	// DeleteExpired garbage-collects records whose credential has expired.
	// Returns the number of removed records.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
