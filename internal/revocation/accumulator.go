// Package revocation maintains the append-only set of revoked credential
// hashes and the deterministic Merkle root published to the ledger.
package revocation

import (
	"context"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"agetoken/internal/platform/metrics"
	dErrors "agetoken/pkg/domain-errors"
)

// Entry records one revoked credential hash.
type Entry struct {
	CredentialHash string    `json:"credential_hash"`
	RevokedAt      time.Time `json:"revoked_at"`
}

// Accumulator is the in-memory revocation set. Inserts are serialized by a
// single-writer lock; reads work on snapshots so root computation never holds
// the lock while hashing.
type Accumulator struct {
	mu      sync.RWMutex
	entries map[string]time.Time // hex credential hash -> revoked at
	version uint64               // bumped on every insert

	rootMu      sync.Mutex
	cachedRoot  [32]byte
	rootVersion uint64
	rootValid   bool

	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithLogger sets the logger used for revocation events.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Accumulator) { a.logger = logger }
}

// WithMetrics enables revocation metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Accumulator) { a.metrics = m }
}

func withClock(now func() time.Time) Option {
	return func(a *Accumulator) { a.now = now }
}

// New constructs an empty accumulator.
func New(opts ...Option) *Accumulator {
	a := &Accumulator{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Revoke inserts a credential hash into the set. Inserting a hash that is
// already present is a no-op, not an error; revocation is never reversible
// here. Returns true when the set changed.
func (a *Accumulator) Revoke(ctx context.Context, credentialHash string) (bool, error) {
	if _, err := decodeHash(credentialHash); err != nil {
		return false, err
	}

	a.mu.Lock()
	if _, exists := a.entries[credentialHash]; exists {
		a.mu.Unlock()
		return false, nil
	}
	a.entries[credentialHash] = a.now().UTC()
	a.version++
	size := len(a.entries)
	a.mu.Unlock()

	a.metrics.IncrementRevocations()
	a.metrics.SetRevokedSetSize(size)
	a.logger.InfoContext(ctx, "credential revoked",
		"credential_hash", credentialHash,
		"total_revoked", size,
	)
	return true, nil
}

// IsRevoked reports membership and the revocation time for a credential hash.
func (a *Accumulator) IsRevoked(credentialHash string) (bool, time.Time) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	at, ok := a.entries[credentialHash]
	return ok, at
}

// Len returns the number of revoked credential hashes.
func (a *Accumulator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

// Entries returns a snapshot of all revocation entries.
func (a *Accumulator) Entries() []Entry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Entry, 0, len(a.entries))
	for hash, at := range a.entries {
		out = append(out, Entry{CredentialHash: hash, RevokedAt: at})
	}
	return out
}

// CurrentRoot computes the Merkle root over the current set. The result is
// cached per set version; recomputation happens outside the writer lock on a
// consistent snapshot, so concurrent revokes never produce a torn root.
func (a *Accumulator) CurrentRoot() [32]byte {
	digests, version := a.snapshot()

	a.rootMu.Lock()
	defer a.rootMu.Unlock()
	if a.rootValid && a.rootVersion == version {
		return a.cachedRoot
	}

	root := merkleRoot(digests)

	// Only cache when the set did not move under us.
	a.mu.RLock()
	current := a.version
	a.mu.RUnlock()
	if current == version {
		a.cachedRoot = root
		a.rootVersion = version
		a.rootValid = true
	}
	return root
}

// Proof returns a Merkle membership proof for a revoked credential hash along
// with the root it validates against. Non-members get sentinel.ErrNotFound
// wrapped in a domain error.
func (a *Accumulator) Proof(credentialHash string) ([]ProofStep, [32]byte, error) {
	target, err := decodeHash(credentialHash)
	if err != nil {
		return nil, EmptyRoot, err
	}

	digests, _ := a.snapshot()
	proof := merkleProof(digests, target)
	if proof == nil {
		if revoked, _ := a.IsRevoked(credentialHash); !revoked {
			return nil, EmptyRoot, dErrors.New(dErrors.CodeNotFound, "credential hash is not revoked")
		}
	}
	return proof, merkleRoot(digests), nil
}

func (a *Accumulator) snapshot() ([][32]byte, uint64) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	digests := make([][32]byte, 0, len(a.entries))
	for hash := range a.entries {
		d, _ := decodeHash(hash) // validated on insert
		digests = append(digests, d)
	}
	return digests, a.version
}

func decodeHash(credentialHash string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(credentialHash)
	if err != nil || len(raw) != 32 {
		return out, dErrors.New(dErrors.CodeInvalidInput, "credential hash must be a 64-character hex digest")
	}
	copy(out[:], raw)
	return out, nil
}
