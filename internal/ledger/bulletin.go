// Package ledger talks to the AgeTokenBulletin contract. The Bulletin
// interface is the only thing the anchor and verifier depend on, so tests run
// against mocks and the chain client stays swappable.
package ledger

import "context"

//go:generate mockgen -source=bulletin.go -destination=mocks/bulletin_mock.go -package=mocks Bulletin

// Bulletin exposes the two commitments the issuer publishes. Reads are public;
// writes require the issuer's ledger key and are only called by the anchor.
type Bulletin interface {
	// Thumbprint reads the currently published issuer key digest.
	Thumbprint(ctx context.Context) ([32]byte, error)

	// RevocationRoot reads the currently published revocation Merkle root.
	RevocationRoot(ctx context.Context) ([32]byte, error)

	// SetThumbprint publishes a new issuer key digest. Returns the
	// transaction hash for logging; confirmation is not awaited.
	SetThumbprint(ctx context.Context, thumbprint [32]byte) (string, error)

	// SetRevocationRoot publishes a new revocation root. Returns the
	// transaction hash for logging; confirmation is not awaited.
	SetRevocationRoot(ctx context.Context, root [32]byte) (string, error)
}
