package credential

import (
	"context"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"agetoken/internal/attestation"
	"agetoken/internal/credential/store"
	"agetoken/internal/issuer"
	"agetoken/internal/platform/metrics"
	dErrors "agetoken/pkg/domain-errors"
)

// Minted is the result of a successful mint.
type Minted struct {
	// Token is the serialized signed credential handed to the end user.
	Token string
	// Claims are the exact claims embedded in the token.
	Claims AgeClaims
	// Fingerprint is the device fingerprint the credential is bound to.
	Fingerprint string
	// CredentialHash is hex(SHA-256(Token)), the revocation lookup key.
	CredentialHash string
	ExpiresAt      time.Time
}

// Minter builds and signs age credentials for verified device bindings. The
// age assertion itself is validated by an external KYC collaborator before
// minting is requested; the minter only binds the threshold to the device.
type Minter struct {
	keys     issuer.KeyProvider
	devices  store.DeviceStore
	ageOver  int
	validity time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

const defaultValidity = 365 * 24 * time.Hour

// MinterOption configures a Minter.
type MinterOption func(*Minter)

// WithLogger sets the mint logger.
func WithLogger(logger *slog.Logger) MinterOption {
	return func(m *Minter) { m.logger = logger }
}

// WithMetrics enables mint metrics.
func WithMetrics(mx *metrics.Metrics) MinterOption {
	return func(m *Minter) { m.metrics = mx }
}

// WithValidity sets the credential validity period. Non-positive values keep
// the 365-day default.
func WithValidity(d time.Duration) MinterOption {
	return func(m *Minter) {
		if d > 0 {
			m.validity = d
		}
	}
}

func withMintClock(now func() time.Time) MinterOption {
	return func(m *Minter) { m.now = now }
}

// NewMinter constructs a Minter signing with the provided key set.
func NewMinter(keys issuer.KeyProvider, devices store.DeviceStore, ageOver int, opts ...MinterOption) (*Minter, error) {
	if keys == nil || devices == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "minter requires a key provider and a device store")
	}
	if ageOver <= 0 {
		return nil, dErrors.New(dErrors.CodeConfiguration, "age threshold must be positive")
	}

	m := &Minter{
		keys:     keys,
		devices:  devices,
		ageOver:  ageOver,
		validity: defaultValidity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m, nil
}

// Mint signs a credential for a verified device binding and upserts the
// device record. A device re-registering receives a fresh credential whose
// record supersedes the prior one unconditionally (last writer wins); the
// superseded credential stays valid until expiry unless revoked.
func (m *Minter) Mint(ctx context.Context, binding *attestation.DeviceBinding) (*Minted, error) {
	if binding == nil || len(binding.PublicKey) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "device binding with a public key is required")
	}

	fingerprint := Fingerprint(binding.PublicKey)
	issuedAt := m.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(m.validity)

	claims := AgeClaims{
		AgeOver: m.ageOver,
		Device:  fingerprint,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	kid, key, err := m.keys.CurrentSigningKey()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "no signing key available")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = kid
	serialized, err := token.SignedString(key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not sign credential")
	}

	credentialHash := Hash(serialized)
	record := &store.DeviceRecord{
		Fingerprint:    fingerprint,
		CredentialHash: credentialHash,
		CredentialID:   binding.CredentialID,
		PublicKey:      binding.PublicKey,
		ExpiresAt:      expiresAt,
	}
	if err := m.devices.Upsert(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not persist device record")
	}

	m.metrics.IncrementCredentialsMinted()
	m.logger.InfoContext(ctx, "credential minted",
		"device", fingerprint,
		"kid", kid,
		"expires_at", expiresAt.Format(time.RFC3339),
	)

	return &Minted{
		Token:          serialized,
		Claims:         claims,
		Fingerprint:    fingerprint,
		CredentialHash: credentialHash,
		ExpiresAt:      expiresAt,
	}, nil
}
