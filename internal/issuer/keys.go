// Package issuer manages the issuer's Ed25519 signing key. The key is exposed
// through a narrow provider interface so the minter, verifier, and ledger
// anchor never touch key files directly.
package issuer

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	dErrors "agetoken/pkg/domain-errors"
)

// KeyProvider supplies the issuer's current signing key and its public
// commitments. Implementations must be safe for concurrent use.
type KeyProvider interface {
	// CurrentSigningKey returns the active key id and private key.
	CurrentSigningKey() (kid string, key ed25519.PrivateKey, err error)

	// PublicKey returns the public key for a key id the issuer trusts.
	PublicKey(kid string) (ed25519.PublicKey, error)

	// PublicJWKS returns the published key set for external verifiers.
	PublicJWKS() JWKS

	// Thumbprint returns the 32-byte digest of the current public key that is
	// anchored to the ledger.
	Thumbprint() [32]byte
}

// JWK is a JSON Web Key restricted to the OKP/Ed25519 shape this issuer uses.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	D   string `json:"d,omitempty"`
	Kid string `json:"kid,omitempty"`
	Alg string `json:"alg,omitempty"`
	Use string `json:"use,omitempty"`
}

// JWKS is the public key set served at /issuer_jwks.json.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// FileProvider loads the issuer key from a JWK file, generating and persisting
// a fresh Ed25519 key on first startup. The kid is the RFC 7638 thumbprint of
// the public key, so verifiers can always locate the right key in the
// published set. Multiple concurrently trusted kids are supported via Trust.
type FileProvider struct {
	kid     string
	private ed25519.PrivateKey
	public  ed25519.PublicKey
	trusted map[string]ed25519.PublicKey
}

// NewFileProvider loads or creates the issuer key at path. Errors are fatal
// configuration errors; callers should not start serving without a key.
func NewFileProvider(path string) (*FileProvider, error) {
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		return fromJWKBytes(raw)
	case os.IsNotExist(err):
		return generateAndPersist(path)
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "could not read issuer key file")
	}
}

func generateAndPersist(path string) (*FileProvider, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "could not generate issuer key")
	}

	p, err := newProvider(pub, priv)
	if err != nil {
		return nil, err
	}

	jwk := JWK{
		Kty: "OKP",
		Crv: "Ed25519",
		X:   base64.RawURLEncoding.EncodeToString(pub),
		D:   base64.RawURLEncoding.EncodeToString(priv.Seed()),
		Kid: p.kid,
	}
	raw, err := json.Marshal(jwk)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "could not encode issuer key")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "could not create key directory")
		}
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "could not persist issuer key")
	}
	return p, nil
}

func fromJWKBytes(raw []byte) (*FileProvider, error) {
	var jwk JWK
	if err := json.Unmarshal(raw, &jwk); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "issuer key file is not valid JWK JSON")
	}
	if jwk.Kty != "OKP" || jwk.Crv != "Ed25519" {
		return nil, dErrors.New(dErrors.CodeConfiguration, fmt.Sprintf("unsupported issuer key type %s/%s", jwk.Kty, jwk.Crv))
	}
	seed, err := base64.RawURLEncoding.DecodeString(jwk.D)
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, dErrors.New(dErrors.CodeConfiguration, "issuer key file has invalid private component")
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return newProvider(priv.Public().(ed25519.PublicKey), priv)
}

func newProvider(pub ed25519.PublicKey, priv ed25519.PrivateKey) (*FileProvider, error) {
	kid, err := ComputeKid(pub)
	if err != nil {
		return nil, err
	}
	return &FileProvider{
		kid:     kid,
		private: priv,
		public:  pub,
		trusted: map[string]ed25519.PublicKey{kid: pub},
	}, nil
}

// ComputeKid derives the RFC 7638 JWK thumbprint of an Ed25519 public key:
// base64url(SHA-256 of the canonical {"crv","kty","x"} JSON).
func ComputeKid(pub ed25519.PublicKey) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", dErrors.New(dErrors.CodeConfiguration, "invalid Ed25519 public key length")
	}
	digest := sha256.Sum256(canonicalPublicJWK(pub))
	return base64.RawURLEncoding.EncodeToString(digest[:]), nil
}

// canonicalPublicJWK renders the RFC 7638 thumbprint preimage: required
// members only, lexicographic order, no whitespace.
func canonicalPublicJWK(pub ed25519.PublicKey) []byte {
	x := base64.RawURLEncoding.EncodeToString(pub)
	return []byte(`{"crv":"Ed25519","kty":"OKP","x":"` + x + `"}`)
}

// CurrentSigningKey implements KeyProvider.
func (p *FileProvider) CurrentSigningKey() (string, ed25519.PrivateKey, error) {
	return p.kid, p.private, nil
}

// PublicKey implements KeyProvider. Unknown kids are signature errors, not
// configuration errors: the credential names a key this issuer never trusted.
func (p *FileProvider) PublicKey(kid string) (ed25519.PublicKey, error) {
	if pub, ok := p.trusted[kid]; ok {
		return pub, nil
	}
	return nil, dErrors.New(dErrors.CodeSignature, "unknown key id")
}

// Trust adds an additional public key to the trusted set. Used when rotating
// keys: the previous public key stays valid for already-issued credentials.
func (p *FileProvider) Trust(pub ed25519.PublicKey) error {
	kid, err := ComputeKid(pub)
	if err != nil {
		return err
	}
	p.trusted[kid] = pub
	return nil
}

// PublicJWKS implements KeyProvider.
func (p *FileProvider) PublicJWKS() JWKS {
	keys := make([]JWK, 0, len(p.trusted))
	for kid, pub := range p.trusted {
		keys = append(keys, JWK{
			Kty: "OKP",
			Crv: "Ed25519",
			X:   base64.RawURLEncoding.EncodeToString(pub),
			Kid: kid,
			Alg: "EdDSA",
			Use: "sig",
		})
	}
	return JWKS{Keys: keys}
}

// Thumbprint implements KeyProvider. The digest is computed over the same
// canonical public JWK JSON as the kid, so ledger auditors can reproduce it
// from the published key set alone.
func (p *FileProvider) Thumbprint() [32]byte {
	return sha256.Sum256(canonicalPublicJWK(p.public))
}
