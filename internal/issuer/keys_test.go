package issuer

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "agetoken/pkg/domain-errors"
)

func TestNewFileProvider_GeneratesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issuer_ed25519.jwk")

	p, err := NewFileProvider(path)
	require.NoError(t, err)

	kid, priv, err := p.CurrentSigningKey()
	require.NoError(t, err)
	require.NotEmpty(t, kid)
	require.Len(t, priv, ed25519.PrivateKeySize)

	// File must exist with restricted permissions.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// Reloading must yield the same key and kid.
	p2, err := NewFileProvider(path)
	require.NoError(t, err)
	kid2, priv2, err := p2.CurrentSigningKey()
	require.NoError(t, err)
	assert.Equal(t, kid, kid2)
	assert.Equal(t, priv, priv2)
	assert.Equal(t, p.Thumbprint(), p2.Thumbprint())
}

func TestNewFileProvider_RejectsCorruptKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jwk")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileProvider(path)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
}

func TestNewFileProvider_RejectsWrongKeyType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rsa.jwk")
	require.NoError(t, os.WriteFile(path, []byte(`{"kty":"RSA","crv":"","x":""}`), 0o600))

	_, err := NewFileProvider(path)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
}

func TestComputeKid_MatchesRFC7638(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	kid, err := ComputeKid(pub)
	require.NoError(t, err)

	x := base64.RawURLEncoding.EncodeToString(pub)
	preimage := `{"crv":"Ed25519","kty":"OKP","x":"` + x + `"}`
	digest := sha256.Sum256([]byte(preimage))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(digest[:]), kid)
}

func TestPublicKey_UnknownKid(t *testing.T) {
	p, err := NewFileProvider(filepath.Join(t.TempDir(), "k.jwk"))
	require.NoError(t, err)

	_, err = p.PublicKey("nope")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeSignature))
}

func TestTrust_AddsRotatedKey(t *testing.T) {
	p, err := NewFileProvider(filepath.Join(t.TempDir(), "k.jwk"))
	require.NoError(t, err)

	oldPub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	require.NoError(t, p.Trust(oldPub))

	oldKid, err := ComputeKid(oldPub)
	require.NoError(t, err)
	got, err := p.PublicKey(oldKid)
	require.NoError(t, err)
	assert.Equal(t, oldPub, got)

	assert.Len(t, p.PublicJWKS().Keys, 2)
}

func TestPublicJWKS_OmitsPrivateComponent(t *testing.T) {
	p, err := NewFileProvider(filepath.Join(t.TempDir(), "k.jwk"))
	require.NoError(t, err)

	for _, k := range p.PublicJWKS().Keys {
		assert.Empty(t, k.D)
		assert.Equal(t, "OKP", k.Kty)
		assert.Equal(t, "EdDSA", k.Alg)
	}
}
