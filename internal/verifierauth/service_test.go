package verifierauth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "agetoken/pkg/domain-errors"
)

func newTestService(t *testing.T) (*Service, *InMemoryStore) {
	t.Helper()
	store := NewInMemoryStore()
	svc, err := NewService(store, withClock(func() time.Time {
		return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	}))
	require.NoError(t, err)
	return svc, store
}

func TestIssueProducesUsableKey(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	creds, err := svc.Issue(ctx, "example-age-gate")
	require.NoError(t, err)
	assert.NotEmpty(t, creds.ID)
	assert.True(t, strings.HasPrefix(creds.APIKey, creds.ID+"."))

	stored, err := store.FindByID(ctx, creds.ID)
	require.NoError(t, err)
	assert.Equal(t, "example-age-gate", stored.Name)
	assert.NotContains(t, stored.KeyHash, strings.TrimPrefix(creds.APIKey, creds.ID+"."),
		"plaintext secret must not be stored")

	verifier, err := svc.Authenticate(ctx, creds.APIKey)
	require.NoError(t, err)
	assert.Equal(t, creds.ID, verifier.ID)
}

func TestIssueRejectsBlankName(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Issue(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeValidation, dErrors.CodeOf(err))
}

func TestAuthenticateRejectsWrongSecret(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	creds, err := svc.Issue(ctx, "example-age-gate")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, creds.ID+".not-the-secret")
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))
}

func TestAuthenticateRejectsUnknownVerifier(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Authenticate(context.Background(), "no-such-id.secret")
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))
}

func TestAuthenticateRejectsMalformedKey(t *testing.T) {
	svc, _ := newTestService(t)

	for _, key := range []string{"", "no-dot", ".secret-only", "id-only."} {
		_, err := svc.Authenticate(context.Background(), key)
		require.Error(t, err, "key %q", key)
		assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))
	}
}

func TestAuthenticateKeyReturnsVerifierID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	creds, err := svc.Issue(ctx, "example-age-gate")
	require.NoError(t, err)

	id, err := svc.AuthenticateKey(ctx, creds.APIKey)
	require.NoError(t, err)
	assert.Equal(t, creds.ID, id)
}
