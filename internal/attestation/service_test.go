package attestation

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "agetoken/pkg/domain-errors"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService(Config{
		RPID:          "age-token.io",
		RPDisplayName: "Age Token",
		RPOrigins:     []string{"https://age-token.io"},
	})
	require.NoError(t, err)
	return s
}

func TestNewService_RequiresRelyingParty(t *testing.T) {
	_, err := NewService(Config{})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))

	_, err = NewService(Config{RPID: "age-token.io"})
	require.Error(t, err)
}

func TestBeginRegistration_IssuesFreshChallenges(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	sess1, opts1, err := s.BeginRegistration(ctx)
	require.NoError(t, err)
	sess2, opts2, err := s.BeginRegistration(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, sess1, sess2)
	assert.NotEqual(t, opts1.Response.Challenge, opts2.Response.Challenge)
	assert.Equal(t, "age-token.io", opts1.Response.RelyingParty.ID)
}

func TestFinishRegistration_UnknownChallenge(t *testing.T) {
	s := newTestService(t)

	_, err := s.FinishRegistration(context.Background(), "no-such-session", []byte(`{}`))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAttestation))
	assert.Contains(t, err.Error(), ReasonChallengeUnknown)
}

func TestFinishRegistration_ChallengeIsSingleUse(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	sessionID, _, err := s.BeginRegistration(ctx)
	require.NoError(t, err)

	// First attempt consumes the challenge even though the body is garbage.
	_, err = s.FinishRegistration(ctx, sessionID, []byte(`not json`))
	require.Error(t, err)

	// Replaying the same session must fail as an unknown challenge.
	_, err = s.FinishRegistration(ctx, sessionID, []byte(`not json`))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAttestation))
	assert.Contains(t, err.Error(), ReasonChallengeUnknown)
}

func TestFinishRegistration_MalformedResponse(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	sessionID, _, err := s.BeginRegistration(ctx)
	require.NoError(t, err)

	_, err = s.FinishRegistration(ctx, sessionID, []byte(`{"id":"x"}`))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAttestation))
}

func TestFinishRegistration_ExpiredChallenge(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	sessionID, _, err := s.BeginRegistration(ctx)
	require.NoError(t, err)

	current := time.Now().Add(2 * time.Minute)
	s.challenges.now = func() time.Time { return current }

	_, err = s.FinishRegistration(ctx, sessionID, []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), ReasonChallengeUnknown)
}

func TestBeginAssertion_AllowsOnlyBoundCredential(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	credentialID := []byte("credential-id-1")
	sessionID, opts, err := s.BeginAssertion(ctx, credentialID, []byte("cose-public-key"))
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)

	require.Len(t, opts.Response.AllowedCredentials, 1)
	got := opts.Response.AllowedCredentials[0].CredentialID
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(credentialID),
		base64.RawURLEncoding.EncodeToString(got))
}

func TestFinishAssertion_UnknownChallenge(t *testing.T) {
	s := newTestService(t)

	err := s.FinishAssertion(context.Background(), "missing", []byte(`{}`))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAttestation))
}

func TestFinishAssertion_MalformedResponse(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	sessionID, _, err := s.BeginAssertion(ctx, []byte("cred"), []byte("key"))
	require.NoError(t, err)

	err = s.FinishAssertion(ctx, sessionID, []byte(`garbage`))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAttestation))
}
