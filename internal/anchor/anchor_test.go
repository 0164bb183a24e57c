package anchor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"agetoken/internal/issuer"
	"agetoken/internal/ledger/mocks"
	"agetoken/internal/revocation"
	dErrors "agetoken/pkg/domain-errors"
)

func newTestRunner(t *testing.T, bulletin *mocks.MockBulletin) (*Runner, *issuer.FileProvider, *revocation.Accumulator) {
	t.Helper()
	keys, err := issuer.NewFileProvider(filepath.Join(t.TempDir(), "issuer.jwk"))
	require.NoError(t, err)
	acc := revocation.New()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r, err := NewRunner(keys, acc, bulletin, WithLogger(logger))
	require.NoError(t, err)
	return r, keys, acc
}

func revokedHash(s string) string {
	d := sha256.Sum256([]byte(s))
	return hex.EncodeToString(d[:])
}

func TestRunOnce_EmptySetPublishesNoRoot(t *testing.T) {
	ctrl := gomock.NewController(t)
	bulletin := mocks.NewMockBulletin(ctrl)
	r, keys, _ := newTestRunner(t, bulletin)

	// Thumbprint is published on the first cycle, the root never is.
	bulletin.EXPECT().SetThumbprint(gomock.Any(), keys.Thumbprint()).Return("0xaaa", nil)

	require.NoError(t, r.RunOnce(context.Background()))
}

func TestRunOnce_SkipsWhenNothingChanged(t *testing.T) {
	ctrl := gomock.NewController(t)
	bulletin := mocks.NewMockBulletin(ctrl)
	r, keys, _ := newTestRunner(t, bulletin)

	bulletin.EXPECT().SetThumbprint(gomock.Any(), keys.Thumbprint()).Return("0xaaa", nil).Times(1)

	require.NoError(t, r.RunOnce(context.Background()))
	// Second cycle: nothing differs, no ledger writes at all.
	require.NoError(t, r.RunOnce(context.Background()))
}

func TestRunOnce_PublishesRootAfterRevocation(t *testing.T) {
	ctrl := gomock.NewController(t)
	bulletin := mocks.NewMockBulletin(ctrl)
	r, keys, acc := newTestRunner(t, bulletin)
	ctx := context.Background()

	bulletin.EXPECT().SetThumbprint(gomock.Any(), keys.Thumbprint()).Return("0xaaa", nil)
	require.NoError(t, r.RunOnce(ctx))

	_, err := acc.Revoke(ctx, revokedHash("cred-1"))
	require.NoError(t, err)

	bulletin.EXPECT().SetRevocationRoot(gomock.Any(), acc.CurrentRoot()).Return("0xbbb", nil)
	require.NoError(t, r.RunOnce(ctx))

	// Unchanged set: no further writes.
	require.NoError(t, r.RunOnce(ctx))
}

func TestRunOnce_RetriesFailedPublicationNextCycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	bulletin := mocks.NewMockBulletin(ctrl)
	r, keys, _ := newTestRunner(t, bulletin)
	ctx := context.Background()

	bulletin.EXPECT().SetThumbprint(gomock.Any(), keys.Thumbprint()).
		Return("", errors.New("nonce conflict"))

	err := r.RunOnce(ctx)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeLedgerUnavailable))

	// The failed value was not recorded as published, so the next cycle
	// retries the same commitment.
	bulletin.EXPECT().SetThumbprint(gomock.Any(), keys.Thumbprint()).Return("0xaaa", nil)
	require.NoError(t, r.RunOnce(ctx))
}

func TestRunOnce_IdempotentRevokeDoesNotRepublish(t *testing.T) {
	ctrl := gomock.NewController(t)
	bulletin := mocks.NewMockBulletin(ctrl)
	r, keys, acc := newTestRunner(t, bulletin)
	ctx := context.Background()

	hash := revokedHash("cred-1")
	_, err := acc.Revoke(ctx, hash)
	require.NoError(t, err)

	bulletin.EXPECT().SetThumbprint(gomock.Any(), keys.Thumbprint()).Return("0xaaa", nil)
	bulletin.EXPECT().SetRevocationRoot(gomock.Any(), acc.CurrentRoot()).Return("0xbbb", nil)
	require.NoError(t, r.RunOnce(ctx))

	// Revoking the same hash again leaves the root unchanged.
	_, err = acc.Revoke(ctx, hash)
	require.NoError(t, err)
	require.NoError(t, r.RunOnce(ctx))
}

func TestSeed_AdoptsPublishedState(t *testing.T) {
	ctrl := gomock.NewController(t)
	bulletin := mocks.NewMockBulletin(ctrl)
	r, keys, _ := newTestRunner(t, bulletin)
	ctx := context.Background()

	// Ledger already carries the current thumbprint and the empty root.
	bulletin.EXPECT().Thumbprint(gomock.Any()).Return(keys.Thumbprint(), nil)
	bulletin.EXPECT().RevocationRoot(gomock.Any()).Return(revocation.EmptyRoot, nil)
	r.seed(ctx)

	// Nothing differs, so the cycle performs zero writes.
	require.NoError(t, r.RunOnce(ctx))
}

func TestNewRunner_RequiresDeps(t *testing.T) {
	ctrl := gomock.NewController(t)
	bulletin := mocks.NewMockBulletin(ctrl)
	keys, err := issuer.NewFileProvider(filepath.Join(t.TempDir(), "issuer.jwk"))
	require.NoError(t, err)

	_, err = NewRunner(nil, revocation.New(), bulletin)
	require.Error(t, err)
	_, err = NewRunner(keys, nil, bulletin)
	require.Error(t, err)
	_, err = NewRunner(keys, revocation.New(), nil)
	require.Error(t, err)
}
