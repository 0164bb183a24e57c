// Package verify validates presented credentials: signature, expiry,
// revocation, optional ledger cross-check, and optional device re-binding, in
// that order, stopping at the first failing gate.
package verify

import (
	"context"
	"crypto/ed25519"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"agetoken/contracts/bulletin"
	"agetoken/internal/credential"
	"agetoken/internal/ledger"
	"agetoken/internal/platform/metrics"
	dErrors "agetoken/pkg/domain-errors"
)

// KeySet is the read-only view of the issuer key material the verifier needs.
type KeySet interface {
	PublicKey(kid string) (ed25519.PublicKey, error)
	Thumbprint() [32]byte
}

// RevocationChecker is the read-only view of the revocation accumulator.
type RevocationChecker interface {
	IsRevoked(credentialHash string) (bool, time.Time)
	CurrentRoot() [32]byte
}

// DeviceAsserter completes a pending device assertion ceremony. Implemented
// by the attestation service.
type DeviceAsserter interface {
	FinishAssertion(ctx context.Context, sessionID string, response []byte) error
}

// Options selects the optional gates for one verification.
type Options struct {
	// CheckLedger cross-checks the issuer commitment and revocation root
	// against the ledger. Mismatches become warnings, not rejections, since
	// ledger confirmation lags; an unreachable ledger degrades to local
	// checks only.
	CheckLedger bool

	// AssertionSessionID and AssertionResponse carry a fresh device
	// assertion proving possession of the originally bound key, defeating
	// credential copying across devices. Both empty skips the gate.
	AssertionSessionID string
	AssertionResponse  []byte
}

// Result is returned for an accepted credential.
type Result struct {
	Claims         credential.AgeClaims
	CredentialHash string
	// Warnings carries non-fatal trust-minimization findings.
	Warnings []string
	// LedgerDegraded is set when the ledger could not be reached and the
	// cross-check fell back to local state only.
	LedgerDegraded bool
}

// Warning values surfaced in Result.Warnings.
const (
	WarnThumbprintMismatch = "ledger thumbprint does not match local issuer key"
	WarnRootMismatch       = "ledger revocation root does not match local accumulator"
	WarnLedgerUnreachable  = "ledger unreachable, verified with local state only"
)

// Service verifies credentials. It is stateless and safe for concurrent use;
// all its dependencies are read-only views.
type Service struct {
	keys          KeySet
	revocations   RevocationChecker
	bulletinRead  ledger.Bulletin // nil disables the ledger gate
	asserter      DeviceAsserter  // nil disables the re-binding gate
	ledgerTimeout time.Duration
	logger        *slog.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer

	// group coalesces concurrent ledger reads into a single call.
	group singleflight.Group
}

const defaultLedgerTimeout = 5 * time.Second

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the verification logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics enables verification metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithBulletin enables the trust-minimization gate against the ledger.
func WithBulletin(b ledger.Bulletin) Option {
	return func(s *Service) { s.bulletinRead = b }
}

// WithDeviceAsserter enables the device re-binding gate.
func WithDeviceAsserter(a DeviceAsserter) Option {
	return func(s *Service) { s.asserter = a }
}

// WithLedgerTimeout bounds the ledger read inside a verification.
func WithLedgerTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ledgerTimeout = d
		}
	}
}

// NewService constructs a verification service.
func NewService(keys KeySet, revocations RevocationChecker, opts ...Option) (*Service, error) {
	if keys == nil || revocations == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "verifier requires a key set and a revocation checker")
	}
	s := &Service{
		keys:          keys,
		revocations:   revocations,
		ledgerTimeout: defaultLedgerTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("agetoken/verify")
	}
	return s, nil
}

// Verify runs the gate sequence over a serialized credential. The first
// failing gate rejects with its specific reason code and no further gates run.
func (s *Service) Verify(ctx context.Context, token string, opts Options) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "verify.credential")
	defer span.End()

	// Gate 1+2: parse, signature against the kid-named key, then expiry.
	// jwt verifies the signature before validating claims, so an expiry
	// error implies the signature was good.
	claims, err := s.parseAndCheck(token)
	if err != nil {
		code := dErrors.CodeOf(err)
		span.SetAttributes(attribute.String("verify.reject", string(code)))
		s.metrics.IncrementVerifications(string(code))
		return nil, err
	}

	// Gate 3: local revocation membership check.
	credentialHash := credential.Hash(token)
	if revoked, at := s.revocations.IsRevoked(credentialHash); revoked {
		span.SetAttributes(attribute.String("verify.reject", string(dErrors.CodeRevoked)))
		s.metrics.IncrementVerifications(string(dErrors.CodeRevoked))
		s.logger.InfoContext(ctx, "rejected revoked credential",
			"credential_hash", credentialHash,
			"revoked_at", at.Format(time.RFC3339),
		)
		return nil, dErrors.New(dErrors.CodeRevoked, "credential has been revoked")
	}

	result := &Result{Claims: *claims, CredentialHash: credentialHash}

	// Gate 4 (optional): cross-check commitments against the ledger.
	if opts.CheckLedger && s.bulletinRead != nil {
		s.checkLedger(ctx, result)
	}

	// Gate 5 (optional): device re-binding assertion.
	if s.asserter != nil && opts.AssertionSessionID != "" {
		if err := s.asserter.FinishAssertion(ctx, opts.AssertionSessionID, opts.AssertionResponse); err != nil {
			span.SetAttributes(attribute.String("verify.reject", string(dErrors.CodeAttestation)))
			s.metrics.IncrementVerifications(string(dErrors.CodeAttestation))
			return nil, err
		}
	}

	span.SetAttributes(
		attribute.String("verify.result", "accepted"),
		attribute.Bool("verify.ledger_degraded", result.LedgerDegraded),
	)
	s.metrics.IncrementVerifications("accepted")
	return result, nil
}

func (s *Service) parseAndCheck(token string) (*credential.AgeClaims, error) {
	var claims credential.AgeClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, dErrors.New(dErrors.CodeSignature, "credential names no key id")
		}
		return s.keys.PublicKey(kid)
	}, jwt.WithValidMethods([]string{"EdDSA"}))

	switch {
	case err == nil:
		if claims.Device == "" || claims.AgeOver <= 0 {
			return nil, dErrors.New(dErrors.CodeSignature, "credential claims are incomplete")
		}
		if claims.ExpiresAt == nil || claims.IssuedAt == nil {
			return nil, dErrors.New(dErrors.CodeSignature, "credential lacks issuance or expiry time")
		}
		return &claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, dErrors.Wrap(err, dErrors.CodeExpired, "credential has expired")
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeSignature, "credential signature is invalid")
	}
}

// checkLedger compares the published commitment with local state. Concurrent
// verifications share one ledger read through singleflight.
func (s *Service) checkLedger(ctx context.Context, result *Result) {
	v, err, _ := s.group.Do("bulletin", func() (any, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.ledgerTimeout)
		defer cancel()

		thumbprint, err := s.bulletinRead.Thumbprint(cctx)
		if err != nil {
			return nil, err
		}
		root, err := s.bulletinRead.RevocationRoot(cctx)
		if err != nil {
			return nil, err
		}
		return bulletin.Commitment{IssuerThumbprint: thumbprint, RevocationRoot: root}, nil
	})
	if err != nil {
		result.LedgerDegraded = true
		result.Warnings = append(result.Warnings, WarnLedgerUnreachable)
		s.logger.WarnContext(ctx, "ledger unreachable during verification", "error", err)
		return
	}

	commitment := v.(bulletin.Commitment)
	if commitment.IssuerThumbprint != s.keys.Thumbprint() {
		result.Warnings = append(result.Warnings, WarnThumbprintMismatch)
	}
	localRoot := s.revocations.CurrentRoot()
	if commitment.RevocationRoot != localRoot {
		// Expected while the anchor lags behind a recent revoke; callers
		// treat it as lower severity than a rejection.
		result.Warnings = append(result.Warnings, WarnRootMismatch)
	}
}
