// Package attestation verifies device-binding ceremonies: a registration
// ceremony that yields the device's durable public key, and an assertion
// ceremony proving continued possession of a previously bound key.
package attestation

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"agetoken/internal/platform/metrics"
	dErrors "agetoken/pkg/domain-errors"
)

// Reason codes carried in attestation error messages and metrics labels.
const (
	ReasonChallengeUnknown = "challenge_unknown" // never issued, already used, or expired
	ReasonMalformed        = "malformed_response"
	ReasonVerification     = "verification_failed" // origin/RP mismatch, bad signature, unsupported algorithm
)

// DeviceBinding is the verified output of a registration ceremony.
type DeviceBinding struct {
	// CredentialID identifies the authenticator credential.
	CredentialID []byte
	// PublicKey is the device's durable public key (COSE encoding). Its
	// SHA-256 digest becomes the device fingerprint.
	PublicKey []byte
	// SignCount is the authenticator's counter at registration time.
	SignCount uint32
}

// Config carries the relying-party identity the ceremonies are bound to.
type Config struct {
	RPID            string
	RPDisplayName   string
	RPOrigins       []string
	RegistrationTTL time.Duration
	AssertionTTL    time.Duration
}

const (
	defaultRegistrationTTL = 60 * time.Second
	// Assertion challenges stay short-lived to bound the replay window.
	defaultAssertionTTL = 15 * time.Second
)

// Service verifies registration and assertion ceremonies. It keeps no state
// beyond pending challenges; persisting verified keys is the caller's job.
type Service struct {
	web             *webauthn.WebAuthn
	challenges      *ChallengeStore
	registrationTTL time.Duration
	assertionTTL    time.Duration
	logger          *slog.Logger
	metrics         *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the ceremony logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics enables attestation metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService builds the verifier for the configured relying-party identity.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	if cfg.RPID == "" || len(cfg.RPOrigins) == 0 {
		return nil, dErrors.New(dErrors.CodeConfiguration, "relying-party id and origins are required")
	}
	if cfg.RegistrationTTL <= 0 {
		cfg.RegistrationTTL = defaultRegistrationTTL
	}
	if cfg.AssertionTTL <= 0 {
		cfg.AssertionTTL = defaultAssertionTTL
	}

	web, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.RPDisplayName,
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
		Timeouts: webauthn.TimeoutsConfig{
			Registration: webauthn.TimeoutConfig{Enforce: true, Timeout: cfg.RegistrationTTL},
			Login:        webauthn.TimeoutConfig{Enforce: true, Timeout: cfg.AssertionTTL},
		},
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "invalid webauthn configuration")
	}

	s := &Service{
		web:             web,
		challenges:      NewChallengeStore(),
		registrationTTL: cfg.RegistrationTTL,
		assertionTTL:    cfg.AssertionTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Close stops the challenge sweep loop.
func (s *Service) Close() {
	s.challenges.Close()
}

// BeginRegistration issues a single-use registration challenge. The returned
// session ID keys the pending ceremony and must accompany the finish call.
func (s *Service) BeginRegistration(ctx context.Context) (string, *protocol.CredentialCreation, error) {
	user := ceremonyUser{id: []byte(uuid.New().String())}

	options, session, err := s.web.BeginRegistration(user)
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not create registration challenge")
	}

	sessionID := uuid.New().String()
	s.challenges.Put(sessionID, *session, user, s.registrationTTL)

	s.logger.DebugContext(ctx, "registration challenge issued", "session_id", sessionID)
	return sessionID, options, nil
}

// FinishRegistration validates an attestation response against its pending
// challenge and returns the verified device binding. All failure modes
// (unknown or replayed challenge, origin mismatch, malformed attestation,
// unsupported algorithm) surface as a single attestation error with a reason;
// there is no partial success and no side effect.
func (s *Service) FinishRegistration(ctx context.Context, sessionID string, response []byte) (*DeviceBinding, error) {
	c, ok := s.challenges.Consume(sessionID)
	if !ok {
		return nil, s.failure(ctx, ReasonChallengeUnknown, "registration challenge is unknown, used, or expired", nil)
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(response))
	if err != nil {
		return nil, s.failure(ctx, ReasonMalformed, "could not parse attestation response", err)
	}

	cred, err := s.web.CreateCredential(c.user, c.session, parsed)
	if err != nil {
		return nil, s.failure(ctx, ReasonVerification, "attestation verification failed", err)
	}

	return &DeviceBinding{
		CredentialID: cred.ID,
		PublicKey:    cred.PublicKey,
		SignCount:    cred.Authenticator.SignCount,
	}, nil
}

// BeginAssertion issues a single-use, time-boxed assertion challenge for a
// previously bound device key.
func (s *Service) BeginAssertion(ctx context.Context, credentialID, publicKey []byte) (string, *protocol.CredentialAssertion, error) {
	user := ceremonyUser{
		id: []byte(uuid.New().String()),
		credentials: []webauthn.Credential{{
			ID:        credentialID,
			PublicKey: publicKey,
		}},
	}

	options, session, err := s.web.BeginLogin(user)
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not create assertion challenge")
	}

	sessionID := uuid.New().String()
	s.challenges.Put(sessionID, *session, user, s.assertionTTL)

	s.logger.DebugContext(ctx, "assertion challenge issued", "session_id", sessionID)
	return sessionID, options, nil
}

// FinishAssertion verifies a device-signed assertion, proving the caller
// still possesses the bound private key. Pass/fail only.
func (s *Service) FinishAssertion(ctx context.Context, sessionID string, response []byte) error {
	c, ok := s.challenges.Consume(sessionID)
	if !ok {
		return s.failure(ctx, ReasonChallengeUnknown, "assertion challenge is unknown, used, or expired", nil)
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(response))
	if err != nil {
		return s.failure(ctx, ReasonMalformed, "could not parse assertion response", err)
	}

	if _, err := s.web.ValidateLogin(c.user, c.session, parsed); err != nil {
		return s.failure(ctx, ReasonVerification, "assertion verification failed", err)
	}
	return nil
}

// failure logs, counts, and wraps a ceremony failure. Device keys and raw
// responses never reach the log or the returned error.
func (s *Service) failure(ctx context.Context, reason, msg string, err error) error {
	s.metrics.IncrementAttestationFailures(reason)

	attrs := []any{"reason", reason}
	var protoErr *protocol.Error
	if errors.As(err, &protoErr) && protoErr.Details != "" {
		attrs = append(attrs, "details", protoErr.Details)
	}
	s.logger.WarnContext(ctx, "attestation failed", attrs...)

	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeAttestation, msg+" ("+reason+")")
	}
	return dErrors.New(dErrors.CodeAttestation, msg+" ("+reason+")")
}
