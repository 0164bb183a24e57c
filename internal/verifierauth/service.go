package verifierauth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"agetoken/internal/sentinel"
	dErrors "agetoken/pkg/domain-errors"
	"agetoken/pkg/secrets"
)

// Credentials is returned once at onboarding. The APIKey is never stored or
// shown again.
type Credentials struct {
	ID     string
	Name   string
	APIKey string
}

// Service issues and authenticates verifier API keys. Keys have the form
// "<verifier id>.<secret>" so authentication costs a single bcrypt compare.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func withClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs a verifier auth service.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "verifier auth requires a store")
	}
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Issue onboards a named verifier and returns its one-time credentials.
func (s *Service) Issue(ctx context.Context, name string) (*Credentials, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "verifier name is required")
	}

	secret, err := secrets.Generate()
	if err != nil {
		return nil, err
	}
	hash, err := secrets.Hash(secret)
	if err != nil {
		return nil, err
	}

	verifier := &Verifier{
		ID:        uuid.NewString(),
		Name:      name,
		KeyHash:   hash,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Create(ctx, verifier); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not store verifier")
	}

	s.logger.InfoContext(ctx, "onboarded verifier", "verifier_id", verifier.ID, "name", name)
	return &Credentials{
		ID:     verifier.ID,
		Name:   name,
		APIKey: verifier.ID + "." + secret,
	}, nil
}

// Authenticate checks an API key and returns the verifier it belongs to.
// Unknown ids and wrong secrets are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, apiKey string) (*Verifier, error) {
	id, secret, ok := strings.Cut(apiKey, ".")
	if !ok || id == "" || secret == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid API key")
	}

	verifier, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid API key")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load verifier")
	}

	if err := secrets.Verify(secret, verifier.KeyHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid API key")
		}
		return nil, err
	}
	return verifier, nil
}

// AuthenticateKey implements the transport middleware's authenticator
// interface.
func (s *Service) AuthenticateKey(ctx context.Context, apiKey string) (string, error) {
	verifier, err := s.Authenticate(ctx, apiKey)
	if err != nil {
		return "", err
	}
	return verifier.ID, nil
}
