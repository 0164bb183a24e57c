package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures the full service configuration sourced from the environment.
type Server struct {
	Addr        string
	Environment string

	// Relying-party identity for device attestation (origin binding).
	RPID          string
	RPDisplayName string
	RPOrigins     []string

	// Issuer signing key material.
	IssuerKeyFile string

	// Credential policy.
	AgeOver       int
	TokenValidity time.Duration

	// Attestation ceremony policy. Assertion challenges are deliberately
	// short-lived to bound the replay window.
	RegistrationChallengeTTL time.Duration
	AssertionChallengeTTL    time.Duration

	// Ledger anchor.
	ChainRPCURL      string
	ChainID          int64
	BulletinAddress  string
	LedgerPrivateKey string
	AnchorInterval   time.Duration
	AnchorTimeout    time.Duration

	// Admin surface (revoke, verifier onboarding).
	AdminToken string
}

const (
	defaultTokenValidity   = 365 * 24 * time.Hour
	defaultRegistrationTTL = 60 * time.Second
	defaultAssertionTTL    = 15 * time.Second
	defaultAnchorInterval  = time.Minute
	defaultAnchorTimeout   = 30 * time.Second
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:                     envOr("AGETOKEN_ADDR", ":8080"),
		Environment:              envOr("AGETOKEN_ENV", "dev"),
		RPID:                     envOr("RP_ID", "localhost"),
		RPDisplayName:            envOr("RP_DISPLAY_NAME", "Age Token"),
		IssuerKeyFile:            envOr("ISSUER_KEY_FILE", "issuer_ed25519.jwk"),
		AgeOver:                  envIntOr("AGE_OVER", 18),
		TokenValidity:            envDurationOr("TOKEN_VALIDITY", defaultTokenValidity),
		RegistrationChallengeTTL: envDurationOr("REGISTRATION_CHALLENGE_TTL", defaultRegistrationTTL),
		AssertionChallengeTTL:    envDurationOr("ASSERTION_CHALLENGE_TTL", defaultAssertionTTL),
		ChainRPCURL:              os.Getenv("CHAIN_RPC_URL"),
		ChainID:                  int64(envIntOr("CHAIN_ID", 1)),
		BulletinAddress:          os.Getenv("BULLETIN_ADDRESS"),
		LedgerPrivateKey:         os.Getenv("LEDGER_PRIVATE_KEY"),
		AnchorInterval:           envDurationOr("ANCHOR_INTERVAL", defaultAnchorInterval),
		AnchorTimeout:            envDurationOr("ANCHOR_TIMEOUT", defaultAnchorTimeout),
		AdminToken:               os.Getenv("ADMIN_TOKEN"),
	}

	origins := os.Getenv("RP_ORIGINS")
	if origins == "" {
		origins = "http://localhost:8080"
	}
	for _, origin := range strings.Split(origins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.RPOrigins = append(cfg.RPOrigins, origin)
		}
	}

	return cfg
}

// LedgerConfigured reports whether enough configuration is present to talk to
// the bulletin contract. The anchor job and the trust-minimization check are
// disabled without it; issuance and local verification do not need the ledger.
func (s Server) LedgerConfigured() bool {
	return s.ChainRPCURL != "" && s.BulletinAddress != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
