package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agetoken/internal/platform/health"
	"agetoken/internal/platform/metrics"
	"agetoken/internal/platform/middleware"
)

// NewRouter wires all endpoints with middleware. The verification endpoint is
// API-key guarded; revocation and verifier onboarding require the admin token.
func NewRouter(
	h *Handler,
	authenticator middleware.KeyAuthenticator,
	adminToken string,
	healthHandler *health.Handler,
	mx *metrics.Metrics,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Instrument(mx))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	healthHandler.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	// Device registration and credential issuance.
	r.Post("/webauthn/register/options", h.HandleRegistrationOptions)
	r.Post("/webauthn/register", h.HandleFinishRegistration)
	r.Post("/webauthn/assert/options", h.HandleAssertionOptions)
	r.Post("/webauthn/assert", h.HandleFinishAssertion)

	// Public verification material.
	r.Get("/issuer_jwks.json", h.HandleIssuerJWKS)
	r.Get("/revocation/{credential_hash}", h.HandleRevocationStatus)

	// Verifier surface.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAPIKey(authenticator, logger))
		r.Post("/verify-token", h.HandleVerifyToken)
	})

	// Admin surface.
	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminToken(adminToken))
		r.Post("/admin/revoke", h.HandleRevoke)
		r.Post("/admin/verifiers", h.HandleOnboardVerifier)
	})

	return r
}
