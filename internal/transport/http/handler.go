// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services and never embed business logic, so transport concerns stay
// isolated.
package httptransport

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/mssola/useragent"

	"agetoken/internal/attestation"
	"agetoken/internal/credential"
	"agetoken/internal/credential/store"
	"agetoken/internal/issuer"
	"agetoken/internal/platform/middleware"
	"agetoken/internal/revocation"
	httpjson "agetoken/internal/transport/http/json"
	"agetoken/internal/transport/http/shared"
	"agetoken/internal/verifierauth"
	"agetoken/internal/verify"
	dErrors "agetoken/pkg/domain-errors"
)

// CookieName is the cookie carrying the minted credential.
const CookieName = "AgeToken"

// DeviceCeremonies runs webauthn registration and assertion ceremonies.
// Implemented by the attestation service.
type DeviceCeremonies interface {
	BeginRegistration(ctx context.Context) (string, *protocol.CredentialCreation, error)
	FinishRegistration(ctx context.Context, sessionID string, response []byte) (*attestation.DeviceBinding, error)
	BeginAssertion(ctx context.Context, credentialID, publicKey []byte) (string, *protocol.CredentialAssertion, error)
	FinishAssertion(ctx context.Context, sessionID string, response []byte) error
}

// Minter issues credentials for verified device bindings.
type Minter interface {
	Mint(ctx context.Context, binding *attestation.DeviceBinding) (*credential.Minted, error)
}

// Verifier runs the credential verification gates.
type Verifier interface {
	Verify(ctx context.Context, token string, opts verify.Options) (*verify.Result, error)
}

// Revoker is the revocation accumulator surface the handlers need.
type Revoker interface {
	Revoke(ctx context.Context, credentialHash string) (bool, error)
	IsRevoked(credentialHash string) (bool, time.Time)
	Proof(credentialHash string) ([]revocation.ProofStep, [32]byte, error)
	CurrentRoot() [32]byte
}

// Onboarder issues verifier API keys.
type Onboarder interface {
	Issue(ctx context.Context, name string) (*verifierauth.Credentials, error)
}

// KeyPublisher serves the issuer's public key set.
type KeyPublisher interface {
	PublicJWKS() issuer.JWKS
}

// AnchorKicker requests an early anchor cycle after state changes. May be a
// no-op when no ledger is configured.
type AnchorKicker interface {
	Kick()
}

type noopKicker struct{}

func (noopKicker) Kick() {}

// Handler holds the wired domain services behind small interfaces so handler
// tests can run against fakes.
type Handler struct {
	ceremonies    DeviceCeremonies
	minter        Minter
	verifier      Verifier
	revoker       Revoker
	onboarder     Onboarder
	keys          KeyPublisher
	devices       store.DeviceStore
	anchor        AnchorKicker
	logger        *slog.Logger
	secureCookies bool
}

// NewHandler wires the HTTP layer. Pass a nil anchor when no ledger is
// configured; revocations then stay local until one is.
func NewHandler(
	ceremonies DeviceCeremonies,
	minter Minter,
	verifier Verifier,
	revoker Revoker,
	onboarder Onboarder,
	keys KeyPublisher,
	devices store.DeviceStore,
	anchor AnchorKicker,
	environment string,
	logger *slog.Logger,
) *Handler {
	if anchor == nil {
		anchor = noopKicker{}
	}
	return &Handler{
		ceremonies:    ceremonies,
		minter:        minter,
		verifier:      verifier,
		revoker:       revoker,
		onboarder:     onboarder,
		keys:          keys,
		devices:       devices,
		anchor:        anchor,
		logger:        logger,
		secureCookies: environment != "dev",
	}
}

// HandleRegistrationOptions starts a device registration ceremony.
func (h *Handler) HandleRegistrationOptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, options, err := h.ceremonies.BeginRegistration(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "begin registration failed",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}

	httpjson.WriteJSON(w, http.StatusOK, CeremonyOptionsResponse{
		SessionID: sessionID,
		Options:   options,
	})
}

// HandleFinishRegistration verifies the attestation response, mints a
// credential bound to the device, and hands it back both in the body and as
// the AgeToken cookie.
func (h *Handler) HandleFinishRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := decodeJSON[FinishRegistrationRequest](w, r)
	if !ok {
		return
	}
	if req.SessionID == "" || len(req.Response) == 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "session_id and response are required"))
		return
	}

	binding, err := h.ceremonies.FinishRegistration(ctx, req.SessionID, req.Response)
	if err != nil {
		h.logger.WarnContext(ctx, "registration attestation rejected",
			"error", err,
			"request_id", requestID,
		)
		shared.WriteError(w, err)
		return
	}

	minted, err := h.minter.Mint(ctx, binding)
	if err != nil {
		h.logger.ErrorContext(ctx, "mint failed", "error", err, "request_id", requestID)
		shared.WriteError(w, err)
		return
	}

	ua := useragent.New(r.UserAgent())
	browser, version := ua.Browser()
	h.logger.InfoContext(ctx, "registered device",
		"device_fingerprint", minted.Fingerprint,
		"browser", browser+" "+version,
		"os", ua.OS(),
		"request_id", requestID,
	)

	h.setCredentialCookie(w, minted)
	httpjson.WriteJSON(w, http.StatusOK, TokenResponse{
		Token:     minted.Token,
		ExpiresAt: minted.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// HandleAssertionOptions starts a re-binding ceremony for a presented
// credential. The credential must still verify locally before the device
// challenge is issued.
func (h *Handler) HandleAssertionOptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := decodeJSON[AssertionOptionsRequest](w, r)
	if !ok {
		return
	}
	if req.Token == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "token is required"))
		return
	}

	result, err := h.verifier.Verify(ctx, req.Token, verify.Options{})
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	record, err := h.devices.FindByFingerprint(ctx, result.Claims.Device)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no device binding for credential"))
		return
	}
	if record.CredentialHash != result.CredentialHash {
		// A newer credential superseded this one for the same device.
		shared.WriteError(w, dErrors.New(dErrors.CodeRevoked, "credential has been superseded"))
		return
	}

	sessionID, options, err := h.ceremonies.BeginAssertion(ctx, record.CredentialID, record.PublicKey)
	if err != nil {
		h.logger.ErrorContext(ctx, "begin assertion failed", "error", err, "request_id", requestID)
		shared.WriteError(w, err)
		return
	}

	httpjson.WriteJSON(w, http.StatusOK, CeremonyOptionsResponse{
		SessionID: sessionID,
		Options:   options,
	})
}

// HandleFinishAssertion verifies a completed re-binding ceremony on its own.
// Verifiers that want the re-binding result combined with the other gates use
// the assertion fields of the verification endpoint instead.
func (h *Handler) HandleFinishAssertion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := decodeJSON[FinishRegistrationRequest](w, r)
	if !ok {
		return
	}
	if req.SessionID == "" || len(req.Response) == 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "session_id and response are required"))
		return
	}

	if err := h.ceremonies.FinishAssertion(ctx, req.SessionID, req.Response); err != nil {
		h.logger.WarnContext(ctx, "assertion rejected",
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}

	httpjson.WriteJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

// HandleIssuerJWKS serves the public key set verifiers use to check
// credential signatures.
func (h *Handler) HandleIssuerJWKS(w http.ResponseWriter, _ *http.Request) {
	httpjson.WriteJSON(w, http.StatusOK, h.keys.PublicJWKS())
}

// HandleVerifyToken runs the verification gates for an onboarded verifier.
func (h *Handler) HandleVerifyToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := decodeJSON[VerifyTokenRequest](w, r)
	if !ok {
		return
	}
	if req.Token == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "token is required"))
		return
	}

	result, err := h.verifier.Verify(ctx, req.Token, verify.Options{
		CheckLedger:        req.CheckLedger,
		AssertionSessionID: req.AssertionSessionID,
		AssertionResponse:  req.AssertionResponse,
	})
	if err != nil {
		h.logger.InfoContext(ctx, "credential rejected",
			"reason", string(dErrors.CodeOf(err)),
			"verifier_id", middleware.GetVerifierID(ctx),
			"request_id", middleware.GetRequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}

	httpjson.WriteJSON(w, http.StatusOK, VerifyTokenResponse{
		Active:         true,
		AgeOver:        result.Claims.AgeOver,
		Device:         result.Claims.Device,
		IssuedAt:       result.Claims.IssuedAt.UTC().Format(time.RFC3339),
		ExpiresAt:      result.Claims.ExpiresAt.UTC().Format(time.RFC3339),
		Warnings:       result.Warnings,
		LedgerDegraded: result.LedgerDegraded,
	})
}

// HandleRevocationStatus reports whether a credential hash is revoked,
// optionally with a Merkle membership proof (?proof=true).
func (h *Handler) HandleRevocationStatus(w http.ResponseWriter, r *http.Request) {
	credentialHash := chi.URLParam(r, "credential_hash")

	revoked, revokedAt := h.revoker.IsRevoked(credentialHash)
	response := RevocationStatusResponse{
		CredentialHash: credentialHash,
		Revoked:        revoked,
	}

	if revoked && r.URL.Query().Get("proof") == "true" {
		steps, root, err := h.revoker.Proof(credentialHash)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		response.Root = hexRoot(root)
		response.Proof = toProofResponse(steps)
		response.RevokedAt = revokedAt.UTC().Format(time.RFC3339)
		httpjson.WriteJSON(w, http.StatusOK, response)
		return
	}

	response.Root = hexRoot(h.revoker.CurrentRoot())
	if revoked {
		response.RevokedAt = revokedAt.UTC().Format(time.RFC3339)
	}
	httpjson.WriteJSON(w, http.StatusOK, response)
}

// HandleRevoke adds a credential to the revocation set and requests an early
// anchor cycle. Idempotent.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := decodeJSON[RevokeRequest](w, r)
	if !ok {
		return
	}
	credentialHash := req.CredentialHash
	if credentialHash == "" && req.Token != "" {
		credentialHash = credential.Hash(req.Token)
	}
	if credentialHash == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "credential_hash or token is required"))
		return
	}

	added, err := h.revoker.Revoke(ctx, credentialHash)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if added {
		h.anchor.Kick()
	}

	h.logger.InfoContext(ctx, "credential revoked",
		"credential_hash", credentialHash,
		"already_revoked", !added,
		"request_id", middleware.GetRequestID(ctx),
	)
	httpjson.WriteJSON(w, http.StatusOK, RevokeResponse{
		CredentialHash: credentialHash,
		Revoked:        true,
		AlreadyRevoked: !added,
	})
}

// HandleOnboardVerifier issues one-time API credentials for a relying party.
func (h *Handler) HandleOnboardVerifier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := decodeJSON[OnboardVerifierRequest](w, r)
	if !ok {
		return
	}

	creds, err := h.onboarder.Issue(ctx, req.Name)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	httpjson.WriteJSON(w, http.StatusCreated, VerifierCredentialsResponse{
		VerifierID: creds.ID,
		Name:       creds.Name,
		APIKey:     creds.APIKey,
	})
}

func (h *Handler) setCredentialCookie(w http.ResponseWriter, minted *credential.Minted) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    minted.Token,
		Path:     "/",
		Expires:  minted.ExpiresAt,
		MaxAge:   int(time.Until(minted.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (*T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	return &req, true
}

func hexRoot(root [32]byte) string {
	return hex.EncodeToString(root[:])
}
