package httptransport

import (
	"encoding/hex"

	"agetoken/internal/revocation"
)

// CeremonyOptionsResponse returns the ceremony session id together with the
// webauthn options the browser feeds to its credential API.
type CeremonyOptionsResponse struct {
	SessionID string `json:"session_id"`
	Options   any    `json:"options"`
}

// TokenResponse returns a freshly minted credential. The same value is also
// set as the AgeToken cookie.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// VerifyTokenResponse reports an accepted credential back to the verifier.
// Only the age threshold and credential metadata are disclosed.
type VerifyTokenResponse struct {
	Active         bool     `json:"active"`
	AgeOver        int      `json:"ageOver"`
	Device         string   `json:"device"`
	IssuedAt       string   `json:"issued_at"`
	ExpiresAt      string   `json:"expires_at"`
	Warnings       []string `json:"warnings,omitempty"`
	LedgerDegraded bool     `json:"ledger_degraded,omitempty"`
}

// ProofStepResponse is one sibling hash on the Merkle path, hex encoded.
type ProofStepResponse struct {
	Hash string `json:"hash"`
	Left bool   `json:"left"`
}

// RevocationStatusResponse reports membership of a credential hash in the
// revocation set. Proof and root let callers check the answer against the
// published commitment without trusting this service.
type RevocationStatusResponse struct {
	CredentialHash string              `json:"credential_hash"`
	Revoked        bool                `json:"revoked"`
	RevokedAt      string              `json:"revoked_at,omitempty"`
	Root           string              `json:"root"`
	Proof          []ProofStepResponse `json:"proof,omitempty"`
}

// RevokeResponse confirms an admin revocation.
type RevokeResponse struct {
	CredentialHash string `json:"credential_hash"`
	Revoked        bool   `json:"revoked"`
	AlreadyRevoked bool   `json:"already_revoked"`
}

// VerifierCredentialsResponse returns one-time verifier credentials. The API
// key is not stored and cannot be retrieved again.
type VerifierCredentialsResponse struct {
	VerifierID string `json:"verifier_id"`
	Name       string `json:"name"`
	APIKey     string `json:"api_key"`
}

func toProofResponse(steps []revocation.ProofStep) []ProofStepResponse {
	if len(steps) == 0 {
		return nil
	}
	out := make([]ProofStepResponse, len(steps))
	for i, step := range steps {
		out[i] = ProofStepResponse{Hash: hex.EncodeToString(step.Hash[:]), Left: step.Left}
	}
	return out
}
