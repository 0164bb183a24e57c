package httptransport

import "encoding/json"

// FinishRegistrationRequest completes a device registration ceremony. Response
// carries the authenticator's attestation exactly as produced by the browser's
// credential API.
type FinishRegistrationRequest struct {
	SessionID string          `json:"session_id"`
	Response  json.RawMessage `json:"response"`
}

// AssertionOptionsRequest starts a device re-binding ceremony for an already
// issued credential.
type AssertionOptionsRequest struct {
	Token string `json:"token"`
}

// VerifyTokenRequest is submitted by onboarded verifiers. The assertion fields
// are optional and carry a completed device re-binding ceremony.
type VerifyTokenRequest struct {
	Token              string          `json:"token"`
	CheckLedger        bool            `json:"check_ledger,omitempty"`
	AssertionSessionID string          `json:"assertion_session_id,omitempty"`
	AssertionResponse  json.RawMessage `json:"assertion_response,omitempty"`
}

// RevokeRequest names the credential to revoke, either directly by hash or by
// the serialized token.
type RevokeRequest struct {
	CredentialHash string `json:"credential_hash,omitempty"`
	Token          string `json:"token,omitempty"`
}

// OnboardVerifierRequest registers a relying party.
type OnboardVerifierRequest struct {
	Name string `json:"name"`
}
