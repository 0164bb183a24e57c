package attestation

import "github.com/go-webauthn/webauthn/webauthn"

// ceremonyUser is the synthetic webauthn user driving a ceremony. The service
// is deliberately anonymous: the user handle is random per registration and
// carries no identity, so the only durable output is the device key itself.
type ceremonyUser struct {
	id          []byte
	credentials []webauthn.Credential
}

func (u ceremonyUser) WebAuthnID() []byte                         { return u.id }
func (u ceremonyUser) WebAuthnName() string                       { return "anon" }
func (u ceremonyUser) WebAuthnDisplayName() string                { return "anon" }
func (u ceremonyUser) WebAuthnIcon() string                       { return "" }
func (u ceremonyUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }
