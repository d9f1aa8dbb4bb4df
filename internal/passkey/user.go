// Package passkey signs users in with WebAuthn credentials and issues identity tokens.
package passkey

import "github.com/go-webauthn/webauthn/webauthn"

// User implements webauthn.User for a propchain user. The user handle is the
// user id itself, so discoverable logins resolve without a lookup table.
type User struct {
	id          string
	wallet      string
	credentials []webauthn.Credential
}

// NewUser creates a User with its registered credentials.
func NewUser(id, wallet string, credentials []webauthn.Credential) *User {
	return &User{id: id, wallet: wallet, credentials: credentials}
}

// WebAuthnID returns the user handle.
func (u *User) WebAuthnID() []byte { return []byte(u.id) }

// WebAuthnName returns the user id.
func (u *User) WebAuthnName() string { return u.id }

// WebAuthnDisplayName returns the user id.
func (u *User) WebAuthnDisplayName() string { return u.id }

// WebAuthnCredentials returns the stored credentials.
func (u *User) WebAuthnCredentials() []webauthn.Credential { return u.credentials }
