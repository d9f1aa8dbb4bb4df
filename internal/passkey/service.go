package passkey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/evcraddock/propchain/internal/apperr"
	"github.com/evcraddock/propchain/internal/identity"
)

// Defaults applied by NewService.
const (
	DefaultDisplayName = "PropChain"
	DefaultTokenTTL    = 24 * time.Hour
	ceremonyTimeout    = 5 * time.Minute
)

// Config configures the relying party and the tokens issued on login.
type Config struct {
	PublicURL   string // origin the browser sees, e.g. https://propchain.example
	DisplayName string
	TokenSecret string
	TokenTTL    time.Duration
}

// Login is the result of a successful passkey login.
type Login struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Wallet    string    `json:"wallet,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ceremony struct {
	data    *webauthn.SessionData
	wallet  string
	expires time.Time
}

// Service runs WebAuthn registration and login ceremonies.
type Service struct {
	wan    *webauthn.WebAuthn
	store  *Store
	secret string
	ttl    time.Duration
	now    func() time.Time

	// In-flight ceremonies. Registrations are keyed by user id, logins by a
	// random session id handed to the browser.
	mu     sync.Mutex
	reg    map[string]ceremony
	logins map[string]ceremony
}

// NewService creates a passkey service.
func NewService(store *Store, cfg Config) (*Service, error) {
	if cfg.TokenSecret == "" {
		return nil, errors.New("passkey login requires a token secret")
	}
	origin := strings.TrimRight(cfg.PublicURL, "/")
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Hostname() == "" {
		return nil, fmt.Errorf("invalid public URL %q", cfg.PublicURL)
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = DefaultDisplayName
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}

	wan, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.DisplayName,
		RPID:          parsed.Hostname(),
		RPOrigins:     []string{origin},
	})
	if err != nil {
		return nil, fmt.Errorf("configuring webauthn: %w", err)
	}

	return &Service{
		wan:    wan,
		store:  store,
		secret: cfg.TokenSecret,
		ttl:    cfg.TokenTTL,
		now:    time.Now,
		reg:    make(map[string]ceremony),
		logins: make(map[string]ceremony),
	}, nil
}

// BeginRegistration starts adding a passkey for the caller.
func (s *Service) BeginRegistration(ctx context.Context, caller identity.Caller) (*protocol.CredentialCreation, error) {
	stored, err := s.store.List(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	creds, _ := webauthnCredentials(stored)

	// Exclude existing credentials so the same authenticator is not registered twice.
	exclude := make([]protocol.CredentialDescriptor, len(creds))
	for i, c := range creds {
		exclude[i] = c.Descriptor()
	}

	creation, data, err := s.wan.BeginRegistration(NewUser(caller.ID, caller.Wallet, creds),
		webauthn.WithExclusions(exclude),
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
	)
	if err != nil {
		return nil, apperr.Upstream("webauthn_failed", "beginning registration", err)
	}

	s.mu.Lock()
	s.pruneLocked()
	s.reg[caller.ID] = ceremony{data: data, wallet: caller.Wallet, expires: s.now().Add(ceremonyTimeout)}
	s.mu.Unlock()

	return creation, nil
}

// FinishRegistration verifies the authenticator response in r and stores the
// new credential under name.
func (s *Service) FinishRegistration(ctx context.Context, caller identity.Caller, name string, r *http.Request) (*Credential, error) {
	s.mu.Lock()
	c, ok := s.reg[caller.ID]
	delete(s.reg, caller.ID)
	s.mu.Unlock()

	if !ok || s.now().After(c.expires) {
		return nil, apperr.Validation("no_ceremony", "no registration in progress")
	}

	stored, err := s.store.List(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	creds, _ := webauthnCredentials(stored)

	cred, err := s.wan.FinishRegistration(NewUser(caller.ID, c.wallet, creds), *c.data, r)
	if err != nil {
		slog.Warn("passkey registration rejected", "user_id", caller.ID, "error", err)
		return nil, apperr.Validation("registration_failed", "registration failed")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = "Passkey"
	}

	saved, err := s.store.Save(ctx, caller.ID, c.wallet, name, cred)
	if err != nil {
		return nil, err
	}
	slog.Info("passkey registered", "user_id", caller.ID, "credential", saved.ID)
	return saved, nil
}

// BeginLogin starts a discoverable login and returns the session id the
// browser must present to FinishLogin.
func (s *Service) BeginLogin(ctx context.Context) (string, *protocol.CredentialAssertion, error) {
	assertion, data, err := s.wan.BeginDiscoverableLogin()
	if err != nil {
		return "", nil, apperr.Upstream("webauthn_failed", "beginning login", err)
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.pruneLocked()
	s.logins[id] = ceremony{data: data, expires: s.now().Add(ceremonyTimeout)}
	s.mu.Unlock()

	return id, assertion, nil
}

// FinishLogin verifies the assertion in r and issues an identity token for
// the user whose passkey signed it.
func (s *Service) FinishLogin(ctx context.Context, sessionID string, r *http.Request) (*Login, error) {
	s.mu.Lock()
	c, ok := s.logins[sessionID]
	delete(s.logins, sessionID)
	s.mu.Unlock()

	if !ok || s.now().After(c.expires) {
		return nil, apperr.Validation("no_ceremony", "no login in progress")
	}

	var user *User
	lookup := func(rawID, userHandle []byte) (webauthn.User, error) {
		stored, err := s.store.List(ctx, string(userHandle))
		if err != nil {
			return nil, err
		}
		if len(stored) == 0 {
			return nil, protocol.ErrBadRequest.WithDetails("unknown user")
		}
		creds, wallet := webauthnCredentials(stored)
		user = NewUser(string(userHandle), wallet, creds)
		return user, nil
	}

	_, cred, err := s.wan.FinishPasskeyLogin(lookup, *c.data, r)
	if err != nil || user == nil {
		slog.Warn("passkey login rejected", "error", err)
		return nil, apperr.Unauthenticated("login_failed", "login failed")
	}

	if err := s.store.UpdateCredential(ctx, user.id, cred); err != nil {
		slog.Warn("updating passkey sign count", "user_id", user.id, "error", err)
	}

	token, err := identity.IssueToken(s.secret, identity.Caller{ID: user.id, Wallet: user.wallet}, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	slog.Info("login success", "user_id", user.id, "method", "passkey")
	return &Login{Token: token, UserID: user.id, Wallet: user.wallet, ExpiresAt: s.now().Add(s.ttl).UTC()}, nil
}

// List returns the caller's passkeys.
func (s *Service) List(ctx context.Context, caller identity.Caller) ([]*Credential, error) {
	return s.store.List(ctx, caller.ID)
}

// Delete removes one of the caller's passkeys.
func (s *Service) Delete(ctx context.Context, caller identity.Caller, id string) error {
	return s.store.Delete(ctx, id, caller.ID)
}

func (s *Service) pruneLocked() {
	now := s.now()
	for k, c := range s.reg {
		if now.After(c.expires) {
			delete(s.reg, k)
		}
	}
	for k, c := range s.logins {
		if now.After(c.expires) {
			delete(s.logins, k)
		}
	}
}
