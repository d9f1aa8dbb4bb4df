package web

import (
	"net/http"
	"strings"

	"github.com/evcraddock/propchain/internal/apperr"
	"github.com/evcraddock/propchain/internal/identity"
)

// passkeySessionHeader carries the login ceremony id between begin and finish.
const passkeySessionHeader = "X-Passkey-Session"

// handlePasskeys routes /api/passkeys requests.
//
//	GET    /api/passkeys                  list the caller's passkeys
//	POST   /api/passkeys/register/begin   start registration (authenticated)
//	POST   /api/passkeys/register/finish  store the new credential (?name=)
//	POST   /api/passkeys/login/begin      start a discoverable login
//	POST   /api/passkeys/login/finish     verify and issue an identity token
//	DELETE /api/passkeys/{id}             remove one of the caller's passkeys
func (s *Server) handlePasskeys(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/passkeys"), "/")

	switch path {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		s.withCaller(w, r, s.apiListPasskeys)
	case "login/begin":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.apiBeginPasskeyLogin(w, r)
	case "login/finish":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.apiFinishPasskeyLogin(w, r)
	case "register/begin":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.withCaller(w, r, s.apiBeginPasskeyRegistration)
	case "register/finish":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.withCaller(w, r, s.apiFinishPasskeyRegistration)
	default:
		if strings.Contains(path, "/") {
			apiError(w, apperr.NotFound("route_not_found", "not found"))
			return
		}
		if r.Method != http.MethodDelete {
			methodNotAllowed(w)
			return
		}
		s.withCaller(w, r, func(w http.ResponseWriter, r *http.Request, caller identity.Caller) {
			s.apiDeletePasskey(w, r, caller, path)
		})
	}
}

// withCaller runs next only for requests that carry a caller identity.
func (s *Server) withCaller(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request, identity.Caller)) {
	caller, ok := identity.CallerFrom(r.Context())
	if !ok {
		apiError(w, errUnauthenticated)
		return
	}
	next(w, r, caller)
}

func (s *Server) apiListPasskeys(w http.ResponseWriter, r *http.Request, caller identity.Caller) {
	creds, err := s.passkeys.List(r.Context(), caller)
	if err != nil {
		apiError(w, err)
		return
	}
	apiJSON(w, creds, http.StatusOK)
}

func (s *Server) apiBeginPasskeyRegistration(w http.ResponseWriter, r *http.Request, caller identity.Caller) {
	creation, err := s.passkeys.BeginRegistration(r.Context(), caller)
	if err != nil {
		apiError(w, err)
		return
	}
	apiJSON(w, creation, http.StatusOK)
}

func (s *Server) apiFinishPasskeyRegistration(w http.ResponseWriter, r *http.Request, caller identity.Caller) {
	cred, err := s.passkeys.FinishRegistration(r.Context(), caller, r.URL.Query().Get("name"), r)
	if err != nil {
		apiError(w, err)
		return
	}
	apiJSON(w, cred, http.StatusCreated)
}

func (s *Server) apiBeginPasskeyLogin(w http.ResponseWriter, r *http.Request) {
	id, assertion, err := s.passkeys.BeginLogin(r.Context())
	if err != nil {
		apiError(w, err)
		return
	}
	w.Header().Set(passkeySessionHeader, id)
	apiJSON(w, map[string]any{"session": id, "options": assertion}, http.StatusOK)
}

func (s *Server) apiFinishPasskeyLogin(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(passkeySessionHeader)
	if id == "" {
		id = r.URL.Query().Get("session")
	}
	if id == "" {
		apiError(w, apperr.Validation("missing_fields", "passkey session is required"))
		return
	}

	login, err := s.passkeys.FinishLogin(r.Context(), id, r)
	if err != nil {
		apiError(w, err)
		return
	}
	apiJSON(w, login, http.StatusOK)
}

func (s *Server) apiDeletePasskey(w http.ResponseWriter, r *http.Request, caller identity.Caller, id string) {
	if err := s.passkeys.Delete(r.Context(), caller, id); err != nil {
		apiError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
