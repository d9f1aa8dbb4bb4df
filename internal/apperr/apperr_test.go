package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("missing_fields", "userId is required"), http.StatusBadRequest},
		{"not found", NotFound("user_not_found", "user not found"), http.StatusNotFound},
		{"insufficient balance", InsufficientBalance("Insufficient coins"), http.StatusBadRequest},
		{"unauthenticated", Unauthenticated("unauthenticated", "authentication required"), http.StatusUnauthorized},
		{"forbidden", Forbidden("not_owner", "only the owner may finalize"), http.StatusForbidden},
		{"upstream", Upstream("identity_store", "reading user", errors.New("boom")), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("transferring: %w", NotFound("receiver_not_found", "Receiver not found")), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Status(tt.err); got != tt.want {
				t.Errorf("Status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", Validation("missing_fields", "File and user ID are required"))
	if got := CodeOf(err); got != "missing_fields" {
		t.Errorf("code = %q, want %q", got, "missing_fields")
	}
	if got := CodeOf(errors.New("plain")); got != "internal" {
		t.Errorf("code = %q, want %q", got, "internal")
	}
}

func TestErrorMessage(t *testing.T) {
	err := Upstream("identity_store", "updating metadata", errors.New("timeout"))
	if err.Error() != "updating metadata: timeout" {
		t.Errorf("message = %q", err.Error())
	}
	if !errors.Is(err, err.Err) {
		t.Error("expected Unwrap to expose the cause")
	}
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status int
		code   string
		want   Kind
	}{
		{http.StatusBadRequest, "insufficient_balance", KindInsufficientBalance},
		{http.StatusBadRequest, "missing_fields", KindValidation},
		{http.StatusNotFound, "receiver_not_found", KindNotFound},
		{http.StatusForbidden, "not_owner", KindForbidden},
		{http.StatusUnauthorized, "invalid_token", KindUnauthenticated},
		{http.StatusInternalServerError, "identity_store", KindUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			e := FromStatus(tt.status, tt.code, "msg")
			if e.Kind != tt.want {
				t.Errorf("kind = %q, want %q", e.Kind, tt.want)
			}
			if !Is(e, tt.want) {
				t.Error("Is() = false")
			}
		})
	}
}
