package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/evcraddock/propchain/internal/apperr"
)

var validate = validator.New()

var errUnauthenticated = apperr.Unauthenticated("unauthenticated", "authentication required")

// apiError writes err as a JSON error response with its machine-readable code.
func apiError(w http.ResponseWriter, err error) {
	status := apperr.Status(err)
	if status >= 500 {
		slog.Error("request failed", "code", apperr.CodeOf(err), "error", err)
	}
	apiJSON(w, map[string]string{"error": errorMessage(err), "code": apperr.CodeOf(err)}, status)
}

// errorMessage is the client-facing text for err.
func errorMessage(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// apiJSON writes a JSON response with the given status code.
func apiJSON(w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("encoding response", "error", err)
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	apiJSON(w, map[string]string{"error": "method not allowed", "code": "method_not_allowed"}, http.StatusMethodNotAllowed)
}

// decodeJSON reads the body into v and runs its validate tags.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("invalid_json", "invalid JSON body")
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return apperr.Validation("invalid_request", validationMessage(verrs))
		}
		return apperr.Validation("invalid_request", err.Error())
	}
	return nil
}

func validationMessage(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min", "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "max", "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
