package web

import (
	"fmt"
	"io"
	"net/http"

	"github.com/evcraddock/propchain/internal/reward"
)

// handleUploadReward credits a user for a photo upload (multipart: file, userId).
func (s *Server) handleUploadReward(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var userID string
	var photo []byte

	// A malformed form falls through to the service's missing-field error.
	if err := r.ParseMultipartForm(maxUploadMemory); err == nil {
		userID = r.FormValue("userId")
		if f, _, err := r.FormFile("file"); err == nil {
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				apiError(w, fmt.Errorf("reading upload: %w", err))
				return
			}
			photo = data
		}
	}

	res, err := s.rewards.UploadReward(r.Context(), userID, photo)
	if err != nil {
		apiError(w, err)
		return
	}
	apiJSON(w, res, http.StatusOK)
}

type addCoinsRequest struct {
	UserID string `json:"userId"`
}

// handleAddCoins grants the fixed coin amount to a user.
func (s *Server) handleAddCoins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req addCoinsRequest
	if err := decodeJSON(r, &req); err != nil {
		apiError(w, err)
		return
	}

	res, err := s.rewards.AddCoins(r.Context(), req.UserID)
	if err != nil {
		apiError(w, err)
		return
	}
	apiJSON(w, res, http.StatusOK)
}

// handleTransferCoins moves coins from a sender to a receiver by username.
func (s *Server) handleTransferCoins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req reward.TransferRequest
	if err := decodeJSON(r, &req); err != nil {
		apiError(w, err)
		return
	}

	res, err := s.rewards.TransferCoins(r.Context(), req)
	if err != nil {
		apiError(w, err)
		return
	}
	apiJSON(w, res, http.StatusOK)
}
