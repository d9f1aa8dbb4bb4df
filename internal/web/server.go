// Package web provides the HTTP API server for propchain.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/justinas/alice"
	"github.com/rs/cors"

	"github.com/evcraddock/propchain/internal/bid"
	"github.com/evcraddock/propchain/internal/bidding"
	"github.com/evcraddock/propchain/internal/events"
	"github.com/evcraddock/propchain/internal/gallery"
	"github.com/evcraddock/propchain/internal/identity"
	"github.com/evcraddock/propchain/internal/logging"
	"github.com/evcraddock/propchain/internal/passkey"
	"github.com/evcraddock/propchain/internal/property"
	"github.com/evcraddock/propchain/internal/review"
	"github.com/evcraddock/propchain/internal/reward"
)

// Reconciler re-derives a property's availability from the chain.
type Reconciler interface {
	Reconcile(ctx context.Context, propertyID int64) (*bidding.ReconcileResult, error)
}

// Deps are the services the server routes to.
type Deps struct {
	Properties *property.Repository
	Reviews    *review.Repository
	Gallery    *gallery.Service
	Bids       *bid.Repository
	Rewards    *reward.Service
	Reconciler Reconciler // nil when no ledger is configured
	Publisher  events.Publisher
	Passkeys   *passkey.Service // nil disables passkey routes

	Verifier    *identity.Verifier // nil trusts dev headers when DevMode is set
	DevMode     bool
	CORSOrigins []string
}

// Server is the API HTTP server.
type Server struct {
	props      *property.Repository
	reviews    *review.Repository
	gallery    *gallery.Service
	bids       *bid.Repository
	rewards    *reward.Service
	reconciler Reconciler
	pub        events.Publisher
	passkeys   *passkey.Service
	mux        *http.ServeMux
	handler    http.Handler
}

// NewServer creates a server with the given dependencies.
func NewServer(d Deps) *Server {
	s := &Server{
		props:      d.Properties,
		reviews:    d.Reviews,
		gallery:    d.Gallery,
		bids:       d.Bids,
		rewards:    d.Rewards,
		reconciler: d.Reconciler,
		pub:        d.Publisher,
		passkeys:   d.Passkeys,
		mux:        http.NewServeMux(),
	}
	if s.pub == nil {
		s.pub = events.Nop{}
	}

	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/properties", s.handleAPIProperties)
	s.mux.HandleFunc("/api/properties/", s.handleAPIProperties)
	s.mux.HandleFunc("/api/upload-reward", s.handleUploadReward)
	s.mux.HandleFunc("/api/add-coins", s.handleAddCoins)
	s.mux.HandleFunc("/api/transfer-coins", s.handleTransferCoins)
	if s.passkeys != nil {
		s.mux.HandleFunc("/api/passkeys", s.handlePasskeys)
		s.mux.HandleFunc("/api/passkeys/", s.handlePasskeys)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", identity.HeaderUserID, identity.HeaderWallet, logging.RequestIDHeader, passkeySessionHeader},
		ExposedHeaders:   []string{logging.RequestIDHeader},
		AllowCredentials: true,
	})

	s.handler = alice.New(
		recoverPanic,
		logging.RequestLogger,
		c.Handler,
		identity.Middleware(d.Verifier, d.DevMode),
	).Then(s.mux)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on port until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     s,
		IdleTimeout: time.Minute,
		ReadTimeout: 15 * time.Second,
		// Uploads and chain reads can be slow.
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// recoverPanic turns a handler panic into a 500 response.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic serving request", "path", r.URL.Path, "panic", rec,
					"request_id", logging.RequestID(r.Context()))
				w.Header().Set("Connection", "close")
				apiError(w, fmt.Errorf("internal error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
