// Package bidding orchestrates bids between the ledger and the property store.
package bidding

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/evcraddock/propchain/internal/apperr"
	"github.com/evcraddock/propchain/internal/identity"
	"github.com/evcraddock/propchain/internal/ledger"
	"github.com/evcraddock/propchain/internal/property"
)

// Ledger is the on-chain side of the bidding flow.
type Ledger interface {
	PlaceBid(ctx context.Context, idHash [32]byte, propertyID int64, amount *big.Int) (*ledger.Tx, error)
	CancelBid(ctx context.Context, idHash [32]byte, propertyID int64) (*ledger.Tx, error)
	FinalizeBids(ctx context.Context, propertyID int64, owner string) (*ledger.Tx, error)
	IsFinalized(ctx context.Context, propertyID int64) (bool, error)
}

// PropertyStore is the relational side of the bidding flow.
type PropertyStore interface {
	GetProperty(ctx context.Context, id int64) (*property.Property, error)
	SetAvailability(ctx context.Context, id int64, available bool) error
}

// Actions reported by BuyProperty.
const (
	ActionBid      = "bid"
	ActionFinalize = "finalize"
)

// Outcome is the result of a BuyProperty dispatch.
type Outcome struct {
	Action string     `json:"action"`
	Tx     *ledger.Tx `json:"tx"`
	Amount string     `json:"amount,omitempty"` // bids only, in whole tokens
}

// ReconcileResult reports the availability re-derived from the chain.
type ReconcileResult struct {
	PropertyID int64 `json:"property_id"`
	Finalized  bool  `json:"finalized"`
	Available  bool  `json:"available"`
	Changed    bool  `json:"changed"`
}

// Service runs the bidding flow.
type Service struct {
	ledger Ledger
	store  PropertyStore
}

// NewService creates a bidding service.
func NewService(l Ledger, store PropertyStore) *Service {
	return &Service{ledger: l, store: store}
}

// PlaceBid submits a bid of amount (whole tokens, up to 18 decimals).
func (s *Service) PlaceBid(ctx context.Context, propertyID int64, amount string, caller identity.Caller) (*ledger.Tx, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	wei, err := ToBaseUnits(amount)
	if err != nil {
		return nil, err
	}
	return s.placeBid(ctx, propertyID, wei, caller)
}

func (s *Service) placeBid(ctx context.Context, propertyID int64, wei *big.Int, caller identity.Caller) (*ledger.Tx, error) {
	tx, err := s.ledger.PlaceBid(ctx, IDHash(caller.ID), propertyID, wei)
	if err != nil {
		return nil, apperr.Upstream("ledger_failed", "placing bid", err)
	}

	slog.Info("bid placed", "property_id", propertyID, "user_id", caller.ID, "amount", wei.String(), "tx_hash", tx.Hash)
	return tx, nil
}

// CancelBid withdraws the caller's bid.
func (s *Service) CancelBid(ctx context.Context, propertyID int64, caller identity.Caller) (*ledger.Tx, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	tx, err := s.ledger.CancelBid(ctx, IDHash(caller.ID), propertyID)
	if err != nil {
		return nil, apperr.Upstream("ledger_failed", "cancelling bid", err)
	}

	slog.Info("bid cancelled", "property_id", propertyID, "user_id", caller.ID, "tx_hash", tx.Hash)
	return tx, nil
}

// FinalizeBids closes bidding and marks the property sold. Only the owner may
// finalize. Nothing is written to the store unless the ledger call succeeds.
func (s *Service) FinalizeBids(ctx context.Context, propertyID int64, caller identity.Caller) (*ledger.Tx, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	p, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("loading property %d: %w", propertyID, err)
	}
	if !IsOwner(p, caller) {
		return nil, apperr.Forbidden("not_owner", "only the property owner may finalize bids")
	}

	return s.finalize(ctx, p)
}

func (s *Service) finalize(ctx context.Context, p *property.Property) (*ledger.Tx, error) {
	tx, err := s.ledger.FinalizeBids(ctx, p.ID, p.OwnerWallet)
	if err != nil {
		return nil, apperr.Upstream("ledger_failed", "finalizing bids", err)
	}

	if err := s.store.SetAvailability(ctx, p.ID, false); err != nil {
		slog.Error("store out of sync after finalize",
			"property_id", p.ID, "tx_hash", tx.Hash, "error", err)
		return tx, apperr.Upstream("store_out_of_sync",
			fmt.Sprintf("bids finalized in %s but property %d is still listed as available", tx.Hash, p.ID), err)
	}

	slog.Info("bids finalized", "property_id", p.ID, "tx_hash", tx.Hash)
	return tx, nil
}

// BuyProperty finalizes when the caller owns the property and bids otherwise.
func (s *Service) BuyProperty(ctx context.Context, propertyID int64, amount string, caller identity.Caller) (*Outcome, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	p, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("loading property %d: %w", propertyID, err)
	}
	if !p.Available {
		return nil, apperr.Validation("property_unavailable", "property is not available")
	}

	if IsOwner(p, caller) {
		// A mined finalize is reported even when the store update failed.
		tx, err := s.finalize(ctx, p)
		if tx == nil {
			return nil, err
		}
		return &Outcome{Action: ActionFinalize, Tx: tx}, err
	}

	wei, err := ToBaseUnits(amount)
	if err != nil {
		return nil, err
	}
	tx, err := s.placeBid(ctx, propertyID, wei, caller)
	if err != nil {
		return nil, err
	}
	return &Outcome{Action: ActionBid, Tx: tx, Amount: FormatBaseUnits(wei)}, nil
}

// Reconcile re-derives availability from the chain and repairs the store.
func (s *Service) Reconcile(ctx context.Context, propertyID int64) (*ReconcileResult, error) {
	p, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("loading property %d: %w", propertyID, err)
	}

	finalized, err := s.ledger.IsFinalized(ctx, propertyID)
	if err != nil {
		return nil, apperr.Upstream("ledger_failed", "reading finalization state", err)
	}

	res := &ReconcileResult{PropertyID: propertyID, Finalized: finalized, Available: !finalized}
	if p.Available == res.Available {
		return res, nil
	}

	if err := s.store.SetAvailability(ctx, propertyID, res.Available); err != nil {
		return nil, fmt.Errorf("updating availability: %w", err)
	}
	res.Changed = true

	slog.Info("availability reconciled", "property_id", propertyID, "available", res.Available)
	return res, nil
}

// IsOwner reports whether the caller owns p. The caller's wallet is compared
// when known, otherwise the caller id.
func IsOwner(p *property.Property, caller identity.Caller) bool {
	who := caller.Wallet
	if who == "" {
		who = caller.ID
	}
	return SameIdentity(who, p.OwnerWallet)
}

func requireCaller(c identity.Caller) error {
	if c.ID == "" {
		return apperr.Validation("missing_fields", "caller identity is required")
	}
	return nil
}

// LocalStore adapts a property repository to PropertyStore.
type LocalStore struct {
	Repo *property.Repository
}

// GetProperty returns the property with id.
func (l LocalStore) GetProperty(ctx context.Context, id int64) (*property.Property, error) {
	return l.Repo.GetByID(ctx, id)
}

// SetAvailability updates the availability flag.
func (l LocalStore) SetAvailability(ctx context.Context, id int64, available bool) error {
	return l.Repo.SetAvailable(ctx, id, available)
}
