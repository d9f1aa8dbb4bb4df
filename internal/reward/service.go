// Package reward grants and moves coin balances held in user metadata.
package reward

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/evcraddock/propchain/internal/apperr"
	"github.com/evcraddock/propchain/internal/events"
	"github.com/evcraddock/propchain/internal/geo"
	"github.com/evcraddock/propchain/internal/identity"
)

// Fixed reward amounts.
const (
	UploadAmount = 10
	GrantAmount  = 100
)

// Locator resolves a photo to a place name.
type Locator interface {
	Locate(ctx context.Context, photo []byte) (string, error)
}

// Options configures optional collaborators. Zero values disable them.
type Options struct {
	Locker    Locker
	Publisher events.Publisher
	// Locator, when set, requires uploaded photos to carry GPS data.
	Locator Locator
}

// Service applies reward rules against an identity store.
type Service struct {
	store   identity.Store
	locker  Locker
	pub     events.Publisher
	locator Locator
}

// NewService creates a reward service.
func NewService(store identity.Store, opts Options) *Service {
	s := &Service{store: store, locker: opts.Locker, pub: opts.Publisher, locator: opts.Locator}
	if s.locker == nil {
		s.locker = NopLocker{}
	}
	if s.pub == nil {
		s.pub = events.Nop{}
	}
	return s
}

// UploadResult is returned by UploadReward.
type UploadResult struct {
	Success  bool   `json:"success"`
	Coins    int64  `json:"coins"`
	Location string `json:"location,omitempty"`
}

// CoinsResult is returned by AddCoins.
type CoinsResult struct {
	Success bool  `json:"success"`
	Coins   int64 `json:"coins"`
}

// TransferRequest moves Amount coins from a sender to a receiver named by username.
type TransferRequest struct {
	SenderUserID     string `json:"senderUserId"`
	ReceiverUsername string `json:"receiverUsername"`
	Amount           int64  `json:"amount"`
}

// TransferResult is returned by TransferCoins.
type TransferResult struct {
	Success     bool  `json:"success"`
	SenderCoins int64 `json:"senderCoins"`
}

// UploadReward credits a user for uploading a photo. A nil photo means no
// file was sent; an empty file is still a file.
func (s *Service) UploadReward(ctx context.Context, userID string, photo []byte) (*UploadResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || photo == nil {
		return nil, apperr.Validation("missing_fields", "File and user ID are required")
	}

	var location string
	if s.locator != nil {
		loc, err := s.locator.Locate(ctx, photo)
		if errors.Is(err, geo.ErrNoGPS) {
			return nil, apperr.Validation("no_gps_data", "No GPS data found in the photo")
		}
		if err != nil {
			return nil, apperr.Upstream("geocoder", "locating photo", err)
		}
		location = loc
	}

	coins, err := s.credit(ctx, userID, UploadAmount, "upload")
	if err != nil {
		return nil, err
	}

	return &UploadResult{Success: true, Coins: coins, Location: location}, nil
}

// AddCoins grants a flat amount to a user.
func (s *Service) AddCoins(ctx context.Context, userID string) (*CoinsResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperr.Validation("missing_fields", "User ID is required")
	}

	coins, err := s.credit(ctx, userID, GrantAmount, "grant")
	if err != nil {
		return nil, err
	}

	return &CoinsResult{Success: true, Coins: coins}, nil
}

// credit adds amount to a user's balance under the user's lock.
func (s *Service) credit(ctx context.Context, userID string, amount int64, reason string) (int64, error) {
	unlock, err := s.locker.Lock(ctx, lockKey(userID))
	if err != nil {
		return 0, apperr.Upstream("lock_unavailable", "locking balance", err)
	}
	defer unlock()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return 0, classify(err, "reading user")
	}

	coins, err := addCoins(user.Coins(), amount)
	if err != nil {
		return 0, err
	}
	if err := s.store.UpdateMetadata(ctx, userID, user.MetadataWithCoins(coins)); err != nil {
		return 0, classify(err, "updating coins")
	}

	slog.Info("coins credited", "user_id", userID, "amount", amount, "coins", coins, "reason", reason)
	s.publish(ctx, events.CoinsUpdated, events.CoinsUpdatedEvent{UserID: userID, Coins: coins, Reason: reason})
	return coins, nil
}

// TransferCoins debits the sender and credits the receiver. If the credit
// fails the sender is re-credited; if that also fails the error carries the
// code transfer_compensation_failed.
func (s *Service) TransferCoins(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	senderID := strings.TrimSpace(req.SenderUserID)
	receiverName := strings.TrimSpace(req.ReceiverUsername)
	if senderID == "" || receiverName == "" || req.Amount == 0 {
		return nil, apperr.Validation("missing_fields", "Sender ID, receiver username, and amount are required")
	}
	if req.Amount < 0 {
		return nil, apperr.Validation("invalid_amount", "Amount must be positive")
	}

	sender, err := s.store.GetUser(ctx, senderID)
	if err != nil {
		return nil, classifyAs(err, "sender_not_found", "Sender not found", "reading sender")
	}
	if sender.Coins() < req.Amount {
		return nil, apperr.InsufficientBalance("Insufficient coins")
	}

	receiver, err := s.store.FindByUsername(ctx, receiverName)
	if err != nil {
		return nil, classifyAs(err, "receiver_not_found", "Receiver not found", "finding receiver")
	}
	if receiver.ID == sender.ID {
		return nil, apperr.Validation("self_transfer", "Cannot transfer coins to yourself")
	}

	unlock, err := s.locker.Lock(ctx, lockKey(sender.ID), lockKey(receiver.ID))
	if err != nil {
		return nil, apperr.Upstream("lock_unavailable", "locking balances", err)
	}
	defer unlock()

	// Re-read under the lock; the balances above may be stale
	if sender, err = s.store.GetUser(ctx, sender.ID); err != nil {
		return nil, classifyAs(err, "sender_not_found", "Sender not found", "reading sender")
	}
	if sender.Coins() < req.Amount {
		return nil, apperr.InsufficientBalance("Insufficient coins")
	}
	if receiver, err = s.store.GetUser(ctx, receiver.ID); err != nil {
		return nil, classifyAs(err, "receiver_not_found", "Receiver not found", "reading receiver")
	}

	receiverCoins, err := addCoins(receiver.Coins(), req.Amount)
	if err != nil {
		return nil, err
	}

	senderCoins := sender.Coins() - req.Amount
	if err := s.store.UpdateMetadata(ctx, sender.ID, sender.MetadataWithCoins(senderCoins)); err != nil {
		return nil, classify(err, "debiting sender")
	}

	if err := s.store.UpdateMetadata(ctx, receiver.ID, receiver.MetadataWithCoins(receiverCoins)); err != nil {
		return nil, s.compensate(ctx, sender.ID, receiver.ID, req.Amount, err)
	}

	slog.Info("coins transferred",
		"sender_id", sender.ID, "receiver_id", receiver.ID, "amount", req.Amount,
		"sender_coins", senderCoins, "receiver_coins", receiverCoins)
	s.publish(ctx, events.CoinsUpdated, events.CoinsUpdatedEvent{UserID: sender.ID, Coins: senderCoins, Reason: "transfer_out"})
	s.publish(ctx, events.CoinsUpdated, events.CoinsUpdatedEvent{UserID: receiver.ID, Coins: receiverCoins, Reason: "transfer_in"})
	s.publish(ctx, events.CoinsTransferred, events.CoinsTransferredEvent{SenderID: sender.ID, ReceiverID: receiver.ID, Amount: req.Amount})

	return &TransferResult{Success: true, SenderCoins: senderCoins}, nil
}

// compensate returns the debited amount to the sender after a failed credit.
func (s *Service) compensate(ctx context.Context, senderID, receiverID string, amount int64, creditErr error) error {
	// The request context may be what failed the credit
	cctx := context.WithoutCancel(ctx)

	sender, err := s.store.GetUser(cctx, senderID)
	if err == nil {
		var refunded int64
		if refunded, err = addCoins(sender.Coins(), amount); err == nil {
			err = s.store.UpdateMetadata(cctx, senderID, sender.MetadataWithCoins(refunded))
		}
	}
	if err != nil {
		slog.Error("transfer compensation failed",
			"sender_id", senderID, "receiver_id", receiverID, "amount", amount,
			"credit_error", creditErr, "error", err)
		return apperr.Upstream("transfer_compensation_failed",
			"crediting receiver failed and sender could not be refunded",
			fmt.Errorf("%w; refund: %v", creditErr, err))
	}

	slog.Warn("transfer rolled back",
		"sender_id", senderID, "receiver_id", receiverID, "amount", amount, "error", creditErr)
	return apperr.Upstream("identity_store", "crediting receiver", creditErr)
}

// addCoins returns coins+amount, or a balance_overflow error when the sum
// does not fit in an int64.
func addCoins(coins, amount int64) (int64, error) {
	if amount > math.MaxInt64-coins {
		return 0, apperr.Validation("balance_overflow", "Balance is too large to receive more coins")
	}
	return coins + amount, nil
}

func (s *Service) publish(ctx context.Context, eventType string, data any) {
	if err := s.pub.Publish(ctx, events.CoinEventsStream, eventType, data); err != nil {
		slog.Warn("publishing event failed", "type", eventType, "error", err)
	}
}

// classify keeps typed errors and wraps the rest as identity store failures.
func classify(err error, msg string) error {
	var e *apperr.Error
	if errors.As(err, &e) {
		return err
	}
	return apperr.Upstream("identity_store", msg, err)
}

// classifyAs renames a not-found error for the role the user plays.
func classifyAs(err error, code, notFoundMsg, msg string) error {
	if apperr.Is(err, apperr.KindNotFound) {
		return apperr.NotFound(code, notFoundMsg)
	}
	return classify(err, msg)
}
