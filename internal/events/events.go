// Package events publishes domain events to Redis streams.
package events

import (
	"context"
	"time"
)

// Event types.
const (
	CoinsUpdated        = "coins.updated"
	CoinsTransferred    = "coins.transferred"
	BidRecorded         = "bid.recorded"
	AvailabilityChanged = "property.availability_changed"
)

// Stream names.
const (
	CoinEventsStream     = "coin.events"
	PropertyEventsStream = "property.events"
)

// Event is the envelope written to a stream.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// CoinsUpdatedEvent reports a new balance.
type CoinsUpdatedEvent struct {
	UserID string `json:"userId"`
	Coins  int64  `json:"coins"`
	Reason string `json:"reason"`
}

// CoinsTransferredEvent reports a completed transfer.
type CoinsTransferredEvent struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Amount     int64  `json:"amount"`
}

// BidRecordedEvent reports a new bid history row.
type BidRecordedEvent struct {
	PropertyID int64  `json:"propertyId"`
	Status     string `json:"status"`
	TxHash     string `json:"txHash"`
	Wallet     string `json:"wallet"`
	Amount     string `json:"amount"`
}

// AvailabilityChangedEvent reports a property availability change.
type AvailabilityChangedEvent struct {
	PropertyID int64  `json:"propertyId"`
	Available  bool   `json:"available"`
	Source     string `json:"source"`
}

// Publisher writes events to a named stream.
type Publisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// Nop discards every event.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, string, string, any) error { return nil }
