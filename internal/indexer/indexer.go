// Package indexer copies the contract's bid events into bid_history and keeps
// property availability in line with the chain.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/evcraddock/propchain/internal/apperr"
	"github.com/evcraddock/propchain/internal/bid"
	"github.com/evcraddock/propchain/internal/events"
	"github.com/evcraddock/propchain/internal/ledger"
)

// DefaultName is the cursor name used by the bid indexer.
const DefaultName = "bid_history"

// DefaultWindow is the number of blocks fetched per log query.
const DefaultWindow = 2000

// Source reads contract events.
type Source interface {
	Head(ctx context.Context) (uint64, error)
	Events(ctx context.Context, from, to uint64) ([]ledger.Event, error)
}

// Availability marks properties sold once bidding is finalized on chain.
type Availability interface {
	MarkUnavailable(ctx context.Context, id int64) error
}

// Options configures an Indexer.
type Options struct {
	Name       string
	StartBlock uint64 // first block to read when no cursor is stored
	Window     uint64
	Publisher  events.Publisher
}

// Indexer polls a Source and appends bid history rows.
type Indexer struct {
	source  Source
	bids    *bid.Repository
	props   Availability
	cursors *CursorStore
	pub     events.Publisher
	name    string
	start   uint64
	window  uint64
}

// New creates an Indexer.
func New(source Source, bids *bid.Repository, props Availability, cursors *CursorStore, opts Options) *Indexer {
	ix := &Indexer{
		source:  source,
		bids:    bids,
		props:   props,
		cursors: cursors,
		pub:     opts.Publisher,
		name:    opts.Name,
		start:   opts.StartBlock,
		window:  opts.Window,
	}
	if ix.pub == nil {
		ix.pub = events.Nop{}
	}
	if ix.name == "" {
		ix.name = DefaultName
	}
	if ix.window == 0 {
		ix.window = DefaultWindow
	}
	return ix
}

// SyncResult summarises one Sync call.
type SyncResult struct {
	From     uint64
	To       uint64
	Events   int
	Recorded int
}

// Sync processes every block after the cursor up to the chain head.
// The cursor is saved after each window so an interrupted sync resumes.
func (ix *Indexer) Sync(ctx context.Context) (SyncResult, error) {
	from, err := ix.nextBlock(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	head, err := ix.source.Head(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("reading chain head: %w", err)
	}

	res := SyncResult{From: from, To: head}
	if from > head {
		res.To = from - 1
		return res, nil
	}

	for start := from; start <= head; start += ix.window {
		end := min(start+ix.window-1, head)

		evs, err := ix.source.Events(ctx, start, end)
		if err != nil {
			return res, fmt.Errorf("reading events %d-%d: %w", start, end, err)
		}

		for _, ev := range evs {
			recorded, err := ix.apply(ctx, ev)
			if err != nil {
				return res, err
			}
			res.Events++
			if recorded {
				res.Recorded++
			}
		}

		if err := ix.cursors.Set(ctx, ix.name, end); err != nil {
			return res, err
		}
	}

	return res, nil
}

func (ix *Indexer) nextBlock(ctx context.Context) (uint64, error) {
	block, ok, err := ix.cursors.Get(ctx, ix.name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return ix.start, nil
	}
	return block + 1, nil
}

// apply records one event and reports whether a new row was written.
func (ix *Indexer) apply(ctx context.Context, ev ledger.Event) (bool, error) {
	entry := &bid.Entry{
		PropertyID:    ev.PropertyID,
		WalletAddress: ev.Wallet,
		Amount:        "0",
		TxHash:        ev.TxHash,
	}
	if ev.Amount != nil {
		entry.Amount = ev.Amount.String()
	}
	if ev.BlockTime > 0 {
		entry.CreatedAt = time.Unix(int64(ev.BlockTime), 0)
	}

	switch ev.Name {
	case ledger.EventBidPlaced:
		entry.Status = bid.StatusPlaced
		entry.UserID = ev.IDHash
	case ledger.EventBidCancelled:
		entry.Status = bid.StatusCancelled
		entry.UserID = ev.IDHash
	case ledger.EventBidsFinalized:
		entry.Status = bid.StatusFinalized
	default:
		slog.Warn("ignoring unknown event", "event", ev.Name, "tx_hash", ev.TxHash)
		return false, nil
	}

	written, err := ix.bids.Append(ctx, entry)
	if err != nil {
		return false, fmt.Errorf("recording %s from %s: %w", ev.Name, ev.TxHash, err)
	}

	if entry.Status == bid.StatusFinalized {
		if err := ix.markSold(ctx, ev.PropertyID, written); err != nil {
			return false, err
		}
	}

	if !written {
		return false, nil
	}

	slog.Debug("bid recorded", "property_id", entry.PropertyID, "status", entry.Status, "tx_hash", entry.TxHash)
	ix.publish(ctx, events.PropertyEventsStream, events.BidRecorded, events.BidRecordedEvent{
		PropertyID: entry.PropertyID,
		Status:     string(entry.Status),
		TxHash:     entry.TxHash,
		Wallet:     entry.WalletAddress,
		Amount:     entry.Amount,
	})
	return true, nil
}

// markSold runs on replays too, so a failed store write is retried.
func (ix *Indexer) markSold(ctx context.Context, propertyID int64, notify bool) error {
	err := ix.props.MarkUnavailable(ctx, propertyID)
	if apperr.Is(err, apperr.KindNotFound) {
		slog.Warn("finalized property not in store", "property_id", propertyID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("marking property %d sold: %w", propertyID, err)
	}
	if !notify {
		return nil
	}

	ix.publish(ctx, events.PropertyEventsStream, events.AvailabilityChanged, events.AvailabilityChangedEvent{
		PropertyID: propertyID,
		Available:  false,
		Source:     "chain",
	})
	return nil
}

func (ix *Indexer) publish(ctx context.Context, stream, eventType string, data any) {
	if err := ix.pub.Publish(ctx, stream, eventType, data); err != nil {
		slog.Warn("publishing event failed", "type", eventType, "error", err)
	}
}

// Run syncs immediately and then every interval until ctx is done.
func (ix *Indexer) Run(ctx context.Context, interval time.Duration) {
	ix.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ix.tick(ctx)
		}
	}
}

func (ix *Indexer) tick(ctx context.Context) {
	res, err := ix.Sync(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		slog.Error("indexer sync failed", "name", ix.name, "error", err)
		return
	}
	if res.Events > 0 {
		slog.Info("indexer synced", "name", ix.name, "from", res.From, "to", res.To,
			"events", res.Events, "recorded", res.Recorded)
	}
}
