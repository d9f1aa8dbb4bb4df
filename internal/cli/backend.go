package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/evcraddock/propchain/internal/bid"
	"github.com/evcraddock/propchain/internal/config"
	"github.com/evcraddock/propchain/internal/db"
	"github.com/evcraddock/propchain/internal/events"
	"github.com/evcraddock/propchain/internal/indexer"
	"github.com/evcraddock/propchain/internal/ledger"
	"github.com/evcraddock/propchain/internal/property"
)

const (
	streamMaxLen = 10000 // entries kept per event stream
	lockTTL      = 10 * time.Second
	lockWait     = 5 * time.Second
)

// backend holds the connections shared by the server-side commands.
type backend struct {
	cfg    config.Config
	db     *db.DB
	redis  *redis.Client
	pub    events.Publisher
	ledger *ledger.Client
}

// openBackend connects to the database and, when configured, Redis and the
// chain. Callers must Close the result.
func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	database, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	b := &backend{cfg: cfg, db: database, pub: events.Nop{}}

	if cfg.RedisAddr != "" {
		client, err := events.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.redis = client
		b.pub = events.NewRedisPublisher(client, streamMaxLen)
	}

	if cfg.LedgerEnabled() {
		l, err := ledger.Dial(ctx, ledger.Config{
			RPCURL:          cfg.EthRPCURL,
			ContractAddress: cfg.ContractAddress,
			PrivateKey:      cfg.EthPrivateKey,
		})
		if err != nil {
			b.Close()
			return nil, err
		}
		b.ledger = l
		slog.Info("ledger connected", "contract", cfg.ContractAddress, "signer", l.Address())
	}

	return b, nil
}

// newIndexer builds the bid history indexer. The ledger must be connected.
func (b *backend) newIndexer() (*indexer.Indexer, error) {
	if b.ledger == nil {
		return nil, fmt.Errorf("indexer requires PROPCHAIN_ETH_RPC_URL and PROPCHAIN_CONTRACT_ADDRESS")
	}
	return indexer.New(
		b.ledger,
		bid.NewRepository(b.db),
		property.NewRepository(b.db),
		indexer.NewCursorStore(b.db),
		indexer.Options{StartBlock: b.cfg.IndexerStartBlock, Publisher: b.pub},
	), nil
}

// Close releases every connection.
func (b *backend) Close() {
	if b.ledger != nil {
		b.ledger.Close()
	}
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			slog.Warn("closing redis", "error", err)
		}
	}
	closeDB(b.db)
}

