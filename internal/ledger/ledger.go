// Package ledger talks to the marketplace contract on an EVM chain.
package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrNoSigner is returned by mutating calls on a read-only client.
var ErrNoSigner = errors.New("no signing key configured")

// Tx is a mined transaction.
type Tx struct {
	Hash  string `json:"tx_hash"`
	Block uint64 `json:"block"`
}

// Config configures a contract client.
type Config struct {
	RPCURL          string
	ContractAddress string
	// PrivateKey is a hex secp256k1 key. Empty makes the client read-only.
	PrivateKey string
}

// Client calls the contract and reads its events.
type Client struct {
	eth      *ethclient.Client
	abi      abi.ABI
	address  common.Address
	contract *bind.BoundContract
	key      *ecdsa.PrivateKey
	chainID  *big.Int
}

// Dial connects to the RPC endpoint and binds the contract.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}

	parsed, err := ParseABI()
	if err != nil {
		return nil, err
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", cfg.RPCURL, err)
	}

	c := &Client{
		eth:     eth,
		abi:     parsed,
		address: common.HexToAddress(cfg.ContractAddress),
	}
	c.contract = bind.NewBoundContract(c.address, parsed, eth, eth, eth)

	if cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			eth.Close()
			return nil, fmt.Errorf("parsing private key: %w", err)
		}
		chainID, err := eth.ChainID(ctx)
		if err != nil {
			eth.Close()
			return nil, fmt.Errorf("reading chain id: %w", err)
		}
		c.key = key
		c.chainID = chainID
	}

	return c, nil
}

// ParseABI parses the contract ABI.
func ParseABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parsing contract abi: %w", err)
	}
	return parsed, nil
}

// Close closes the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// Address returns the signer's address, or "" for a read-only client.
func (c *Client) Address() string {
	if c.key == nil {
		return ""
	}
	return crypto.PubkeyToAddress(c.key.PublicKey).Hex()
}

// PlaceBid submits a bid keyed by idHash and waits for it to be mined.
func (c *Client) PlaceBid(ctx context.Context, idHash [32]byte, propertyID int64, amount *big.Int) (*Tx, error) {
	return c.transact(ctx, "placeBid", idHash, big.NewInt(propertyID), amount)
}

// CancelBid withdraws the bid keyed by idHash.
func (c *Client) CancelBid(ctx context.Context, idHash [32]byte, propertyID int64) (*Tx, error) {
	return c.transact(ctx, "cancelBid", idHash, big.NewInt(propertyID))
}

// FinalizeBids closes bidding on a property.
func (c *Client) FinalizeBids(ctx context.Context, propertyID int64, owner string) (*Tx, error) {
	if !common.IsHexAddress(owner) {
		return nil, fmt.Errorf("owner %q is not an address", owner)
	}
	return c.transact(ctx, "finalizeBids", big.NewInt(propertyID), common.HexToAddress(owner))
}

// IsFinalized reads whether bidding on a property has been finalized.
func (c *Client) IsFinalized(ctx context.Context, propertyID int64) (bool, error) {
	var out []any
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "isFinalized", big.NewInt(propertyID)); err != nil {
		return false, fmt.Errorf("calling isFinalized: %w", err)
	}
	if len(out) != 1 {
		return false, fmt.Errorf("isFinalized returned %d values", len(out))
	}
	finalized, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("isFinalized returned %T", out[0])
	}
	return finalized, nil
}

func (c *Client) transact(ctx context.Context, method string, params ...any) (*Tx, error) {
	if c.key == nil {
		return nil, ErrNoSigner
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("creating transactor: %w", err)
	}
	opts.Context = ctx

	tx, err := c.contract.Transact(opts, method, params...)
	if err != nil {
		return nil, fmt.Errorf("sending %s: %w", method, err)
	}
	slog.Info("transaction sent", "method", method, "tx_hash", tx.Hash().Hex())

	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%s reverted in tx %s", method, tx.Hash().Hex())
	}

	return &Tx{Hash: tx.Hash().Hex(), Block: receipt.BlockNumber.Uint64()}, nil
}

// Head returns the latest block number.
func (c *Client) Head(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading block number: %w", err)
	}
	return n, nil
}

// Events returns the contract's bid events in [from, to], in chain order.
func (c *Client) Events(ctx context.Context, from, to uint64) ([]Event, error) {
	topics := []common.Hash{
		c.abi.Events[EventBidPlaced].ID,
		c.abi.Events[EventBidCancelled].ID,
		c.abi.Events[EventBidsFinalized].ID,
	}

	logs, err := c.eth.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{topics},
	})
	if err != nil {
		return nil, fmt.Errorf("filtering logs %d-%d: %w", from, to, err)
	}

	headers := map[uint64]uint64{}
	events := make([]Event, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			continue
		}
		ev, err := DecodeLog(c.abi, l)
		if err != nil {
			slog.Warn("skipping undecodable log", "tx_hash", l.TxHash.Hex(), "error", err)
			continue
		}

		ts, ok := headers[l.BlockNumber]
		if !ok {
			header, err := c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(l.BlockNumber))
			if err != nil {
				return nil, fmt.Errorf("reading block %d: %w", l.BlockNumber, err)
			}
			ts = header.Time
			headers[l.BlockNumber] = ts
		}
		ev.BlockTime = ts
		events = append(events, ev)
	}
	return events, nil
}
