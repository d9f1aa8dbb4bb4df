package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Event is a decoded contract event.
type Event struct {
	Name       string
	PropertyID int64
	// Wallet is the bidder for bid events and the winner for finalization.
	Wallet    string
	IDHash    string // hex, empty for finalization
	Amount    *big.Int
	TxHash    string
	Block     uint64
	LogIndex  uint
	BlockTime uint64 // unix seconds
}

type bidPlaced struct {
	PropertyId *big.Int
	Bidder     common.Address
	IdHash     [32]byte
	Amount     *big.Int
}

type bidCancelled struct {
	PropertyId *big.Int
	Bidder     common.Address
	IdHash     [32]byte
}

type bidsFinalized struct {
	PropertyId *big.Int
	Owner      common.Address
	Winner     common.Address
	Amount     *big.Int
}

// DecodeLog decodes one of the contract's bid events.
func DecodeLog(contract abi.ABI, l types.Log) (Event, error) {
	if len(l.Topics) == 0 {
		return Event{}, fmt.Errorf("log has no topics")
	}
	ev, err := contract.EventByID(l.Topics[0])
	if err != nil {
		return Event{}, fmt.Errorf("unknown event: %w", err)
	}

	out := Event{
		Name:     ev.Name,
		TxHash:   l.TxHash.Hex(),
		Block:    l.BlockNumber,
		LogIndex: l.Index,
	}

	switch ev.Name {
	case EventBidPlaced:
		var v bidPlaced
		if err := unpack(contract, &v, ev, l); err != nil {
			return Event{}, err
		}
		out.PropertyID = v.PropertyId.Int64()
		out.Wallet = v.Bidder.Hex()
		out.IDHash = common.Hash(v.IdHash).Hex()
		out.Amount = v.Amount
	case EventBidCancelled:
		var v bidCancelled
		if err := unpack(contract, &v, ev, l); err != nil {
			return Event{}, err
		}
		out.PropertyID = v.PropertyId.Int64()
		out.Wallet = v.Bidder.Hex()
		out.IDHash = common.Hash(v.IdHash).Hex()
		out.Amount = new(big.Int)
	case EventBidsFinalized:
		var v bidsFinalized
		if err := unpack(contract, &v, ev, l); err != nil {
			return Event{}, err
		}
		out.PropertyID = v.PropertyId.Int64()
		out.Wallet = v.Winner.Hex()
		out.Amount = v.Amount
	default:
		return Event{}, fmt.Errorf("unsupported event %s", ev.Name)
	}

	return out, nil
}

// unpack fills out from the log's data and indexed topics.
func unpack(contract abi.ABI, out any, ev *abi.Event, l types.Log) error {
	if len(l.Data) > 0 {
		if err := contract.UnpackIntoInterface(out, ev.Name, l.Data); err != nil {
			return fmt.Errorf("unpacking %s data: %w", ev.Name, err)
		}
	}

	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if err := abi.ParseTopics(out, indexed, l.Topics[1:]); err != nil {
		return fmt.Errorf("parsing %s topics: %w", ev.Name, err)
	}
	return nil
}
