package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/propchain/internal/bidding"
	"github.com/evcraddock/propchain/internal/identity"
	"github.com/evcraddock/propchain/internal/ledger"
)

func newBidsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bids <id>",
		Short: "Show the bid history of a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			entries, err := newAPIClient().ListBids(cmd.Context(), id)
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(out(cmd), entries)
			}
			return printBidTable(out(cmd), entries)
		},
	}
}

func newBidCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "bid <id> <amount>",
		Short:   "Place a bid on a property",
		Long:    "Place an on-chain bid. The amount is in whole tokens with up to 18 decimal places.",
		Example: "  propchain bid 4 1.5",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBidding(cmd, args[0], func(ctx context.Context, svc *bidding.Service, id int64, caller identity.Caller) (*bidding.Outcome, error) {
				tx, err := svc.PlaceBid(ctx, id, args[1], caller)
				return bidOutcome(tx, args[1]), err
			})
		},
	}
}

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel your bid on a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBidding(cmd, args[0], func(ctx context.Context, svc *bidding.Service, id int64, caller identity.Caller) (*bidding.Outcome, error) {
				tx, err := svc.CancelBid(ctx, id, caller)
				return txOutcome(actionCancel, tx), err
			})
		},
	}
}

func newFinalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "finalize <id>",
		Short: "Close bidding on a property you own",
		Long:  "Finalize bidding on chain and mark the property as sold. Only the owner may finalize.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBidding(cmd, args[0], func(ctx context.Context, svc *bidding.Service, id int64, caller identity.Caller) (*bidding.Outcome, error) {
				tx, err := svc.FinalizeBids(ctx, id, caller)
				return txOutcome(bidding.ActionFinalize, tx), err
			})
		},
	}
}

func newBuyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "buy <id> [amount]",
		Short: "Bid on a property, or finalize it if you own it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount := ""
			if len(args) == 2 {
				amount = args[1]
			}
			return withBidding(cmd, args[0], func(ctx context.Context, svc *bidding.Service, id int64, caller identity.Caller) (*bidding.Outcome, error) {
				return svc.BuyProperty(ctx, id, amount, caller)
			})
		},
	}
}

const actionCancel = "cancel"

type biddingFunc func(ctx context.Context, svc *bidding.Service, id int64, caller identity.Caller) (*bidding.Outcome, error)

func txOutcome(action string, tx *ledger.Tx) *bidding.Outcome {
	if tx == nil {
		return nil
	}
	return &bidding.Outcome{Action: action, Tx: tx}
}

// bidOutcome reports a mined bid with its amount in canonical form.
func bidOutcome(tx *ledger.Tx, amount string) *bidding.Outcome {
	res := txOutcome(bidding.ActionBid, tx)
	if res == nil {
		return nil
	}
	if wei, err := bidding.ToBaseUnits(amount); err == nil {
		res.Amount = bidding.FormatBaseUnits(wei)
	}
	return res
}

// describeOutcome is the one-line text form of a mined transaction.
func describeOutcome(id int64, res *bidding.Outcome) string {
	action := res.Action
	if res.Amount != "" {
		action = fmt.Sprintf("%s of %s", action, res.Amount)
	}
	return fmt.Sprintf("Property #%d: %s transaction %s mined in block %d.", id, action, res.Tx.Hash, res.Tx.Block)
}

// withBidding connects to the chain with the local signing key and runs fn
// against a bidding service whose property store is the API server.
func withBidding(cmd *cobra.Command, arg string, fn biddingFunc) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}

	cfg := getLedgerConfig()
	if cfg.RPCURL == "" || cfg.ContractAddress == "" {
		return fmt.Errorf("no chain configured: set rpc_url and contract_address with 'propchain login' or PROPCHAIN_ETH_RPC_URL and PROPCHAIN_CONTRACT_ADDRESS")
	}
	if cfg.PrivateKey == "" {
		return fmt.Errorf("PROPCHAIN_ETH_PRIVATE_KEY is required to sign transactions")
	}

	caller := getCaller()
	if caller.ID == "" {
		return fmt.Errorf("not logged in: run 'propchain login --user-id <id>'")
	}

	ctx := cmd.Context()
	l, err := ledger.Dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer l.Close()

	if caller.Wallet == "" {
		caller.Wallet = l.Address()
	}

	api := newAPIClient().WithCaller(caller)
	res, err := fn(ctx, bidding.NewService(l, api), id, caller)
	// A finalize that reached the chain reports its transaction even when the
	// store update failed.
	if res != nil {
		if isJSON() {
			if perr := printJSON(out(cmd), res); perr != nil {
				return perr
			}
		} else {
			fmt.Fprintln(out(cmd), describeOutcome(id, res))
		}
	}
	return err
}
