package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/evcraddock/propchain/internal/identity"
)

// tokenTTL is the lifetime of tokens minted by login --secret.
const tokenTTL = 30 * 24 * time.Hour

type loginOptions struct {
	server   string
	userID   string
	wallet   string
	token    string
	secret   string
	rpcURL   string
	contract string
}

func newLoginCmd() *cobra.Command {
	var opts loginOptions

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store your identity and connection settings",
		Long: `Save the user ID, wallet and identity token the CLI sends to the server.

Pass --token with a token issued by the server operator, or --secret with the
server's PROPCHAIN_IDENTITY_JWT_SECRET to mint one locally. Without either,
the CLI sends X-User-ID/X-Wallet headers, which only a dev-mode server accepts.`,
		Example: `  propchain login --user-id user_1 --wallet 0x433220a86126eFe2b8C98a723E73eBAd2D0CbaDc --secret "$PROPCHAIN_IDENTITY_JWT_SECRET"
  propchain login --rpc-url http://localhost:8545 --contract 0x5FbDB2315678afecb367f032d93F642f64180aa3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.server, "server", "", "server URL (default: from config or http://localhost:8080)")
	cmd.Flags().StringVar(&opts.userID, "user-id", "", "your user ID")
	cmd.Flags().StringVar(&opts.wallet, "wallet", "", "your wallet address")
	cmd.Flags().StringVar(&opts.token, "token", "", "identity token issued by the server")
	cmd.Flags().StringVar(&opts.secret, "secret", "", "token signing secret, to mint a token locally")
	cmd.Flags().StringVar(&opts.rpcURL, "rpc-url", "", "EVM JSON-RPC endpoint for bidding commands")
	cmd.Flags().StringVar(&opts.contract, "contract", "", "bidding contract address")

	return cmd
}

func runLogin(cmd *cobra.Command, opts loginOptions) error {
	if err := validateLogin(opts); err != nil {
		return err
	}

	// Load existing config to preserve other fields
	cfg, err := loadConfig()
	if err != nil {
		cfg = CLIConfig{}
	}

	if opts.server != "" {
		cfg.ServerURL = strings.TrimRight(opts.server, "/")
	}
	if opts.userID != "" {
		cfg.UserID = opts.userID
	}
	if opts.wallet != "" {
		cfg.Wallet = opts.wallet
	}
	if opts.rpcURL != "" {
		cfg.RPCURL = opts.rpcURL
	}
	if opts.contract != "" {
		cfg.ContractAddress = opts.contract
	}

	switch {
	case opts.token != "":
		cfg.Token = opts.token
	case opts.secret != "":
		if cfg.UserID == "" {
			return fmt.Errorf("--user-id is required to mint a token")
		}
		token, err := identity.IssueToken(opts.secret, identity.Caller{ID: cfg.UserID, Wallet: cfg.Wallet}, tokenTTL)
		if err != nil {
			return fmt.Errorf("issuing token: %w", err)
		}
		cfg.Token = token
	}

	if err := saveConfig(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	w := out(cmd)
	fmt.Fprintln(w, "✓ Settings saved.")
	if cfg.UserID != "" {
		fmt.Fprintf(w, "  User:   %s\n", cfg.UserID)
	}
	if cfg.Wallet != "" {
		fmt.Fprintf(w, "  Wallet: %s\n", cfg.Wallet)
	}
	if cfg.Token == "" {
		fmt.Fprintln(w, "  No token stored; requests use dev headers.")
	}
	return nil
}

// validateLogin checks flag values before anything is written.
func validateLogin(opts loginOptions) error {
	if opts.token != "" && opts.secret != "" {
		return fmt.Errorf("use either --token or --secret, not both")
	}
	if opts.wallet != "" && !common.IsHexAddress(opts.wallet) {
		return fmt.Errorf("invalid wallet address: %s", opts.wallet)
	}
	if opts.contract != "" && !common.IsHexAddress(opts.contract) {
		return fmt.Errorf("invalid contract address: %s", opts.contract)
	}
	if strings.TrimSpace(opts.userID) != opts.userID {
		return fmt.Errorf("user ID must not have surrounding spaces")
	}
	return nil
}
