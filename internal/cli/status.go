package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check connection and identity",
		Long:  "Tests the connection to the server and shows the identity the CLI will use.",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	w := out(cmd)
	caller := getCaller()

	fmt.Fprintf(w, "Server:  %s\n", getServerURL())
	fmt.Fprintf(w, "User:    %s\n", orDash(caller.ID))
	fmt.Fprintf(w, "Wallet:  %s\n", orDash(caller.Wallet))

	switch token := getToken(); {
	case token == "":
		fmt.Fprintln(w, "Token:   not configured (dev headers)")
	case len(token) > 8:
		fmt.Fprintf(w, "Token:   %s…\n", token[:8])
	default:
		fmt.Fprintf(w, "Token:   %s\n", token)
	}

	if lc := getLedgerConfig(); lc.RPCURL != "" {
		fmt.Fprintf(w, "Chain:   %s (contract %s)\n", lc.RPCURL, orDash(lc.ContractAddress))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	if err := newAPIClient().Health(ctx); err != nil {
		fmt.Fprintf(w, "Status:  ✗ cannot reach server (%v)\n", err)
		return nil
	}
	fmt.Fprintln(w, "Status:  ✓ connected")
	if caller.ID == "" {
		fmt.Fprintln(w, "\nRun 'propchain login --user-id <id>' to set your identity.")
	}
	return nil
}
