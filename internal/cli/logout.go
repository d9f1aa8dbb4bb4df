package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored identity",
		Long:  "Removes the stored token, user ID and wallet from the config file. Server and chain settings are kept.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd)
		},
	}
}

func runLogout(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Token == "" && cfg.UserID == "" && cfg.Wallet == "" {
		fmt.Fprintln(out(cmd), "Not logged in.")
		return nil
	}

	cfg.Token, cfg.UserID, cfg.Wallet = "", "", ""
	if err := saveConfig(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Fprintln(out(cmd), "✓ Logged out.")
	return nil
}
