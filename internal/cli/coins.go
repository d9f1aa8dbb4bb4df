package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/evcraddock/propchain/internal/reward"
)

func newCoinsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coins",
		Short: "Earn and transfer reward coins",
	}
	cmd.AddCommand(newCoinsAddCmd(), newCoinsTransferCmd(), newCoinsUploadCmd())
	return cmd
}

func newCoinsAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add [user-id]",
		Short: "Claim the daily coin grant",
		Long:  "Grant coins to a user. Defaults to the logged-in user.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := userArg(args)
			if err != nil {
				return err
			}

			res, err := newAPIClient().AddCoins(cmd.Context(), userID)
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(out(cmd), res)
			}
			fmt.Fprintf(out(cmd), "Balance: %d coins\n", res.Coins)
			return nil
		},
	}
}

func newCoinsTransferCmd() *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:     "transfer <username> <amount>",
		Short:   "Send coins to another user",
		Example: "  propchain coins transfer alice 25",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || amount <= 0 {
				return fmt.Errorf("invalid amount: %s", args[1])
			}

			sender := from
			if sender == "" {
				sender = getCaller().ID
			}
			if sender == "" {
				return fmt.Errorf("no sender: pass --from or run 'propchain login --user-id <id>'")
			}

			res, err := newAPIClient().TransferCoins(cmd.Context(), reward.TransferRequest{
				SenderUserID:     sender,
				ReceiverUsername: args[0],
				Amount:           amount,
			})
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(out(cmd), res)
			}
			fmt.Fprintf(out(cmd), "Sent %d coins to %s. Balance: %d coins\n", amount, args[0], res.SenderCoins)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "sender user ID (default: logged-in user)")

	return cmd
}

func newCoinsUploadCmd() *cobra.Command {
	var userFlag string

	cmd := &cobra.Command{
		Use:   "upload <photo>",
		Short: "Upload a photo to earn coins",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := userFlag
			if userID == "" {
				userID = getCaller().ID
			}
			if userID == "" {
				return fmt.Errorf("no user: pass --user or run 'propchain login --user-id <id>'")
			}

			photo, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			res, err := newAPIClient().UploadReward(cmd.Context(), userID, filepath.Base(args[0]), photo)
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(out(cmd), res)
			}
			if res.Location != "" {
				fmt.Fprintf(out(cmd), "Photo taken near %s.\n", res.Location)
			}
			fmt.Fprintf(out(cmd), "Balance: %d coins\n", res.Coins)
			return nil
		},
	}

	cmd.Flags().StringVar(&userFlag, "user", "", "user ID to credit (default: logged-in user)")

	return cmd
}

// userArg returns the positional user id or the logged-in user.
func userArg(args []string) (string, error) {
	if len(args) == 1 && args[0] != "" {
		return args[0], nil
	}
	if id := getCaller().ID; id != "" {
		return id, nil
	}
	return "", fmt.Errorf("no user: pass a user ID or run 'propchain login --user-id <id>'")
}
