package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <id>",
		Short: "Repair a property's availability from the chain",
		Long:  "Ask the server to read the finalization state from the contract and correct the property's availability if it disagrees.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			res, err := newAPIClient().Reconcile(cmd.Context(), id)
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(out(cmd), res)
			}
			state := "in sync"
			if res.Changed {
				state = "updated"
			}
			fmt.Fprintf(out(cmd), "Property #%d: finalized=%t available=%t (%s)\n", res.PropertyID, res.Finalized, res.Available, state)
			return nil
		},
	}
}
