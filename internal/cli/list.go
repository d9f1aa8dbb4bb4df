package cli

import (
	"github.com/spf13/cobra"

	"github.com/evcraddock/propchain/internal/client"
)

func newListCmd() *cobra.Command {
	var (
		search    string
		available bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List properties",
		Long:  "List marketplace properties, optionally filtered by a search term or to those still for sale.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := newAPIClient().ListProperties(cmd.Context(), client.ListOptions{
				Search:        search,
				AvailableOnly: available,
			})
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(out(cmd), props)
			}
			return printPropertyTable(out(cmd), props)
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "match title, address or broker")
	cmd.Flags().BoolVar(&available, "available", false, "only show properties that are for sale")

	return cmd
}
