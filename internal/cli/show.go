package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show property details",
		Long:  "Show full details for a property, including its reviews and images.",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	resp, err := newAPIClient().ShowProperty(cmd.Context(), id)
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(out(cmd), resp)
	}

	w := out(cmd)
	printPropertySummary(w, resp.Property)
	if len(resp.Reviews) > 0 {
		fmt.Fprintf(w, "  Rating:    %.1f (%d reviews)\n", resp.AverageRating, len(resp.Reviews))
	}
	fmt.Fprintln(w)
	if len(resp.Images) > 0 {
		fmt.Fprintf(w, "Images (%d):\n", len(resp.Images))
		printImageList(w, resp.Images)
		fmt.Fprintln(w)
	}
	if len(resp.Reviews) > 0 {
		fmt.Fprintf(w, "Reviews (%d):\n", len(resp.Reviews))
	}
	printReviewList(w, resp.Reviews)

	return nil
}
