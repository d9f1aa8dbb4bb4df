package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/propchain/internal/review"
)

func newReviewCmd() *cobra.Command {
	var rating int

	cmd := &cobra.Command{
		Use:   "review <id> <text...>",
		Short: "Review a property",
		Long:  "Submit a rating (1-5) and a comment for a property. The review is signed with the configured identity.",
		Example: `  propchain review 3 --rating 5 "Stunning ocean views"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReview(cmd, args, rating)
		},
	}

	cmd.Flags().IntVar(&rating, "rating", 0, "rating from 1 to 5")
	_ = cmd.MarkFlagRequired("rating")

	return cmd
}

func runReview(cmd *cobra.Command, args []string, rating int) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if rating < review.MinRating || rating > review.MaxRating {
		return fmt.Errorf("rating must be between %d and %d", review.MinRating, review.MaxRating)
	}
	text := strings.Join(args[1:], " ")

	reviews, err := newAPIClient().SubmitReview(cmd.Context(), id, rating, text)
	if err != nil {
		return err
	}

	if isJSON() {
		return printJSON(out(cmd), reviews)
	}
	fmt.Fprintf(out(cmd), "Review added to property #%d. Average rating: %.1f\n", id, review.Average(reviews))
	return nil
}

func newReviewsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reviews <id>",
		Short: "List reviews for a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			reviews, err := newAPIClient().ListReviews(cmd.Context(), id)
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(out(cmd), reviews)
			}
			printReviewList(out(cmd), reviews)
			return nil
		},
	}
}
