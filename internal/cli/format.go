package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/evcraddock/propchain/internal/bid"
	"github.com/evcraddock/propchain/internal/gallery"
	"github.com/evcraddock/propchain/internal/property"
	"github.com/evcraddock/propchain/internal/review"
)

// printJSON marshals v as indented JSON and writes it to w.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printPropertySummary prints a single property summary in text format.
func printPropertySummary(w io.Writer, p *property.Property) {
	fmt.Fprintf(w, "Property #%d\n", p.ID)
	if p.Title != "" {
		fmt.Fprintf(w, "  Title:     %s\n", p.Title)
	}
	fmt.Fprintf(w, "  Address:   %s\n", p.Address)
	if p.Broker != "" {
		fmt.Fprintf(w, "  Broker:    %s\n", p.Broker)
	}
	fmt.Fprintf(w, "  Price:     %s\n", formatPrice(p.Price))
	fmt.Fprintf(w, "  Beds:      %s\n", orDash(p.Beds))
	fmt.Fprintf(w, "  Baths:     %s\n", orDash(p.Baths))
	fmt.Fprintf(w, "  Sqft:      %s\n", orDash(p.Sqft))
	if p.URL != "" {
		fmt.Fprintf(w, "  URL:       %s\n", p.URL)
	}
	fmt.Fprintf(w, "  Available: %s\n", yesNo(p.Available))
	if p.OwnerWallet != "" {
		fmt.Fprintf(w, "  Owner:     %s\n", p.OwnerWallet)
	}
}

// printPropertyTable prints a list of properties as a formatted table.
func printPropertyTable(out io.Writer, props []*property.Property) error {
	if len(props) == 0 {
		fmt.Fprintln(out, "No properties found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "ID\tTITLE\tPRICE\tBED\tBATH\tSQFT\tFOR SALE"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if _, err := fmt.Fprintln(w, "--\t-----\t-----\t---\t----\t----\t--------"); err != nil {
		return fmt.Errorf("writing table separator: %w", err)
	}

	for _, p := range props {
		if _, err := fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, truncate(p.DisplayTitle(), 40), formatPrice(p.Price),
			orDash(p.Beds), orDash(p.Baths), orDash(p.Sqft), yesNo(p.Available)); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing table: %w", err)
	}

	fmt.Fprintf(out, "\nTotal: %d properties\n", len(props))
	return nil
}

// printReviewList prints reviews in text format.
func printReviewList(w io.Writer, reviews []*review.Review) {
	if len(reviews) == 0 {
		fmt.Fprintln(w, "No reviews.")
		return
	}

	for _, r := range reviews {
		fmt.Fprintf(w, "[%s] %s %s\n", r.Date.Format("2006-01-02 15:04"), formatRating(r.Rating), r.Author)
		if r.Comment != "" {
			fmt.Fprintf(w, "  %s\n", r.Comment)
		}
		fmt.Fprintln(w)
	}
}

// printImageList prints image URLs with their descriptions.
func printImageList(w io.Writer, images []*gallery.Image) {
	if len(images) == 0 {
		fmt.Fprintln(w, "No images.")
		return
	}
	for _, img := range images {
		fmt.Fprintf(w, "  #%d %s\n      %s\n", img.ID, img.Description, img.ImageURL)
	}
}

// printBidTable prints bid history rows with amounts in whole tokens.
func printBidTable(out io.Writer, entries []*bid.Entry) error {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No bids.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "DATE\tSTATUS\tWALLET\tAMOUNT\tTX"); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format("2006-01-02 15:04"), e.Status, shortHex(e.WalletAddress),
			bid.FormatAmount(e.Amount), shortHex(e.TxHash)); err != nil {
			return fmt.Errorf("writing table row: %w", err)
		}
	}
	return w.Flush()
}

// formatPrice formats a listing price as dollars with grouped thousands.
func formatPrice(price string) string {
	if strings.TrimSpace(price) == "" {
		return "-"
	}
	return "$" + property.FormatPrice(price)
}

// formatRating returns a star representation of a rating (1-5).
func formatRating(rating int) string {
	rating = max(review.MinRating, min(rating, review.MaxRating))
	return strings.Repeat("★", rating) + strings.Repeat("☆", review.MaxRating-rating)
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// shortHex abbreviates a 0x-prefixed hash or address.
func shortHex(s string) string {
	if len(s) <= 14 {
		return s
	}
	return s[:8] + "…" + s[len(s)-4:]
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
