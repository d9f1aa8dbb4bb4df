package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/evcraddock/propchain/internal/config"
	"github.com/evcraddock/propchain/internal/logging"
)

func newIndexCmd() *cobra.Command {
	var (
		once     bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Copy on-chain bid events into the bid history",
		Long:  "Read BidPlaced, BidCancelled and BidsFinalized events from the contract and append them to the bid history. Runs until interrupted unless --once is set.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, once, interval)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "sync to the current head and exit")
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default: PROPCHAIN_INDEXER_INTERVAL or 15s)")

	return cmd
}

func runIndex(cmd *cobra.Command, once bool, interval time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if interval > 0 {
		cfg.IndexerInterval = interval
	}
	logging.Setup(cfg.DevMode)

	ctx, stop := serveContext(cmd.Context())
	defer stop()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	ix, err := b.newIndexer()
	if err != nil {
		return err
	}

	if !once {
		ix.Run(ctx, cfg.IndexerInterval)
		return nil
	}

	res, err := ix.Sync(ctx)
	if err != nil {
		return err
	}
	if isJSON() {
		return printJSON(out(cmd), res)
	}
	if res.Events == 0 {
		fmt.Fprintln(out(cmd), "Bid history is up to date.")
		return nil
	}
	fmt.Fprintf(out(cmd), "Scanned blocks %d-%d: %d events, %d new rows.\n", res.From, res.To, res.Events, res.Recorded)
	return nil
}
