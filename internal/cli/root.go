// Package cli defines the cobra command tree for propchain.
package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/evcraddock/propchain/internal/client"
	"github.com/evcraddock/propchain/internal/config"
	"github.com/evcraddock/propchain/internal/db"
)

var (
	flagFormat string
	flagDB     string
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "propchain",
		Short:         "Browse, review and bid on property listings",
		Long:          "A real-estate marketplace: browse listings, write reviews, upload images, earn and transfer coins, and bid on properties through an on-chain auction.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path for serve/index/seed (default: ~/.propchain/propchain.db)")

	root.AddCommand(
		newServeCmd(),
		newIndexCmd(),
		newSeedCmd(),
		newListCmd(),
		newShowCmd(),
		newReviewCmd(),
		newReviewsCmd(),
		newImagesCmd(),
		newBidsCmd(),
		newBidCmd(),
		newCancelCmd(),
		newFinalizeCmd(),
		newBuyCmd(),
		newReconcileCmd(),
		newCoinsCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	return root
}

// openDB opens the store named by the server config. --db overrides the
// SQLite path.
func openDB(cfg config.Config) (*db.DB, error) {
	if cfg.DBDriver == db.DriverPostgres {
		return db.Open(db.DriverPostgres, cfg.DBDSN)
	}

	path := flagDB
	if path == "" {
		path = cfg.DBDSN
	}
	if path == "" {
		var err error
		path, err = db.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return db.OpenSQLite(path)
}

// closeDB closes the database, logging any error to stderr.
func closeDB(database *db.DB) {
	if err := database.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing database: %v\n", err)
	}
}

// newAPIClient creates an HTTP client for the propchain API.
func newAPIClient() *client.Client {
	return client.New(getServerURL(), getToken()).WithCaller(getCaller())
}

// isJSON returns true if the --format flag is set to json.
func isJSON() bool {
	return flagFormat == "json"
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}

// parseID parses a positional property ID.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid property ID: %s", s)
	}
	return id, nil
}
