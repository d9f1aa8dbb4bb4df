package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/evcraddock/propchain/internal/bid"
	"github.com/evcraddock/propchain/internal/bidding"
	"github.com/evcraddock/propchain/internal/config"
	"github.com/evcraddock/propchain/internal/gallery"
	"github.com/evcraddock/propchain/internal/geo"
	"github.com/evcraddock/propchain/internal/identity"
	"github.com/evcraddock/propchain/internal/logging"
	"github.com/evcraddock/propchain/internal/passkey"
	"github.com/evcraddock/propchain/internal/property"
	"github.com/evcraddock/propchain/internal/review"
	"github.com/evcraddock/propchain/internal/reward"
	"github.com/evcraddock/propchain/internal/web"
)

func newServeCmd() *cobra.Command {
	var (
		port    int
		noIndex bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the HTTP API. When a chain endpoint is configured the bid indexer runs alongside it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, port, noIndex)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (default: PROPCHAIN_PORT or 8080)")
	cmd.Flags().BoolVar(&noIndex, "no-index", false, "do not run the bid indexer")

	return cmd
}

func runServe(cmd *cobra.Command, port int, noIndex bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Port = port
	}
	logging.Setup(cfg.DevMode)

	ctx, stop := serveContext(cmd.Context())
	defer stop()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	deps, err := buildDeps(b)
	if err != nil {
		return err
	}

	if b.ledger != nil && !noIndex {
		ix, err := b.newIndexer()
		if err != nil {
			return err
		}
		go ix.Run(ctx, cfg.IndexerInterval)
	}

	fmt.Fprintf(out(cmd), "Listening on http://localhost:%d\n", cfg.Port)
	return web.NewServer(deps).ListenAndServe(ctx, cfg.Port)
}

// buildDeps assembles the services behind the HTTP API.
func buildDeps(b *backend) (web.Deps, error) {
	cfg := b.cfg
	props := property.NewRepository(b.db)

	var users identity.Store
	if cfg.ClerkSecretKey != "" {
		clerk, err := identity.NewClerkClient(cfg.ClerkSecretKey, cfg.ClerkAPIURL)
		if err != nil {
			return web.Deps{}, err
		}
		users = clerk
	} else {
		slog.Warn("no identity provider configured, using the local user store")
		users = identity.NewSQLStore(b.db)
	}

	opts := reward.Options{Publisher: b.pub}
	if b.redis != nil {
		opts.Locker = reward.NewRedisLocker(b.redis, lockTTL, lockWait)
	}
	if cfg.RewardRequireGPS {
		opts.Locator = geo.NewLocator(geo.NewGeocoder(cfg.NominatimURL))
	}

	var store gallery.ObjectStore
	if cfg.StorageEnabled() {
		s3, err := gallery.NewS3Store(gallery.S3Config{
			Endpoint:      cfg.S3Endpoint,
			Region:        cfg.S3Region,
			Bucket:        cfg.S3Bucket,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		if err != nil {
			return web.Deps{}, err
		}
		store = s3
	} else {
		slog.Warn("image storage not configured, uploads are disabled")
	}

	deps := web.Deps{
		Properties:  props,
		Reviews:     review.NewRepository(b.db),
		Gallery:     gallery.NewService(gallery.NewRepository(b.db), store),
		Bids:        bid.NewRepository(b.db),
		Rewards:     reward.NewService(users, opts),
		Publisher:   b.pub,
		DevMode:     cfg.DevMode,
		CORSOrigins: cfg.CORSOrigins,
	}
	if cfg.JWTSecret != "" {
		deps.Verifier = identity.NewVerifier(cfg.JWTSecret)
	}
	if cfg.PasskeysEnabled() {
		svc, err := passkey.NewService(passkey.NewStore(b.db), passkey.Config{
			PublicURL:   cfg.PublicURL,
			TokenSecret: cfg.JWTSecret,
		})
		if err != nil {
			return web.Deps{}, err
		}
		deps.Passkeys = svc
	}
	if b.ledger != nil {
		deps.Reconciler = bidding.NewService(b.ledger, bidding.LocalStore{Repo: props})
	}

	return deps, nil
}

// serveContext is used by commands that run until interrupted.
func serveContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
