package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/propchain/internal/config"
	"github.com/evcraddock/propchain/internal/identity"
	"github.com/evcraddock/propchain/internal/property"
)

func newSeedCmd() *cobra.Command {
	var (
		owner string
		users []string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the demo listings",
		Long:  "Insert the demo listings that are not already present. --user adds local accounts for development without an identity provider.",
		Example: `  propchain seed --owner 0x433220a86126eFe2b8C98a723E73eBAd2D0CbaDc
  propchain seed --user user_1:alice --user user_2:bob`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, owner, users)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "wallet address recorded as the owner of seeded listings")
	cmd.Flags().StringArrayVar(&users, "user", nil, "local user to create, as id:username (repeatable)")

	return cmd
}

func runSeed(cmd *cobra.Command, owner string, users []string) error {
	accounts, err := parseUsers(users)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	database, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB(database)

	ctx := cmd.Context()
	inserted, err := property.Seed(ctx, property.NewRepository(database), property.SeedListings, owner)
	if err != nil {
		return err
	}

	store := identity.NewSQLStore(database)
	created := make([]*identity.User, 0, len(accounts))
	for _, a := range accounts {
		u, err := store.Create(ctx, a[0], a[1])
		if err != nil {
			return fmt.Errorf("creating user %s: %w", a[1], err)
		}
		created = append(created, u)
	}

	if isJSON() {
		return printJSON(out(cmd), map[string]any{"properties": inserted, "users": created})
	}

	fmt.Fprintf(out(cmd), "Seeded %d properties.\n", len(inserted))
	for _, u := range created {
		fmt.Fprintf(out(cmd), "Created user %s (%s).\n", u.Username, u.ID)
	}
	return nil
}

// parseUsers splits id:username pairs.
func parseUsers(values []string) ([][2]string, error) {
	out := make([][2]string, 0, len(values))
	for _, v := range values {
		id, name, ok := strings.Cut(v, ":")
		id, name = strings.TrimSpace(id), strings.TrimSpace(name)
		if !ok || id == "" || name == "" {
			return nil, fmt.Errorf("invalid --user %q (want id:username)", v)
		}
		out = append(out, [2]string{id, name})
	}
	return out, nil
}
