package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/m3connect/portal/internal/storage"
	"github.com/m3connect/portal/internal/storage/postgres"
)

// Env is what the commands operate on.
type Env struct {
	Profiles storage.ProfileStore
	Leads    storage.LeadStore
	close    func()
}

type envKey struct{}

// WithEnv attaches stores to ctx; commands run against them instead of
// opening DATABASE_URL.
func WithEnv(ctx context.Context, env *Env) context.Context {
	return context.WithValue(ctx, envKey{}, env)
}

func envFrom(ctx context.Context) *Env {
	env, _ := ctx.Value(envKey{}).(*Env)
	return env
}

// NewRootCommand builds the portalctl command tree.
func NewRootCommand() *cobra.Command {
	var databaseURL string

	root := &cobra.Command{
		Use:   "portalctl",
		Short: "Portal back-office CLI",
		Long: `portalctl moderates member accounts and reviews inbound leads directly
against the portal database.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFrom(cmd.Context()) != nil {
				return nil
			}
			if databaseURL == "" {
				return errors.New("--database-url or DATABASE_URL is required")
			}
			store, err := postgres.NewStore(cmd.Context(), databaseURL)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			leads := postgres.NewLeadStoreFromStore(store)
			env := &Env{Profiles: store, Leads: leads, close: func() {
				_ = leads.Close()
				store.Close()
			}}
			cmd.SetContext(WithEnv(cmd.Context(), env))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if env := envFrom(cmd.Context()); env != nil && env.close != nil {
				env.close()
			}
		},
	}

	root.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection string")
	root.AddCommand(newUsersCommand())
	root.AddCommand(newLeadsCommand())
	return root
}

// Execute runs the root command.
func Execute() {
	_ = godotenv.Load()
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
