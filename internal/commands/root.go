// Package commands implements the budgetctl operator CLI.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"budgetpro/internal/backend"
	"budgetpro/internal/config"
)

// Opener builds the backend a command runs against. Commands call the
// returned result's Cleanup when they finish.
type Opener func(ctx context.Context) (*backend.BackendResult, error)

// Env is what every subcommand shares.
type Env struct {
	Config *config.Config
	Open   Opener
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand(env Env) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "budgetctl",
		Short: "Operate a budgetpro deployment",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newMigrateCommand(env),
		newLinkCommand(env),
		newAccountsCommand(env),
		newSyncCommand(env),
		newTransactionsCommand(env),
		newSummaryCommand(env),
		newAllocateCommand(env),
	)

	return rootCmd
}

// withBackend opens the backend for the duration of fn.
func withBackend(cmd *cobra.Command, env Env, fn func(*backend.BackendResult) error) (err error) {
	res, err := env.Open(cmd.Context())
	if err != nil {
		return fmt.Errorf("opening backend: %w", err)
	}
	defer func() {
		if cerr := res.Cleanup(); cerr != nil && err == nil {
			err = fmt.Errorf("closing backend: %w", cerr)
		}
	}()
	return fn(res)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
