package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"budgetpro/internal/backend"
	"budgetpro/internal/core"
	"budgetpro/internal/services"
)

func newLinkCommand(env Env) *cobra.Command {
	var groupID, token, publicToken string

	cmd := &cobra.Command{
		Use:   "link",
		Short: "Link an aggregator access token, or a public token from the link widget, to a group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, env, func(res *backend.BackendResult) error {
				var (
					item core.Item
					err  error
				)
				if publicToken != "" {
					item, err = res.Items.LinkPublicToken(cmd.Context(), groupID, publicToken)
				} else {
					item, err = res.Items.Link(cmd.Context(), groupID, token)
				}
				if err != nil {
					return fmt.Errorf("linking item: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), item)
			})
		},
	}

	cmd.Flags().StringVar(&groupID, "group", "", "group id (required)")
	cmd.Flags().StringVar(&token, "token", "", "aggregator access token")
	cmd.Flags().StringVar(&publicToken, "public-token", "", "public token to exchange for an access token")
	_ = cmd.MarkFlagRequired("group")
	cmd.MarkFlagsOneRequired("token", "public-token")
	cmd.MarkFlagsMutuallyExclusive("token", "public-token")

	return cmd
}

func newAccountsCommand(env Env) *cobra.Command {
	var groupID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List the accounts ingested for a group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, env, func(res *backend.BackendResult) error {
				accounts, err := res.Accounts.List(cmd.Context(), groupID)
				if err != nil {
					return fmt.Errorf("listing accounts: %w", err)
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), accounts)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "ID\tNAME\tTYPE\tBALANCE\tCURRENCY\tITEM\n")
				for _, a := range accounts {
					kind := a.Type
					if a.Subtype != "" {
						kind += "/" + a.Subtype
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", a.ID, a.Name, kind,
						core.FormatMinorUnits(a.CurrentBalance, a.Currency), a.Currency, a.ItemID)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&groupID, "group", "", "group id (required)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the accounts as JSON")
	_ = cmd.MarkFlagRequired("group")

	return cmd
}

func newSyncCommand(env Env) *cobra.Command {
	var itemID string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync one item, or every linked item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, env, func(res *backend.BackendResult) error {
				out := cmd.OutOrStdout()
				if itemID != "" {
					result, err := res.Items.Sync(cmd.Context(), itemID)
					if err != nil {
						return fmt.Errorf("syncing %s: %w", itemID, err)
					}
					fmt.Fprintf(out, "%s added=%d modified=%d removed=%d\n", itemID, result.Added, result.Modified, result.Removed)
					return nil
				}

				schedCfg := services.DefaultSyncSchedulerConfig()
				if env.Config != nil {
					schedCfg.Concurrency = env.Config.SyncConcurrency
				}
				report, err := services.NewSyncScheduler(res.Items, schedCfg).RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				for _, o := range report.Items {
					if o.Err != nil {
						fmt.Fprintf(out, "%s failed: %v\n", o.ItemID, o.Err)
						continue
					}
					fmt.Fprintf(out, "%s added=%d modified=%d removed=%d\n", o.ItemID, o.Result.Added, o.Result.Modified, o.Result.Removed)
				}
				if report.Failed > 0 {
					return fmt.Errorf("%d of %d items failed to sync", report.Failed, len(report.Items))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&itemID, "item", "", "sync only this item")

	return cmd
}
