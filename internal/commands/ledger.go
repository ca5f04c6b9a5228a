package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"budgetpro/internal/backend"
	"budgetpro/internal/core"
)

func newTransactionsCommand(env Env) *cobra.Command {
	var params core.ListParams

	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List one page of an account's transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, env, func(res *backend.BackendResult) error {
				page, err := res.Query.List(cmd.Context(), params)
				if err != nil {
					return fmt.Errorf("listing transactions: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), page)
			})
		},
	}

	cmd.Flags().StringVar(&params.AccountID, "account", "", "account id (required)")
	cmd.Flags().IntVar(&params.Limit, "limit", 0, "page size, 1-100 (default 50)")
	cmd.Flags().StringVar(&params.Cursor, "cursor", "", "cursor from a previous page")
	cmd.Flags().StringVar(&params.Category, "category", "", "only transactions carrying this category")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func newSummaryCommand(env Env) *cobra.Command {
	var groupID, periodID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show allocated, spent and remaining per category for a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, env, func(res *backend.BackendResult) error {
				view, err := res.Reconciliation.ComputePeriodBudget(cmd.Context(), groupID, periodID)
				if err != nil {
					return fmt.Errorf("computing summary: %w", err)
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), view)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "CATEGORY\tALLOCATED\tSPENT\tREMAINING\n")
				for _, c := range view.Categories {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name,
						core.FormatMinorUnits(c.AllocationMinorUnits, c.Currency),
						core.FormatMinorUnits(c.SpentMinorUnits, c.Currency),
						core.FormatMinorUnits(c.RemainingMinorUnits, c.Currency))
				}
				t := view.Totals
				fmt.Fprintf(tw, "TOTAL\t%s\t%s\t%s\n",
					core.FormatMinorUnits(t.Allocated, t.Currency),
					core.FormatMinorUnits(t.Spent, t.Currency),
					core.FormatMinorUnits(t.Remaining, t.Currency))
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&groupID, "group", "", "group id (required)")
	cmd.Flags().StringVar(&periodID, "period", "", "period id (required)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw view as JSON")
	_ = cmd.MarkFlagRequired("group")
	_ = cmd.MarkFlagRequired("period")

	return cmd
}

func newAllocateCommand(env Env) *cobra.Command {
	var periodID, categoryID, amount, currency string

	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Plan a category's spend for a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			minor, err := core.ParseMinorUnits(amount, currency)
			if err != nil {
				return fmt.Errorf("parsing amount: %w", err)
			}
			return withBackend(cmd, env, func(res *backend.BackendResult) error {
				a, err := res.Budgets.SetAllocation(cmd.Context(), periodID, categoryID, minor, currency)
				if err != nil {
					return fmt.Errorf("setting allocation: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), a)
			})
		},
	}

	cmd.Flags().StringVar(&periodID, "period", "", "period id (required)")
	cmd.Flags().StringVar(&categoryID, "category", "", "category id (required)")
	cmd.Flags().StringVar(&amount, "amount", "", "decimal amount, e.g. 125.50 (required)")
	cmd.Flags().StringVar(&currency, "currency", core.DefaultCurrency, "ISO 4217 currency code")
	_ = cmd.MarkFlagRequired("period")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}
