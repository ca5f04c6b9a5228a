package ports

import (
	"context"
	"time"

	"budgetpro/internal/core"
)

// Ports for outbound adapters.
type (
	// Provider is the aggregator capability the sync engine drives.
	// An empty cursor requests the first page.
	Provider interface {
		SyncTransactions(ctx context.Context, accessToken, cursor string) (core.SyncPage, error)
	}

	// AccountLister is the optional provider capability that reports the
	// accounts behind a credential.
	AccountLister interface {
		ListAccounts(ctx context.Context, accessToken string) ([]core.ProviderAccount, error)
	}

	// TokenExchanger is the optional provider capability behind the link
	// flow: a link token for the client widget, then the public token it
	// returns traded for a long-lived access token.
	TokenExchanger interface {
		CreateLinkToken(ctx context.Context, userID string) (core.LinkToken, error)
		ExchangePublicToken(ctx context.Context, publicToken string) (accessToken string, err error)
	}

	// LedgerStore owns the transaction lifecycle.
	LedgerStore interface {
		// UpsertMany replaces any record sharing (AccountID, ID), else appends.
		UpsertMany(ctx context.Context, records []core.Transaction) error
		// ListByAccount returns a snapshot copy in no particular order.
		ListByAccount(ctx context.Context, accountID string) ([]core.Transaction, error)
		// UpdateCategory patches only the category. It returns nil, nil when
		// the transaction does not exist under the account.
		UpdateCategory(ctx context.Context, transactionID, accountID string, category []string) (*core.Transaction, error)
		// MarkRemoved tombstones the records keyed (accountID, id) for every
		// pair drawn from accountIDs and ids, and returns how many records
		// were flagged. Records under other accounts are untouched.
		MarkRemoved(ctx context.Context, accountIDs, ids []string) (int, error)
	}

	// BudgetStore owns categories, periods and allocations. Getters return
	// nil, nil for unknown ids.
	BudgetStore interface {
		CreateCategory(ctx context.Context, c core.Category) error
		GetCategory(ctx context.Context, id string) (*core.Category, error)
		// ListCategories returns the group's active (non-archived) categories.
		ListCategories(ctx context.Context, groupID string) ([]core.Category, error)
		ArchiveCategory(ctx context.Context, id string, at time.Time) error
		CreatePeriod(ctx context.Context, p core.Period) error
		GetPeriod(ctx context.Context, id string) (*core.Period, error)
		// PutAllocation inserts a, or replaces amount and currency of the
		// existing allocation for (PeriodID, CategoryID). It returns the stored row.
		PutAllocation(ctx context.Context, a core.Allocation) (core.Allocation, error)
		ListAllocations(ctx context.Context, periodID string) ([]core.Allocation, error)
	}

	// ItemStore keeps linked credentials and the accounts seen under them.
	// GetItem returns nil, nil for an unknown id.
	ItemStore interface {
		SaveItem(ctx context.Context, item core.Item) error
		GetItem(ctx context.Context, id string) (*core.Item, error)
		ListItems(ctx context.Context) ([]core.Item, error)
		// LinkAccounts records each link. A link for an account already
		// assigned to a different group is not written; its account id is
		// returned in conflicts.
		LinkAccounts(ctx context.Context, links []core.AccountLink) (conflicts []string, err error)
		ListGroupAccounts(ctx context.Context, groupID string) ([]string, error)
		ListItemAccounts(ctx context.Context, itemID string) ([]string, error)
	}

	// AccountStore keeps provider account metadata per group.
	AccountStore interface {
		// UpsertAccounts replaces any account sharing ID, else appends.
		UpsertAccounts(ctx context.Context, accounts []core.Account) error
		// ListAccountsByGroup returns the group's accounts ordered by ID.
		ListAccountsByGroup(ctx context.Context, groupID string) ([]core.Account, error)
	}

	// SecretStore seals secrets behind opaque handles.
	SecretStore interface {
		Store(ctx context.Context, secret string) (handle string, err error)
		Reveal(ctx context.Context, handle string) (string, error)
	}

	// GroupTransactionLister resolves every ledger transaction belonging to a group.
	GroupTransactionLister interface {
		ListGroupTransactions(ctx context.Context, groupID string) ([]core.Transaction, error)
	}
)
