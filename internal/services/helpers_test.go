package services

import (
	"context"
	"time"

	"budgetpro/internal/core"
	"budgetpro/internal/memory"
	providermem "budgetpro/internal/provider/memory"
	"budgetpro/internal/vault"
)

var testNow = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func record(id, account, postedAt string, amount int64, category ...string) core.ProviderTransaction {
	r := core.ProviderTransaction{
		ID:          id,
		AccountID:   account,
		PostedAt:    postedAt,
		Description: "purchase " + id,
		Amount:      amount,
		Currency:    "USD",
	}
	if len(category) > 0 {
		r.Category = category
	}
	return r
}

func ledgerTx(id, account, postedAt string, amount int64, category ...string) core.Transaction {
	t := core.Transaction{
		ID:         id,
		AccountID:  account,
		PostedAt:   postedAt,
		Amount:     amount,
		Currency:   "USD",
		ModifiedAt: testNow,
	}
	if len(category) > 0 {
		t.Category = category
	}
	return t
}

type fixture struct {
	store    *memory.Store
	provider *providermem.Provider
	sync     *SyncService
	accounts *AccountService
	items    *ItemService
	budgets  *BudgetService
	recon    *ReconciliationService
}

func newFixture() *fixture {
	store := memory.New()
	provider := providermem.New()
	v, err := vault.NewFromBase64("")
	if err != nil {
		panic(err)
	}
	syncSvc := NewSyncService(provider, store, WithClock(fixedClock))
	accounts := NewAccountService(provider, store)
	accounts.now = fixedClock
	items := NewItemService(store, v, store, syncSvc).WithAccounts(accounts).WithTokenExchanger(provider)
	items.now = fixedClock
	budgets := NewBudgetService(store)
	budgets.now = fixedClock
	return &fixture{
		store:    store,
		provider: provider,
		sync:     syncSvc,
		accounts: accounts,
		items:    items,
		budgets:  budgets,
		recon:    NewReconciliationService(store, items),
	}
}

// staticGroup serves a fixed transaction list for any group.
type staticGroup []core.Transaction

func (s staticGroup) ListGroupTransactions(context.Context, string) ([]core.Transaction, error) {
	return []core.Transaction(s), nil
}

func int64p(v int64) *int64 { return &v }
