package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetpro/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "budget.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func sampleTx(account, id string, amount int64, category []string) core.Transaction {
	return core.Transaction{
		ID:          id,
		AccountID:   account,
		PostedAt:    "2025-03-01",
		Description: "Coffee " + id,
		Amount:      amount,
		Currency:    "USD",
		Category:    category,
		ModifiedAt:  fixedNow,
	}
}

func TestMigrationsApplyOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	// reopening runs migrations again without error
	repo, err = NewSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()

	version, dirty, err := MigrationVersion(path)
	require.NoError(t, err)
	assert.Equal(t, uint(4), version)
	assert.False(t, dirty)
	assert.NoError(t, repo.Ping(context.Background()))
}

func TestRepositoryUpsertAndList(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.UpsertMany(ctx, []core.Transaction{
		sampleTx("acc1", "t1", 450, []string{"Food", "Coffee"}),
		sampleTx("acc1", "t2", 1200, nil),
		sampleTx("acc2", "t1", 99, nil),
	}))

	modified := sampleTx("acc1", "t1", 500, []string{"Food"})
	modified.Pending = true
	require.NoError(t, repo.UpsertMany(ctx, []core.Transaction{modified}))

	got, err := repo.ListByAccount(ctx, "acc1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	byID := map[string]core.Transaction{}
	for _, tx := range got {
		byID[tx.ID] = tx
	}
	assert.Equal(t, int64(500), byID["t1"].Amount)
	assert.True(t, byID["t1"].Pending)
	assert.Equal(t, []string{"Food"}, byID["t1"].Category)
	assert.Nil(t, byID["t2"].Category)
	assert.True(t, byID["t1"].ModifiedAt.Equal(fixedNow))

	other, err := repo.ListByAccount(ctx, "acc2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, int64(99), other[0].Amount)
}

func TestRepositoryUpdateCategory(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.UpsertMany(ctx, []core.Transaction{sampleTx("acc1", "t1", 450, []string{"Food"})}))

	updated, err := repo.UpdateCategory(ctx, "t1", "acc1", []string{"Travel", "Flights"})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, []string{"Travel", "Flights"}, updated.Category)
	assert.Equal(t, int64(450), updated.Amount)

	missing, err := repo.UpdateCategory(ctx, "t1", "acc2", []string{"Travel"})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepositoryMarkRemovedIsScopedToAccounts(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.UpsertMany(ctx, []core.Transaction{
		sampleTx("acc-a", "t1", 1, nil),
		sampleTx("acc-b", "t1", 2, nil),
		sampleTx("acc-b", "t2", 3, nil),
		sampleTx("acc-c", "t2", 4, nil),
	}))

	n, err := repo.MarkRemoved(ctx, []string{"acc-b", "acc-c"}, []string{"t1", "t2", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = repo.MarkRemoved(ctx, []string{"acc-b"}, []string{"t1"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = repo.MarkRemoved(ctx, nil, []string{"t1"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	a, err := repo.ListByAccount(ctx, "acc-a")
	require.NoError(t, err)
	require.Len(t, a, 1)
	assert.False(t, a[0].Removed, "same id under another account is untouched")

	b, err := repo.ListByAccount(ctx, "acc-b")
	require.NoError(t, err)
	for _, tx := range b {
		assert.True(t, tx.Removed, tx.ID)
	}
}

func TestRepositoryCategories(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.CreateCategory(ctx, core.Category{ID: "cat_1", GroupID: "g1", Name: "Food", CreatedAt: fixedNow}))
	err := repo.CreateCategory(ctx, core.Category{ID: "cat_2", GroupID: "g1", Name: "Food", CreatedAt: fixedNow})
	assert.ErrorIs(t, err, core.ErrCategoryExists)

	require.NoError(t, repo.ArchiveCategory(ctx, "cat_1", fixedNow.Add(time.Hour)))
	assert.ErrorIs(t, repo.ArchiveCategory(ctx, "cat_missing", fixedNow), core.ErrNotFound)

	active, err := repo.ListCategories(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, active)

	archived, err := repo.GetCategory(ctx, "cat_1")
	require.NoError(t, err)
	require.NotNil(t, archived)
	assert.True(t, archived.IsArchived())

	require.NoError(t, repo.CreateCategory(ctx, core.Category{ID: "cat_3", GroupID: "g1", Name: "Food", CreatedAt: fixedNow}))
	active, err = repo.ListCategories(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "cat_3", active[0].ID)

	missing, err := repo.GetCategory(ctx, "cat_missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepositoryPeriodsAndAllocations(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.CreatePeriod(ctx, core.Period{ID: "per_1", GroupID: "g1", StartDate: "2025-03-01", Type: core.MonthPeriod, CreatedAt: fixedNow}))
	p, err := repo.GetPeriod(ctx, "per_1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "2025-03-01", p.StartDate)
	assert.Equal(t, core.MonthPeriod, p.Type)

	none, err := repo.GetPeriod(ctx, "per_missing")
	require.NoError(t, err)
	assert.Nil(t, none)

	first, err := repo.PutAllocation(ctx, core.Allocation{ID: "alloc_1", PeriodID: "per_1", CategoryID: "cat_1", Amount: 10000, Currency: "USD", CreatedAt: fixedNow})
	require.NoError(t, err)
	assert.Nil(t, first.ModifiedAt)

	second, err := repo.PutAllocation(ctx, core.Allocation{ID: "alloc_2", PeriodID: "per_1", CategoryID: "cat_1", Amount: 25000, Currency: "USD", CreatedAt: fixedNow.Add(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, "alloc_1", second.ID)
	assert.Equal(t, int64(25000), second.Amount)
	require.NotNil(t, second.ModifiedAt)
	assert.True(t, second.ModifiedAt.Equal(fixedNow.Add(time.Minute)))

	all, err := repo.ListAllocations(ctx, "per_1")
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestRepositoryItems(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.SaveItem(ctx, core.Item{ID: "item_b", GroupID: "g1", SecretHandle: "h1", CreatedAt: fixedNow}))
	require.NoError(t, repo.SaveItem(ctx, core.Item{ID: "item_a", GroupID: "g2", SecretHandle: "h2", CreatedAt: fixedNow}))

	synced := fixedNow.Add(time.Hour)
	item, err := repo.GetItem(ctx, "item_b")
	require.NoError(t, err)
	require.NotNil(t, item)
	item.LastSyncedAt = &synced
	require.NoError(t, repo.SaveItem(ctx, *item))

	items, err := repo.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "item_a", items[0].ID)
	require.NotNil(t, items[1].LastSyncedAt)
	assert.True(t, items[1].LastSyncedAt.Equal(synced))

	missing, err := repo.GetItem(ctx, "item_missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	conflicts, err := repo.LinkAccounts(ctx, []core.AccountLink{
		{AccountID: "acc2", GroupID: "g1", ItemID: "item_b"},
		{AccountID: "acc1", GroupID: "g1", ItemID: "item_b"},
		{AccountID: "acc3", GroupID: "g2", ItemID: "item_a"},
	})
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	// relinking is idempotent
	conflicts, err = repo.LinkAccounts(ctx, []core.AccountLink{{AccountID: "acc1", GroupID: "g1", ItemID: "item_b"}})
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	accounts, err := repo.ListGroupAccounts(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"acc1", "acc2"}, accounts)

	byItem, err := repo.ListItemAccounts(ctx, "item_a")
	require.NoError(t, err)
	assert.Equal(t, []string{"acc3"}, byItem)
}

func TestRepositoryLinkAccountsKeepsExistingGroup(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.LinkAccounts(ctx, []core.AccountLink{{AccountID: "acc1", GroupID: "g1", ItemID: "item_1"}})
	require.NoError(t, err)

	conflicts, err := repo.LinkAccounts(ctx, []core.AccountLink{
		{AccountID: "acc1", GroupID: "g2", ItemID: "item_2"},
		{AccountID: "acc2", GroupID: "g2", ItemID: "item_2"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"acc1"}, conflicts)

	g1, err := repo.ListGroupAccounts(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"acc1"}, g1)
	g2, err := repo.ListGroupAccounts(ctx, "g2")
	require.NoError(t, err)
	assert.Equal(t, []string{"acc2"}, g2)
}

func TestRepositoryAccounts(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	synced := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.UpsertAccounts(ctx, []core.Account{
		{ID: "acc2", GroupID: "g1", ItemID: "item_1", Name: "Savings", Type: "depository", Subtype: "savings", Currency: "USD", CurrentBalance: 50000, LastSyncedAt: synced},
		{ID: "acc1", GroupID: "g1", ItemID: "item_1", Name: "Checking", Mask: "0000", Type: "depository", Currency: "USD", CurrentBalance: 1200, LastSyncedAt: synced},
		{ID: "acc9", GroupID: "g2", ItemID: "item_2", Name: "Card", Type: "credit", Currency: "EUR", LastSyncedAt: synced},
	}))
	later := synced.Add(time.Hour)
	require.NoError(t, repo.UpsertAccounts(ctx, []core.Account{
		{ID: "acc1", GroupID: "g1", ItemID: "item_1", Name: "Checking", Mask: "0000", Type: "depository", Currency: "USD", CurrentBalance: 900, LastSyncedAt: later},
	}))

	got, err := repo.ListAccountsByGroup(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "acc1", got[0].ID)
	assert.Equal(t, int64(900), got[0].CurrentBalance)
	assert.Equal(t, "0000", got[0].Mask)
	assert.Empty(t, got[0].Subtype)
	assert.True(t, got[0].LastSyncedAt.Equal(later))
	assert.Equal(t, "savings", got[1].Subtype)

	none, err := repo.ListAccountsByGroup(ctx, "g3")
	require.NoError(t, err)
	assert.Empty(t, none)
}
