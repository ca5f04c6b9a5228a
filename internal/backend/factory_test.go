package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetpro/internal/config"
	"budgetpro/internal/log"
)

const fixture = `{
  "accessToken": "access-demo",
  "publicToken": "public-demo",
  "accounts": [
    {"id": "acc1", "name": "Checking", "type": "depository", "subtype": "checking", "currency": "USD", "currentBalance": 125000}
  ],
  "pages": [
    {"added": [
      {"id": "t1", "accountId": "acc1", "postedAt": "2025-01-03", "description": "Grocer", "amount": 2500, "currency": "USD", "category": ["Food"]},
      {"id": "t2", "accountId": "acc1", "postedAt": "2025-01-09", "description": "Cafe", "amount": 1500, "currency": "USD", "category": ["Food"]}
    ]}
  ]
}`

func writeFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo.json"), []byte(fixture), 0o644))
	return dir
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets", Provider: "mock"})
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "memory", Provider: "yodlee"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:  "sqlite",
		SQLiteDBPath: "/tmp/x.db",
		Provider:     "plaid",
		PlaidEnv:     "sandbox",
		AMQPURL:      "amqp://localhost",
	})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, PlaidProvider, cfg.Provider)
	assert.False(t, cfg.PublishSyncRequests)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{Type: "sheets"}.Validate())
	assert.Error(t, Config{Type: SQLiteBackend}.Validate())
	assert.Error(t, Config{Type: MemoryBackend, Provider: PlaidProvider}.Validate())
	assert.Error(t, Config{Type: MemoryBackend, PublishSyncRequests: true}.Validate())
	assert.NoError(t, Config{Type: MemoryBackend, Provider: MockProvider}.Validate())
	assert.Equal(t, []string{"sqlite", "memory"}, GetBackendTypeStrings())
}

func assertWiredPipeline(t *testing.T, res *BackendResult) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, res.Ready(ctx))
	assert.Nil(t, res.Queue)

	link, err := res.Items.CreateLinkToken(ctx, "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, link.Token)

	item, err := res.Items.LinkPublicToken(ctx, "g1", "public-demo")
	require.NoError(t, err)
	result, queued, err := res.Items.RequestSync(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, queued)
	assert.Equal(t, 2, result.Added)

	accounts, err := res.Accounts.List(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "Checking", accounts[0].Name)
	assert.Equal(t, item.ID, accounts[0].ItemID)
	assert.Equal(t, int64(125000), accounts[0].CurrentBalance)

	food, err := res.Budgets.CreateCategory(ctx, "g1", "Food")
	require.NoError(t, err)
	period, err := res.Budgets.CreatePeriod(ctx, "g1", "2025-01-01")
	require.NoError(t, err)
	_, err = res.Budgets.SetAllocation(ctx, period.ID, food.ID, 10000, "USD")
	require.NoError(t, err)

	view, err := res.Reconciliation.ComputePeriodBudget(ctx, "g1", period.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), view.Totals.Spent)
	assert.Equal(t, int64(6000), view.Totals.Remaining)
}

func TestCreateMemoryBackend(t *testing.T) {
	f := NewFactory(log.Discard())
	res, err := f.CreateBackend(context.Background(), Config{
		Type:               MemoryBackend,
		Provider:           MockProvider,
		ProviderFixtureDir: writeFixtures(t),
	})
	require.NoError(t, err)
	defer res.Cleanup()

	assertWiredPipeline(t, res)
}

func TestCreateSQLiteBackend(t *testing.T) {
	f := NewFactory(log.Discard())
	res, err := f.CreateBackend(context.Background(), Config{
		Type:               SQLiteBackend,
		SQLiteDBPath:       filepath.Join(t.TempDir(), "nested", "budgetpro.db"),
		Provider:           MockProvider,
		ProviderFixtureDir: writeFixtures(t),
	})
	require.NoError(t, err)

	assertWiredPipeline(t, res)
	assert.NoError(t, res.Cleanup())
}

func TestCreateBackendRejectsBadVaultKey(t *testing.T) {
	f := NewFactory(log.Discard())
	_, err := f.CreateBackend(context.Background(), Config{
		Type:     MemoryBackend,
		Provider: MockProvider,
		VaultKey: "not base64!",
	})
	assert.Error(t, err)
}
