package commands_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetpro/internal/backend"
	"budgetpro/internal/commands"
	"budgetpro/internal/config"
	"budgetpro/internal/core"
	"budgetpro/internal/log"
	providermem "budgetpro/internal/provider/memory"
)

const fixture = `{
  "accessToken": "access-demo",
  "publicToken": "public-demo",
  "accounts": [
    {"id": "acc1", "name": "Checking", "type": "depository", "subtype": "checking", "currency": "USD", "currentBalance": 125050}
  ],
  "pages": [
    {"added": [
      {"id": "t1", "accountId": "acc1", "postedAt": "2025-01-03", "description": "Grocer", "amount": 2500, "currency": "USD", "category": ["Food"]},
      {"id": "t2", "accountId": "acc1", "postedAt": "2025-01-09", "description": "Cafe", "amount": 1500, "currency": "USD", "category": ["Food"]},
      {"id": "t3", "accountId": "acc1", "postedAt": "2025-01-11", "description": "Train", "amount": 800, "currency": "USD", "category": ["Travel"]}
    ]}
  ]
}`

// sharedBackend keeps one memory backend alive across several command runs.
func sharedBackend(t *testing.T) (commands.Env, *backend.BackendResult) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo.json"), []byte(fixture), 0o644))

	res, err := backend.NewFactory(log.Discard()).CreateBackend(context.Background(), backend.Config{
		Type:               backend.MemoryBackend,
		Provider:           backend.MockProvider,
		ProviderFixtureDir: dir,
	})
	require.NoError(t, err)

	env := commands.Env{
		Config: &config.Config{SyncConcurrency: 2},
		Open: func(context.Context) (*backend.BackendResult, error) {
			shared := *res
			shared.Cleanup = func() error { return nil }
			return &shared, nil
		},
	}
	return env, res
}

func run(t *testing.T, env commands.Env, args ...string) (string, error) {
	t.Helper()
	cmd := commands.NewRootCommand(env)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLinkSyncAndList(t *testing.T) {
	env, _ := sharedBackend(t)

	out, err := run(t, env, "link", "--group", "g1", "--token", "access-demo")
	require.NoError(t, err)
	var item core.Item
	require.NoError(t, json.Unmarshal([]byte(out), &item))
	assert.NotEmpty(t, item.ID)
	assert.NotContains(t, out, "access-demo")

	out, err = run(t, env, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, item.ID+" added=3 modified=0 removed=0")

	out, err = run(t, env, "transactions", "--account", "acc1", "--limit", "2")
	require.NoError(t, err)
	var page core.ListResult
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Len(t, page.Items, 2)
	assert.Equal(t, "t3", page.Items[0].ID)
	assert.Equal(t, "2", page.NextCursor)

	out, err = run(t, env, "transactions", "--account", "acc1", "--category", "Travel")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Len(t, page.Items, 1)
}

func TestSyncSingleItem(t *testing.T) {
	env, res := sharedBackend(t)
	item, err := res.Items.Link(context.Background(), "g1", "access-demo")
	require.NoError(t, err)

	out, err := run(t, env, "sync", "--item", item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID+" added=3 modified=0 removed=0\n", out)

	_, err = run(t, env, "sync", "--item", "item_missing")
	assert.ErrorIs(t, err, core.ErrItemNotFound)
}

func TestSyncReportsFailures(t *testing.T) {
	env, res := sharedBackend(t)
	_, err := res.Items.Link(context.Background(), "g1", "access-demo")
	require.NoError(t, err)
	res.Provider.(*providermem.Provider).FailWith("access-demo", errors.New("ITEM_LOGIN_REQUIRED"))

	out, err := run(t, env, "sync")
	require.Error(t, err)
	assert.Contains(t, out, "failed")
	assert.Contains(t, err.Error(), "1 of 1 items failed")
}

func TestAllocateAndSummary(t *testing.T) {
	env, res := sharedBackend(t)
	ctx := context.Background()

	item, err := res.Items.Link(ctx, "g1", "access-demo")
	require.NoError(t, err)
	_, err = res.Items.Sync(ctx, item.ID)
	require.NoError(t, err)
	food, err := res.Budgets.CreateCategory(ctx, "g1", "Food")
	require.NoError(t, err)
	period, err := res.Budgets.CreatePeriod(ctx, "g1", "2025-01-01")
	require.NoError(t, err)

	_, err = run(t, env, "allocate", "--period", period.ID, "--category", food.ID, "--amount", "100.00")
	require.NoError(t, err)

	out, err := run(t, env, "summary", "--group", "g1", "--period", period.ID)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"Food", "100.00", "40.00", "60.00"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"TOTAL", "100.00", "40.00", "60.00"}, strings.Fields(lines[2]))

	out, err = run(t, env, "summary", "--group", "g1", "--period", period.ID, "--json")
	require.NoError(t, err)
	var view core.PeriodBudgetView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, int64(4000), view.Totals.Spent)

	_, err = run(t, env, "summary", "--group", "g2", "--period", period.ID)
	assert.ErrorIs(t, err, core.ErrPeriodNotFound)

	_, err = run(t, env, "allocate", "--period", period.ID, "--category", food.ID, "--amount", "ten")
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestRequiredFlags(t *testing.T) {
	env, _ := sharedBackend(t)

	_, err := run(t, env, "link", "--group", "g1")
	assert.Error(t, err)
	_, err = run(t, env, "transactions")
	assert.Error(t, err)
	_, err = run(t, env, "summary", "--group", "g1")
	assert.Error(t, err)
}

func TestMigrate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "budget.db")
	env := commands.Env{Config: &config.Config{SQLiteDBPath: dbPath}}

	out, err := run(t, env, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "dirty=false")
	assert.NotContains(t, out, "schema version 0 ")

	_, err = run(t, env, "migrate", "--db", "")
	assert.Error(t, err)
}

func TestAccountsAfterPublicTokenLink(t *testing.T) {
	env, _ := sharedBackend(t)

	out, err := run(t, env, "link", "--group", "g1", "--public-token", "public-demo")
	require.NoError(t, err)
	var item core.Item
	require.NoError(t, json.Unmarshal([]byte(out), &item))
	assert.Equal(t, "g1", item.GroupID)

	_, err = run(t, env, "sync", "--item", item.ID)
	require.NoError(t, err)

	out, err = run(t, env, "accounts", "--group", "g1")
	require.NoError(t, err)
	assert.Contains(t, out, "depository/checking")
	assert.Contains(t, out, "1250.50")
	assert.Contains(t, out, item.ID)

	out, err = run(t, env, "accounts", "--group", "g1", "--json")
	require.NoError(t, err)
	var accounts []core.Account
	require.NoError(t, json.Unmarshal([]byte(out), &accounts))
	require.Len(t, accounts, 1)
	assert.Equal(t, int64(125050), accounts[0].CurrentBalance)

	_, err = run(t, env, "link", "--group", "g1", "--token", "a", "--public-token", "public-demo")
	assert.Error(t, err)
	_, err = run(t, env, "link", "--group", "g1")
	assert.Error(t, err)
}
