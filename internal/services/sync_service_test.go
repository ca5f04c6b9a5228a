package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetpro/internal/core"
	"budgetpro/internal/memory"
)

func TestFullSyncPaginationCompleteness(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.provider.SetPages("tok",
		core.SyncPage{Added: []core.ProviderTransaction{record("t1", "acc1", "2025-01-01", 100), record("t2", "acc1", "2025-01-02", 200)}},
		core.SyncPage{Modified: []core.ProviderTransaction{record("t1", "acc1", "2025-01-01", 150)}},
		core.SyncPage{Removed: []core.RemovedTransaction{{ID: "t2"}}, Added: []core.ProviderTransaction{record("t3", "acc2", "2025-01-03", 300)}},
	)

	result, err := f.sync.FullSync(ctx, "tok")
	require.NoError(t, err)

	assert.Equal(t, 3, f.provider.Calls("tok"))
	assert.Equal(t, core.SyncResult{Added: 3, Modified: 1, Removed: 1}, result)

	acc1, err := f.store.ListByAccount(ctx, "acc1")
	require.NoError(t, err)
	require.Len(t, acc1, 2)
	for _, tx := range acc1 {
		switch tx.ID {
		case "t1":
			assert.Equal(t, int64(150), tx.Amount)
			assert.False(t, tx.Removed)
		case "t2":
			assert.True(t, tx.Removed)
		}
		assert.True(t, tx.ModifiedAt.Equal(testNow))
	}
}

func TestFullSyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.provider.SetPages("tok",
		core.SyncPage{Added: []core.ProviderTransaction{record("t1", "acc1", "2025-01-01", 100, "Food")}},
		core.SyncPage{Added: []core.ProviderTransaction{record("t2", "acc1", "2025-01-02", 200)}},
	)

	_, err := f.sync.FullSync(ctx, "tok")
	require.NoError(t, err)
	first, err := f.store.ListByAccount(ctx, "acc1")
	require.NoError(t, err)

	_, err = f.sync.FullSync(ctx, "tok")
	require.NoError(t, err)
	second, err := f.store.ListByAccount(ctx, "acc1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, second, 2)
}

func TestFullSyncCategorizationFallbackOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	f := newFixture()
	policy := func(r core.ProviderTransaction) []string {
		if r.ID == "policy" {
			return []string{"Policy"}
		}
		return nil
	}
	svc := NewSyncService(f.provider, store, WithClock(fixedClock), WithCategorizer(policy))
	f.provider.SetPages("tok", core.SyncPage{Added: []core.ProviderTransaction{
		record("policy", "acc1", "2025-01-01", 1, "Provider"),
		record("provider", "acc1", "2025-01-01", 1, "Provider", "Sub"),
		record("none", "acc1", "2025-01-01", 1),
	}})

	_, err := svc.FullSync(ctx, "tok")
	require.NoError(t, err)

	got, err := store.ListByAccount(ctx, "acc1")
	require.NoError(t, err)
	byID := map[string][]string{}
	for _, tx := range got {
		byID[tx.ID] = tx.Category
	}
	assert.Equal(t, []string{"Policy"}, byID["policy"])
	assert.Equal(t, []string{"Provider", "Sub"}, byID["provider"])
	assert.Equal(t, []string{core.UncategorizedLabel}, byID["none"])
}

func TestFullSyncProviderFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	boom := errors.New("upstream 503")
	f.provider.FailWith("tok", boom)

	result, err := f.sync.FullSync(ctx, "tok")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrProviderFailure)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, core.SyncResult{}, result)
}

// failAfter serves one good page and then fails.
type failAfter struct {
	calls int
}

func (p *failAfter) SyncTransactions(_ context.Context, _, cursor string) (core.SyncPage, error) {
	p.calls++
	if cursor == "" {
		return core.SyncPage{
			Added:      []core.ProviderTransaction{record("t1", "acc1", "2025-01-01", 100)},
			NextCursor: "next",
			HasMore:    true,
		}, nil
	}
	return core.SyncPage{}, errors.New("connection reset")
}

func TestFullSyncKeepsPagesAppliedBeforeFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	provider := &failAfter{}
	svc := NewSyncService(provider, store, WithClock(fixedClock))

	_, err := svc.FullSync(ctx, "tok")
	assert.ErrorIs(t, err, core.ErrProviderFailure)
	assert.Equal(t, 2, provider.calls)

	got, err := store.ListByAccount(ctx, "acc1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFullSyncRevivesTombstonedRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.provider.SetPages("tok",
		core.SyncPage{Added: []core.ProviderTransaction{record("t1", "acc1", "2025-01-01", 100)}},
		core.SyncPage{Removed: []core.RemovedTransaction{{ID: "t1"}}},
	)
	_, err := f.sync.FullSync(ctx, "tok")
	require.NoError(t, err)

	got, err := f.store.ListByAccount(ctx, "acc1")
	require.NoError(t, err)
	require.True(t, got[0].Removed)

	f.provider.SetPages("tok", core.SyncPage{Modified: []core.ProviderTransaction{record("t1", "acc1", "2025-01-01", 120)}})
	_, err = f.sync.FullSync(ctx, "tok")
	require.NoError(t, err)

	got, err = f.store.ListByAccount(ctx, "acc1")
	require.NoError(t, err)
	assert.False(t, got[0].Removed)
	assert.Equal(t, int64(120), got[0].Amount)
}

func TestFullSyncRejectsEmptyToken(t *testing.T) {
	f := newFixture()
	_, err := f.sync.FullSync(context.Background(), "  ")
	assert.ErrorIs(t, err, core.ErrEmptyAccessToken)
}

func TestFullSyncStopsOnCancelledContext(t *testing.T) {
	f := newFixture()
	f.provider.SetPages("tok", core.SyncPage{Added: []core.ProviderTransaction{record("t1", "acc1", "2025-01-01", 1)}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.sync.FullSync(ctx, "tok")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.provider.Calls("tok"))
}

// gatedProvider blocks every call until release is closed.
type gatedProvider struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (p *gatedProvider) SyncTransactions(context.Context, string, string) (core.SyncPage, error) {
	p.mu.Lock()
	p.calls++
	first := p.calls == 1
	p.mu.Unlock()
	if first {
		close(p.entered)
	}
	<-p.release
	return core.SyncPage{Added: []core.ProviderTransaction{record("t1", "acc1", "2025-01-01", 1)}}, nil
}

func TestFullSyncSharesConcurrentPassForSameToken(t *testing.T) {
	ctx := context.Background()
	provider := &gatedProvider{entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewSyncService(provider, memory.New(), WithClock(fixedClock))

	var wg sync.WaitGroup
	results := make([]core.SyncResult, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = svc.FullSync(ctx, "tok")
	}()
	<-provider.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = svc.FullSync(ctx, "tok")
	}()
	// let the second caller reach the in-flight pass
	time.Sleep(50 * time.Millisecond)
	close(provider.release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, results[0], results[1])
	assert.Equal(t, 1, provider.calls)
}

func TestSyncAccountsReportsSeenAccounts(t *testing.T) {
	f := newFixture()
	f.provider.SetPages("tok",
		core.SyncPage{Added: []core.ProviderTransaction{record("t1", "acc2", "2025-01-01", 1), record("t2", "acc1", "2025-01-01", 1)}},
		core.SyncPage{Modified: []core.ProviderTransaction{record("t1", "acc2", "2025-01-01", 2)}},
	)

	_, accounts, err := f.sync.SyncAccounts(context.Background(), "tok", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"acc1", "acc2"}, accounts)
}

func TestSyncAccountsScopesRemovalsToCredential(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.store.UpsertMany(ctx, []core.Transaction{
		ledgerTx("t1", "acc-known", "2025-01-01", 1),
		ledgerTx("t1", "acc-other", "2025-01-01", 1),
	}))
	f.provider.SetPages("tok", core.SyncPage{Removed: []core.RemovedTransaction{{ID: "t1"}}})

	result, accounts, err := f.sync.SyncAccounts(ctx, "tok", []string{"acc-known"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)
	assert.Empty(t, accounts, "removals do not report accounts")

	known, err := f.store.ListByAccount(ctx, "acc-known")
	require.NoError(t, err)
	assert.True(t, known[0].Removed)

	other, err := f.store.ListByAccount(ctx, "acc-other")
	require.NoError(t, err)
	assert.False(t, other[0].Removed, "record under an account outside the credential stays live")
}

// cancelAwareProvider blocks until release is closed or ctx ends.
type cancelAwareProvider struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *cancelAwareProvider) SyncTransactions(ctx context.Context, _, _ string) (core.SyncPage, error) {
	p.once.Do(func() { close(p.entered) })
	select {
	case <-p.release:
		return core.SyncPage{Added: []core.ProviderTransaction{record("t1", "acc1", "2025-01-01", 1)}}, nil
	case <-ctx.Done():
		return core.SyncPage{}, ctx.Err()
	}
}

func TestSyncPassOutlivesFirstCallerCancel(t *testing.T) {
	provider := &cancelAwareProvider{entered: make(chan struct{}), release: make(chan struct{})}
	store := memory.New()
	svc := NewSyncService(provider, store, WithClock(fixedClock))

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.FullSync(firstCtx, "tok")
		firstErr <- err
	}()
	<-provider.entered

	type outcome struct {
		result core.SyncResult
		err    error
	}
	second := make(chan outcome, 1)
	go func() {
		r, err := svc.FullSync(context.Background(), "tok")
		second <- outcome{r, err}
	}()
	// let the second caller join the in-flight pass
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(provider.release)
	select {
	case got := <-second:
		require.NoError(t, got.err)
		assert.Equal(t, 1, got.result.Added)
	case <-time.After(2 * time.Second):
		t.Fatal("joined caller never returned")
	}

	txs, err := store.ListByAccount(context.Background(), "acc1")
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestKeywordCategorizer(t *testing.T) {
	policy := KeywordCategorizer([]KeywordRule{
		{Keyword: "Starbucks", Category: []string{"Food", "Coffee"}},
		{Keyword: "uber", Category: []string{"Transport"}},
		{Keyword: "", Category: []string{"Ignored"}},
	})

	assert.Equal(t, []string{"Food", "Coffee"}, policy(core.ProviderTransaction{Description: "STARBUCKS #123"}))
	assert.Equal(t, []string{"Transport"}, policy(core.ProviderTransaction{Description: "Uber trip"}))
	assert.Nil(t, policy(core.ProviderTransaction{Description: "Rent"}))
}
