package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"budgetpro/internal/core"
	"budgetpro/internal/log"
	"budgetpro/internal/ports"
)

// CategorizeFunc derives a category list from a raw provider record. A nil
// or empty result defers to the provider's own category.
type CategorizeFunc func(core.ProviderTransaction) []string

// SyncService drives a provider feed to exhaustion and applies every page to
// the ledger.
type SyncService struct {
	provider   ports.Provider
	ledger     ports.LedgerStore
	categorize CategorizeFunc
	now        func() time.Time
	logger     *log.Logger

	flight singleflight.Group
}

type SyncOption func(*SyncService)

func WithCategorizer(fn CategorizeFunc) SyncOption {
	return func(s *SyncService) { s.categorize = fn }
}

// WithClock overrides the time source used to stamp ModifiedAt.
func WithClock(now func() time.Time) SyncOption {
	return func(s *SyncService) { s.now = now }
}

func WithSyncLogger(logger *log.Logger) SyncOption {
	return func(s *SyncService) { s.logger = logger }
}

func NewSyncService(provider ports.Provider, ledger ports.LedgerStore, opts ...SyncOption) *SyncService {
	s := &SyncService{
		provider: provider,
		ledger:   ledger,
		now:      time.Now,
		logger:   log.Default(log.ComponentSync),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type syncPass struct {
	result   core.SyncResult
	accounts []string
}

// FullSync pulls every page for accessToken. Concurrent calls for the same
// credential share a single pass and its result. Removals only tombstone
// records under accounts the pass itself reported.
func (s *SyncService) FullSync(ctx context.Context, accessToken string) (core.SyncResult, error) {
	result, _, err := s.SyncAccounts(ctx, accessToken, nil)
	return result, err
}

// SyncAccounts is FullSync that also reports the distinct account ids seen
// in added and modified entries, sorted. Removals are scoped to
// knownAccounts plus every account seen so far in the pass.
//
// The shared pass is detached from the caller's cancellation so one caller
// leaving does not fail the others. A caller whose ctx ends stops waiting
// and gets ctx.Err().
func (s *SyncService) SyncAccounts(ctx context.Context, accessToken string, knownAccounts []string) (core.SyncResult, []string, error) {
	if strings.TrimSpace(accessToken) == "" {
		return core.SyncResult{}, nil, core.ErrEmptyAccessToken
	}
	if err := ctx.Err(); err != nil {
		return core.SyncResult{}, nil, err
	}

	passCtx := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(accessToken, func() (interface{}, error) {
		return s.run(passCtx, accessToken, knownAccounts)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return core.SyncResult{}, nil, ctx.Err()
	}
	if res.Shared {
		s.logger.DebugContext(ctx, "Joined in-flight sync pass")
	}
	if res.Err != nil {
		return core.SyncResult{}, nil, res.Err
	}
	pass := res.Val.(syncPass)
	return pass.result, append([]string(nil), pass.accounts...), nil
}

func (s *SyncService) run(ctx context.Context, accessToken string, knownAccounts []string) (syncPass, error) {
	var (
		result core.SyncResult
		cursor string
		pages  int
	)
	seen := make(map[string]struct{})
	scope := make(map[string]struct{}, len(knownAccounts))
	for _, id := range knownAccounts {
		scope[id] = struct{}{}
	}

	for {
		if err := ctx.Err(); err != nil {
			return syncPass{}, err
		}

		page, err := s.provider.SyncTransactions(ctx, accessToken, cursor)
		if err != nil {
			s.logger.WarnContext(ctx, "Provider sync call failed",
				log.FieldPages, pages,
				log.FieldError, err)
			return syncPass{}, fmt.Errorf("%w: %w", core.ErrProviderFailure, err)
		}
		pages++

		for _, raw := range page.Added {
			seen[raw.AccountID] = struct{}{}
			scope[raw.AccountID] = struct{}{}
		}
		for _, raw := range page.Modified {
			seen[raw.AccountID] = struct{}{}
			scope[raw.AccountID] = struct{}{}
		}
		if err := s.applyPage(ctx, page, sortedKeys(scope)); err != nil {
			return syncPass{}, err
		}

		result.Added += len(page.Added)
		result.Modified += len(page.Modified)
		result.Removed += len(page.Removed)

		cursor = page.NextCursor
		if !page.HasMore {
			break
		}
	}

	s.logger.InfoContext(ctx, "Sync pass finished",
		log.FieldPages, pages,
		log.FieldAdded, result.Added,
		log.FieldModified, result.Modified,
		log.FieldRemoved, result.Removed)

	return syncPass{result: result, accounts: sortedKeys(seen)}, nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// applyPage upserts added and modified entries in one store call, then
// tombstones the removed ids under the accounts in scope.
func (s *SyncService) applyPage(ctx context.Context, page core.SyncPage, scope []string) error {
	stamp := s.now().UTC()

	batch := make([]core.Transaction, 0, len(page.Added)+len(page.Modified))
	for _, raw := range page.Added {
		batch = append(batch, s.normalize(raw, stamp))
	}
	for _, raw := range page.Modified {
		batch = append(batch, s.normalize(raw, stamp))
	}

	if len(batch) > 0 {
		if err := s.ledger.UpsertMany(ctx, batch); err != nil {
			return fmt.Errorf("apply sync page: %w", err)
		}
	}

	if len(page.Removed) > 0 {
		ids := make([]string, 0, len(page.Removed))
		for _, r := range page.Removed {
			ids = append(ids, r.ID)
		}
		n, err := s.ledger.MarkRemoved(ctx, scope, ids)
		if err != nil {
			return fmt.Errorf("apply removals: %w", err)
		}
		if n < len(ids) {
			s.logger.DebugContext(ctx, "Some removals matched no record in scope",
				log.FieldRemoved, len(ids),
				"flagged", n)
		}
	}
	return nil
}

func (s *SyncService) normalize(raw core.ProviderTransaction, stamp time.Time) core.Transaction {
	return core.Transaction{
		ID:          raw.ID,
		AccountID:   raw.AccountID,
		PostedAt:    raw.PostedAt,
		Description: raw.Description,
		Amount:      raw.Amount,
		Currency:    raw.Currency,
		Pending:     raw.Pending,
		Category:    s.resolveCategory(raw),
		ModifiedAt:  stamp,
	}
}

// resolveCategory applies policy, then provider category, then the
// Uncategorized label.
func (s *SyncService) resolveCategory(raw core.ProviderTransaction) []string {
	if s.categorize != nil {
		if c := s.categorize(raw); len(c) > 0 {
			return append([]string(nil), c...)
		}
	}
	if len(raw.Category) > 0 {
		return append([]string(nil), raw.Category...)
	}
	return []string{core.UncategorizedLabel}
}

// KeywordRule assigns Category when Keyword occurs in a description.
type KeywordRule struct {
	Keyword  string
	Category []string
}

// KeywordCategorizer returns a policy that matches rules in order against the
// lower-cased description. The first hit wins.
func KeywordCategorizer(rules []KeywordRule) CategorizeFunc {
	compiled := make([]KeywordRule, 0, len(rules))
	for _, r := range rules {
		kw := strings.ToLower(strings.TrimSpace(r.Keyword))
		if kw == "" || len(r.Category) == 0 {
			continue
		}
		compiled = append(compiled, KeywordRule{Keyword: kw, Category: r.Category})
	}
	return func(raw core.ProviderTransaction) []string {
		desc := strings.ToLower(raw.Description)
		for _, r := range compiled {
			if strings.Contains(desc, r.Keyword) {
				return r.Category
			}
		}
		return nil
	}
}
