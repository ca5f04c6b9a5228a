// Package memory provides mutex-guarded in-memory stores for the ledger,
// budgets and linked items. It backs the "memory" data backend and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"budgetpro/internal/core"
)

type ledgerKey struct {
	accountID string
	id        string
}

type Store struct {
	mu sync.Mutex

	transactions map[ledgerKey]core.Transaction
	byAccount    map[string][]ledgerKey // insertion order per account

	categories  map[string]core.Category
	periods     map[string]core.Period
	allocations []core.Allocation

	items    map[string]core.Item
	links    map[string]core.AccountLink
	accounts map[string]core.Account
}

func New() *Store {
	return &Store{
		transactions: make(map[ledgerKey]core.Transaction),
		byAccount:    make(map[string][]ledgerKey),
		categories:   make(map[string]core.Category),
		periods:      make(map[string]core.Period),
		items:        make(map[string]core.Item),
		links:        make(map[string]core.AccountLink),
		accounts:     make(map[string]core.Account),
	}
}

// UpsertMany stores each record under its (AccountID, ID) key.
func (s *Store) UpsertMany(_ context.Context, records []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		k := ledgerKey{accountID: r.AccountID, id: r.ID}
		if _, ok := s.transactions[k]; !ok {
			s.byAccount[r.AccountID] = append(s.byAccount[r.AccountID], k)
		}
		s.transactions[k] = r.Clone()
	}
	return nil
}

func (s *Store) ListByAccount(_ context.Context, accountID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := s.byAccount[accountID]
	out := make([]core.Transaction, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.transactions[k].Clone())
	}
	return out, nil
}

func (s *Store) UpdateCategory(_ context.Context, transactionID, accountID string, category []string) (*core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := ledgerKey{accountID: accountID, id: transactionID}
	existing, ok := s.transactions[k]
	if !ok {
		return nil, nil
	}
	existing.Category = append([]string(nil), category...)
	s.transactions[k] = existing
	updated := existing.Clone()
	return &updated, nil
}

func (s *Store) MarkRemoved(_ context.Context, accountIDs, ids []string) (int, error) {
	if len(accountIDs) == 0 || len(ids) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, accountID := range accountIDs {
		for _, id := range ids {
			k := ledgerKey{accountID: accountID, id: id}
			tx, ok := s.transactions[k]
			if !ok || tx.Removed {
				continue
			}
			tx.Removed = true
			s.transactions[k] = tx
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.categories {
		if existing.GroupID == c.GroupID && existing.Name == c.Name && !existing.IsArchived() {
			return core.ErrCategoryExists
		}
	}
	s.categories[c.ID] = c
	return nil
}

func (s *Store) GetCategory(_ context.Context, id string) (*core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) ListCategories(_ context.Context, groupID string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Category
	for _, c := range s.categories {
		if c.GroupID == groupID && !c.IsArchived() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) ArchiveCategory(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return core.ErrNotFound
	}
	if c.ArchivedAt == nil {
		c.ArchivedAt = &at
		s.categories[id] = c
	}
	return nil
}

func (s *Store) CreatePeriod(_ context.Context, p core.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods[p.ID] = p
	return nil
}

func (s *Store) GetPeriod(_ context.Context, id string) (*core.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.periods[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) PutAllocation(_ context.Context, a core.Allocation) (core.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.allocations {
		if existing.PeriodID == a.PeriodID && existing.CategoryID == a.CategoryID {
			existing.Amount = a.Amount
			existing.Currency = a.Currency
			modified := a.CreatedAt
			existing.ModifiedAt = &modified
			s.allocations[i] = existing
			return existing, nil
		}
	}
	s.allocations = append(s.allocations, a)
	return a, nil
}

func (s *Store) ListAllocations(_ context.Context, periodID string) ([]core.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Allocation
	for _, a := range s.allocations {
		if a.PeriodID == periodID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) SaveItem(_ context.Context, item core.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
	return nil
}

func (s *Store) GetItem(_ context.Context, id string) (*core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) ListItems(_ context.Context) ([]core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Item, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) LinkAccounts(_ context.Context, links []core.AccountLink) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var conflicts []string
	for _, l := range links {
		if existing, ok := s.links[l.AccountID]; ok && existing.GroupID != l.GroupID {
			conflicts = append(conflicts, l.AccountID)
			continue
		}
		s.links[l.AccountID] = l
	}
	return conflicts, nil
}

func (s *Store) ListGroupAccounts(_ context.Context, groupID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for id, l := range s.links {
		if l.GroupID == groupID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) ListItemAccounts(_ context.Context, itemID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for id, l := range s.links {
		if l.ItemID == itemID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) UpsertAccounts(_ context.Context, accounts []core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return nil
}

func (s *Store) ListAccountsByGroup(_ context.Context, groupID string) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Account
	for _, a := range s.accounts {
		if a.GroupID == groupID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
