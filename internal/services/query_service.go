package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"budgetpro/internal/core"
	"budgetpro/internal/ports"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// QueryService serves the paginated ledger view.
type QueryService struct {
	ledger ports.LedgerStore
}

func NewQueryService(ledger ports.LedgerStore) *QueryService {
	return &QueryService{ledger: ledger}
}

// List returns one page of the account's live transactions sorted by
// postedAt then id, both descending. The cursor is a positional offset into
// the filtered, sorted set.
func (s *QueryService) List(ctx context.Context, params core.ListParams) (core.ListResult, error) {
	limit, err := normalizeLimit(params.Limit)
	if err != nil {
		return core.ListResult{}, err
	}
	offset, err := parseCursor(params.Cursor)
	if err != nil {
		return core.ListResult{}, err
	}

	all, err := s.ledger.ListByAccount(ctx, params.AccountID)
	if err != nil {
		return core.ListResult{}, fmt.Errorf("list ledger: %w", err)
	}

	filtered := make([]core.Transaction, 0, len(all))
	for _, t := range all {
		if matches(t, params) {
			filtered = append(filtered, t)
		}
	}
	SortTransactions(filtered)

	result := core.ListResult{Items: []core.Transaction{}}
	if offset >= len(filtered) {
		return result, nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	result.Items = filtered[offset:end]
	if end < len(filtered) {
		result.NextCursor = strconv.Itoa(end)
	}
	return result, nil
}

// SortTransactions orders by postedAt desc, ties broken by id desc.
func SortTransactions(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].PostedAt != txs[j].PostedAt {
			return txs[i].PostedAt > txs[j].PostedAt
		}
		return txs[i].ID > txs[j].ID
	})
}

func normalizeLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, core.ErrInvalidLimit
	case limit == 0:
		return DefaultListLimit, nil
	case limit > MaxListLimit:
		return MaxListLimit, nil
	}
	return limit, nil
}

func parseCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	offset, err := strconv.Atoi(cursor)
	if err != nil || offset < 0 {
		return 0, core.ErrInvalidCursor
	}
	return offset, nil
}

func matches(t core.Transaction, params core.ListParams) bool {
	if t.Removed {
		return false
	}
	if params.MinAmount != nil && t.Amount < *params.MinAmount {
		return false
	}
	if params.MaxAmount != nil && t.Amount > *params.MaxAmount {
		return false
	}
	if params.Category != "" && !t.HasCategory(params.Category) {
		return false
	}
	return true
}
