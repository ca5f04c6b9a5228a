package services

import (
	"context"
	"fmt"
	"strings"

	"budgetpro/internal/core"
	"budgetpro/internal/ports"
)

const unknownCategoryName = "Unknown"

// ReconciliationService projects a period's allocations against the ledger.
// It holds no state; every call reads the stores afresh.
type ReconciliationService struct {
	budgets      ports.BudgetStore
	transactions ports.GroupTransactionLister
}

func NewReconciliationService(budgets ports.BudgetStore, transactions ports.GroupTransactionLister) *ReconciliationService {
	return &ReconciliationService{
		budgets:      budgets,
		transactions: transactions,
	}
}

// ComputePeriodBudget sums in-period spend whose primary category names an
// active budget category. Remaining may be negative.
func (s *ReconciliationService) ComputePeriodBudget(ctx context.Context, groupID, periodID string) (core.PeriodBudgetView, error) {
	period, err := s.budgets.GetPeriod(ctx, periodID)
	if err != nil {
		return core.PeriodBudgetView{}, fmt.Errorf("get period: %w", err)
	}
	if period == nil || period.GroupID != groupID {
		return core.PeriodBudgetView{}, core.ErrPeriodNotFound
	}

	allocations, err := s.budgets.ListAllocations(ctx, periodID)
	if err != nil {
		return core.PeriodBudgetView{}, fmt.Errorf("list allocations: %w", err)
	}
	categories, err := s.budgets.ListCategories(ctx, groupID)
	if err != nil {
		return core.PeriodBudgetView{}, fmt.Errorf("list categories: %w", err)
	}
	txs, err := s.transactions.ListGroupTransactions(ctx, groupID)
	if err != nil {
		return core.PeriodBudgetView{}, fmt.Errorf("list group transactions: %w", err)
	}

	idByName := make(map[string]string, len(categories))
	nameByID := make(map[string]string, len(categories))
	for _, c := range categories {
		idByName[c.Name] = c.ID
		nameByID[c.ID] = c.Name
	}

	month := period.Month()
	spent := make(map[string]int64)
	for _, t := range txs {
		if t.Removed || !strings.HasPrefix(t.PostedAt, month) {
			continue
		}
		primary := t.PrimaryCategory()
		if primary == "" {
			continue
		}
		id, ok := idByName[primary]
		if !ok {
			continue
		}
		spent[id] += t.Amount
	}

	view := core.PeriodBudgetView{
		PeriodID:   period.ID,
		GroupID:    period.GroupID,
		StartDate:  period.StartDate,
		Type:       period.Type,
		Categories: make([]core.CategoryBudgetView, 0, len(allocations)),
	}
	for _, a := range allocations {
		name, err := s.categoryName(ctx, nameByID, a.CategoryID)
		if err != nil {
			return core.PeriodBudgetView{}, err
		}
		used := spent[a.CategoryID]
		view.Categories = append(view.Categories, core.CategoryBudgetView{
			CategoryID:           a.CategoryID,
			Name:                 name,
			AllocationMinorUnits: a.Amount,
			SpentMinorUnits:      used,
			RemainingMinorUnits:  a.Amount - used,
			Currency:             a.Currency,
		})
		view.Totals.Allocated += a.Amount
		view.Totals.Spent += used
		view.Totals.Remaining += a.Amount - used
	}

	view.Totals.Currency = core.DefaultCurrency
	if len(view.Categories) > 0 {
		view.Totals.Currency = view.Categories[0].Currency
	}
	return view, nil
}

// categoryName resolves a display name for archived categories that are not
// part of the active set.
func (s *ReconciliationService) categoryName(ctx context.Context, active map[string]string, id string) (string, error) {
	if name, ok := active[id]; ok {
		return name, nil
	}
	c, err := s.budgets.GetCategory(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get category: %w", err)
	}
	if c == nil {
		return unknownCategoryName, nil
	}
	active[id] = c.Name
	return c.Name, nil
}
