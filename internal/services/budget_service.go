package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"budgetpro/internal/core"
	"budgetpro/internal/log"
	"budgetpro/internal/ports"
)

// BudgetService manages categories, periods and allocations for a group.
type BudgetService struct {
	store  ports.BudgetStore
	now    func() time.Time
	newID  func(prefix string) string
	logger *log.Logger
}

func NewBudgetService(store ports.BudgetStore) *BudgetService {
	return &BudgetService{
		store:  store,
		now:    time.Now,
		newID:  newID,
		logger: log.Default(log.ComponentBudget),
	}
}

func newID(prefix string) string {
	return prefix + uuid.NewString()
}

func (s *BudgetService) CreateCategory(ctx context.Context, groupID, name string) (core.Category, error) {
	groupID = strings.TrimSpace(groupID)
	name = strings.TrimSpace(name)
	if groupID == "" {
		return core.Category{}, core.ErrValidation
	}
	if name == "" {
		return core.Category{}, core.ErrEmptyName
	}

	c := core.Category{
		ID:        s.newID("cat_"),
		GroupID:   groupID,
		Name:      name,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("create category %q: %w", name, err)
	}

	s.logger.InfoContext(ctx, "Category created",
		log.FieldGroupID, groupID,
		log.FieldCategoryID, c.ID)
	return c, nil
}

// ArchiveCategory hides a category from active listings. Allocations that
// reference it stay in place.
func (s *BudgetService) ArchiveCategory(ctx context.Context, groupID, categoryID string) error {
	c, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("get category: %w", err)
	}
	if c == nil || c.GroupID != groupID {
		return core.ErrNotFound
	}
	if err := s.store.ArchiveCategory(ctx, categoryID, s.now().UTC()); err != nil {
		return fmt.Errorf("archive category: %w", err)
	}
	return nil
}

func (s *BudgetService) ListCategories(ctx context.Context, groupID string) ([]core.Category, error) {
	cats, err := s.store.ListCategories(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// CreatePeriod registers a monthly period starting at startDate (YYYY-MM-DD).
func (s *BudgetService) CreatePeriod(ctx context.Context, groupID, startDate string) (core.Period, error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return core.Period{}, core.ErrValidation
	}
	if err := core.ValidateDate(startDate); err != nil {
		return core.Period{}, err
	}

	p := core.Period{
		ID:        s.newID("per_"),
		GroupID:   groupID,
		StartDate: startDate,
		Type:      core.MonthPeriod,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreatePeriod(ctx, p); err != nil {
		return core.Period{}, fmt.Errorf("create period: %w", err)
	}

	s.logger.InfoContext(ctx, "Period created",
		log.FieldGroupID, groupID,
		log.FieldPeriodID, p.ID,
		"start_date", startDate)
	return p, nil
}

// GetPeriod fails with ErrPeriodNotFound for unknown ids.
func (s *BudgetService) GetPeriod(ctx context.Context, periodID string) (core.Period, error) {
	p, err := s.store.GetPeriod(ctx, periodID)
	if err != nil {
		return core.Period{}, fmt.Errorf("get period: %w", err)
	}
	if p == nil {
		return core.Period{}, core.ErrPeriodNotFound
	}
	return *p, nil
}

// SetAllocation plans amount for a category within a period. A second call
// for the same pair replaces the earlier amount and currency.
func (s *BudgetService) SetAllocation(ctx context.Context, periodID, categoryID string, amount int64, currency string) (core.Allocation, error) {
	a := core.Allocation{
		ID:         s.newID("alloc_"),
		PeriodID:   periodID,
		CategoryID: categoryID,
		Amount:     amount,
		Currency:   strings.ToUpper(strings.TrimSpace(currency)),
		CreatedAt:  s.now().UTC(),
	}
	if err := a.Validate(); err != nil {
		return core.Allocation{}, err
	}

	period, err := s.store.GetPeriod(ctx, periodID)
	if err != nil {
		return core.Allocation{}, fmt.Errorf("get period: %w", err)
	}
	if period == nil {
		return core.Allocation{}, core.ErrPeriodNotFound
	}
	category, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return core.Allocation{}, fmt.Errorf("get category: %w", err)
	}
	if category == nil {
		return core.Allocation{}, core.ErrNotFound
	}
	if category.GroupID != period.GroupID {
		return core.Allocation{}, core.ErrGroupMismatch
	}

	stored, err := s.store.PutAllocation(ctx, a)
	if err != nil {
		return core.Allocation{}, fmt.Errorf("put allocation: %w", err)
	}

	s.logger.InfoContext(ctx, "Allocation set",
		log.FieldPeriodID, periodID,
		log.FieldCategoryID, categoryID,
		"amount", amount)
	return stored, nil
}

func (s *BudgetService) ListAllocations(ctx context.Context, periodID string) ([]core.Allocation, error) {
	allocs, err := s.store.ListAllocations(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	return allocs, nil
}
