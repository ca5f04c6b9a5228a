package services

import (
	"context"
	"fmt"
	"strings"

	"budgetpro/internal/core"
	"budgetpro/internal/log"
	"budgetpro/internal/ports"
)

// MutationService applies manual category overrides.
type MutationService struct {
	ledger ports.LedgerStore
	logger *log.Logger
}

func NewMutationService(ledger ports.LedgerStore) *MutationService {
	return &MutationService{
		ledger: ledger,
		logger: log.Default(log.ComponentLedger),
	}
}

// SetCategory replaces the category list with [params.Category]. A missing
// transaction yields a result with nil Updated and no error.
func (s *MutationService) SetCategory(ctx context.Context, params core.SetCategoryParams) (core.SetCategoryResult, error) {
	category := strings.TrimSpace(params.Category)
	if category == "" {
		return core.SetCategoryResult{}, core.ErrInvalidCategory
	}

	updated, err := s.ledger.UpdateCategory(ctx, params.TransactionID, params.AccountID, []string{category})
	if err != nil {
		return core.SetCategoryResult{}, fmt.Errorf("set category: %w", err)
	}
	if updated == nil {
		s.logger.DebugContext(ctx, "Category override target not found",
			log.FieldTransactionID, params.TransactionID,
			log.FieldAccountID, params.AccountID)
		return core.SetCategoryResult{}, nil
	}

	s.logger.InfoContext(ctx, "Category overridden",
		log.FieldTransactionID, params.TransactionID,
		log.FieldAccountID, params.AccountID,
		"category", category)
	return core.SetCategoryResult{Updated: updated}, nil
}
