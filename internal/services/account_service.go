package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"budgetpro/internal/core"
	"budgetpro/internal/log"
	"budgetpro/internal/ports"
)

// AccountService ingests the accounts behind a credential and lists them per
// group. A nil lister means the provider cannot report accounts and Fetch
// returns nothing.
type AccountService struct {
	lister ports.AccountLister
	store  ports.AccountStore
	now    func() time.Time
	logger *log.Logger
}

func NewAccountService(lister ports.AccountLister, store ports.AccountStore) *AccountService {
	return &AccountService{
		lister: lister,
		store:  store,
		now:    time.Now,
		logger: log.Default(log.ComponentAccounts),
	}
}

// Fetch asks the provider for the accounts behind accessToken.
func (s *AccountService) Fetch(ctx context.Context, accessToken string) ([]core.ProviderAccount, error) {
	if s.lister == nil {
		return nil, nil
	}
	accounts, err := s.lister.ListAccounts(ctx, accessToken)
	if err != nil {
		s.logger.WarnContext(ctx, "Provider account listing failed", log.FieldError, err)
		return nil, fmt.Errorf("%w: %w", core.ErrProviderFailure, err)
	}
	return accounts, nil
}

// Save maps provider accounts onto item's group and upserts them, stamping
// LastSyncedAt. Accounts whose id is in skip are left out.
func (s *AccountService) Save(ctx context.Context, item core.Item, accounts []core.ProviderAccount, skip map[string]struct{}) ([]core.Account, error) {
	stamp := s.now().UTC()
	mapped := make([]core.Account, 0, len(accounts))
	for _, p := range accounts {
		if _, ok := skip[p.ID]; ok {
			continue
		}
		currency := p.Currency
		if currency == "" {
			currency = core.DefaultCurrency
		}
		mapped = append(mapped, core.Account{
			ID:             p.ID,
			GroupID:        item.GroupID,
			ItemID:         item.ID,
			Name:           p.Name,
			OfficialName:   p.OfficialName,
			Mask:           p.Mask,
			Type:           p.Type,
			Subtype:        p.Subtype,
			Currency:       currency,
			CurrentBalance: p.CurrentBalance,
			LastSyncedAt:   stamp,
		})
	}
	if len(mapped) == 0 {
		return nil, nil
	}
	if err := s.store.UpsertAccounts(ctx, mapped); err != nil {
		return nil, fmt.Errorf("save accounts: %w", err)
	}
	s.logger.InfoContext(ctx, "Accounts ingested",
		log.FieldItemID, item.ID,
		log.FieldGroupID, item.GroupID,
		"accounts", len(mapped))
	return mapped, nil
}

// List returns the group's ingested accounts ordered by id.
func (s *AccountService) List(ctx context.Context, groupID string) ([]core.Account, error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return nil, core.ErrValidation
	}
	accounts, err := s.store.ListAccountsByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	if accounts == nil {
		accounts = []core.Account{}
	}
	return accounts, nil
}
