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

// SyncPublisher hands a sync request to an asynchronous worker.
type SyncPublisher interface {
	PublishSyncRequest(ctx context.Context, itemID string) error
}

// ItemService links aggregator credentials to groups and syncs them. It also
// resolves a group's transactions through the accounts seen under its items.
type ItemService struct {
	items     ports.ItemStore
	secrets   ports.SecretStore
	ledger    ports.LedgerStore
	sync      *SyncService
	accounts  *AccountService
	exchanger ports.TokenExchanger
	publisher SyncPublisher
	now       func() time.Time
	logger    *log.Logger
}

func NewItemService(items ports.ItemStore, secrets ports.SecretStore, ledger ports.LedgerStore, sync *SyncService) *ItemService {
	return &ItemService{
		items:   items,
		secrets: secrets,
		ledger:  ledger,
		sync:    sync,
		now:     time.Now,
		logger:  log.Default(log.ComponentItems),
	}
}

// WithPublisher routes RequestSync through an asynchronous queue.
func (s *ItemService) WithPublisher(p SyncPublisher) *ItemService {
	s.publisher = p
	return s
}

// WithAccounts ingests provider account metadata on every Sync.
func (s *ItemService) WithAccounts(a *AccountService) *ItemService {
	s.accounts = a
	return s
}

// WithTokenExchanger enables the public-token link flow.
func (s *ItemService) WithTokenExchanger(x ports.TokenExchanger) *ItemService {
	s.exchanger = x
	return s
}

// CreateLinkToken starts the link flow for userID.
func (s *ItemService) CreateLinkToken(ctx context.Context, userID string) (core.LinkToken, error) {
	if s.exchanger == nil {
		return core.LinkToken{}, core.ErrUnsupported
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.LinkToken{}, core.ErrValidation
	}
	token, err := s.exchanger.CreateLinkToken(ctx, userID)
	if err != nil {
		return core.LinkToken{}, fmt.Errorf("%w: %w", core.ErrProviderFailure, err)
	}
	return token, nil
}

// LinkPublicToken trades publicToken for an access token and links it to
// the group.
func (s *ItemService) LinkPublicToken(ctx context.Context, groupID, publicToken string) (core.Item, error) {
	if s.exchanger == nil {
		return core.Item{}, core.ErrUnsupported
	}
	if strings.TrimSpace(groupID) == "" || strings.TrimSpace(publicToken) == "" {
		return core.Item{}, core.ErrValidation
	}
	accessToken, err := s.exchanger.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return core.Item{}, fmt.Errorf("%w: %w", core.ErrProviderFailure, err)
	}
	return s.Link(ctx, groupID, accessToken)
}

// Link seals accessToken and records a new item for the group.
func (s *ItemService) Link(ctx context.Context, groupID, accessToken string) (core.Item, error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return core.Item{}, core.ErrValidation
	}
	if strings.TrimSpace(accessToken) == "" {
		return core.Item{}, core.ErrEmptyAccessToken
	}

	handle, err := s.secrets.Store(ctx, accessToken)
	if err != nil {
		return core.Item{}, fmt.Errorf("seal access token: %w", err)
	}

	item := core.Item{
		ID:           newID("item_"),
		GroupID:      groupID,
		SecretHandle: handle,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.items.SaveItem(ctx, item); err != nil {
		return core.Item{}, fmt.Errorf("save item: %w", err)
	}

	s.logger.InfoContext(ctx, "Item linked",
		log.FieldItemID, item.ID,
		log.FieldGroupID, groupID)
	return item, nil
}

func (s *ItemService) GetItem(ctx context.Context, itemID string) (core.Item, error) {
	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return core.Item{}, fmt.Errorf("get item: %w", err)
	}
	if item == nil {
		return core.Item{}, core.ErrItemNotFound
	}
	return *item, nil
}

func (s *ItemService) ListItems(ctx context.Context) ([]core.Item, error) {
	items, err := s.items.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// Sync runs a full pass for the item, registers every account it reported
// under the item's group and stamps LastSyncedAt. Removals reported by the
// feed only touch accounts already linked to the item or reported by this
// credential. Accounts another group already owns stay with that group.
func (s *ItemService) Sync(ctx context.Context, itemID string) (core.SyncResult, error) {
	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		return core.SyncResult{}, err
	}

	token, err := s.secrets.Reveal(ctx, item.SecretHandle)
	if err != nil {
		return core.SyncResult{}, fmt.Errorf("reveal access token: %w", err)
	}

	known, err := s.items.ListItemAccounts(ctx, item.ID)
	if err != nil {
		return core.SyncResult{}, fmt.Errorf("list item accounts: %w", err)
	}

	var reported []core.ProviderAccount
	if s.accounts != nil {
		if reported, err = s.accounts.Fetch(ctx, token); err != nil {
			return core.SyncResult{}, err
		}
	}
	ids := make(map[string]struct{}, len(known)+len(reported))
	for _, id := range known {
		ids[id] = struct{}{}
	}
	for _, a := range reported {
		ids[a.ID] = struct{}{}
	}

	result, seen, err := s.sync.SyncAccounts(ctx, token, sortedKeys(ids))
	if err != nil {
		return core.SyncResult{}, err
	}

	linked := make(map[string]struct{}, len(seen)+len(reported))
	for _, id := range seen {
		linked[id] = struct{}{}
	}
	for _, a := range reported {
		linked[a.ID] = struct{}{}
	}
	var conflicts []string
	if len(linked) > 0 {
		links := make([]core.AccountLink, 0, len(linked))
		for _, accountID := range sortedKeys(linked) {
			links = append(links, core.AccountLink{AccountID: accountID, GroupID: item.GroupID, ItemID: item.ID})
		}
		if conflicts, err = s.items.LinkAccounts(ctx, links); err != nil {
			return core.SyncResult{}, fmt.Errorf("link accounts: %w", err)
		}
		for _, accountID := range conflicts {
			s.logger.WarnContext(ctx, "Account already linked to another group, keeping existing link",
				log.FieldItemID, item.ID,
				log.FieldGroupID, item.GroupID,
				log.FieldAccountID, accountID)
		}
	}

	if s.accounts != nil && len(reported) > 0 {
		skip := make(map[string]struct{}, len(conflicts))
		for _, id := range conflicts {
			skip[id] = struct{}{}
		}
		if _, err := s.accounts.Save(ctx, item, reported, skip); err != nil {
			return core.SyncResult{}, err
		}
	}

	synced := s.now().UTC()
	item.LastSyncedAt = &synced
	if err := s.items.SaveItem(ctx, item); err != nil {
		return core.SyncResult{}, fmt.Errorf("save item: %w", err)
	}

	log.NewStructuredLogger(s.logger).LogSyncCompleted(ctx, item.ID, result.Added, result.Modified, result.Removed)
	return result, nil
}

// RequestSync queues the sync when a publisher is configured and reports
// queued=true, otherwise it runs inline. A failed publish also falls back to
// an inline run.
func (s *ItemService) RequestSync(ctx context.Context, itemID string) (result core.SyncResult, queued bool, err error) {
	if s.publisher != nil {
		if _, err := s.GetItem(ctx, itemID); err != nil {
			return core.SyncResult{}, false, err
		}
		pubErr := s.publisher.PublishSyncRequest(ctx, itemID)
		if pubErr == nil {
			return core.SyncResult{}, true, nil
		}
		s.logger.WarnContext(ctx, "Failed to publish sync request, syncing inline",
			log.FieldItemID, itemID,
			log.FieldError, pubErr)
	}
	result, err = s.Sync(ctx, itemID)
	return result, false, err
}

// ListGroupTransactions unions the ledgers of every account registered to
// the group.
func (s *ItemService) ListGroupTransactions(ctx context.Context, groupID string) ([]core.Transaction, error) {
	accounts, err := s.items.ListGroupAccounts(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group accounts: %w", err)
	}
	var out []core.Transaction
	for _, accountID := range accounts {
		txs, err := s.ledger.ListByAccount(ctx, accountID)
		if err != nil {
			return nil, fmt.Errorf("list account %s: %w", accountID, err)
		}
		out = append(out, txs...)
	}
	return out, nil
}
