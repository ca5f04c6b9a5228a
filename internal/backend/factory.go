package backend

import (
	"context"
	"errors"
	"fmt"

	"budgetpro/internal/amqp"
	"budgetpro/internal/log"
	"budgetpro/internal/memory"
	"budgetpro/internal/ports"
	providermem "budgetpro/internal/provider/memory"
	"budgetpro/internal/provider/plaid"
	"budgetpro/internal/services"
	"budgetpro/internal/storage"
	"budgetpro/internal/vault"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default(log.ComponentBackend)
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store   Store
		ready   func(context.Context) error
		cleanup []func() error
	)

	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		store = repo
		ready = repo.Ping
		cleanup = append(cleanup, repo.Close)
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		store = memory.New()
		ready = func(context.Context) error { return nil }
		f.logger.InfoContext(ctx, "Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	closeAll := func() error {
		var errs []error
		for i := len(cleanup) - 1; i >= 0; i-- {
			errs = append(errs, cleanup[i]())
		}
		return errors.Join(errs...)
	}

	provider, err := f.createProvider(ctx, config)
	if err != nil {
		closeAll()
		return nil, err
	}

	secrets, err := vault.NewFromBase64(config.VaultKey)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to initialize vault: %w", err)
	}
	if config.VaultKey == "" {
		f.logger.WarnContext(ctx, "VAULT_KEY not set, using development key")
	}

	sync := services.NewSyncService(provider, store)

	var lister ports.AccountLister
	if l, ok := provider.(ports.AccountLister); ok {
		lister = l
	}
	accounts := services.NewAccountService(lister, store)
	items := services.NewItemService(store, secrets, store, sync).WithAccounts(accounts)
	if x, ok := provider.(ports.TokenExchanger); ok {
		items.WithTokenExchanger(x)
	}

	var queue *amqp.Client
	if config.AMQPURL != "" {
		queue, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, syncs run inline", log.FieldError, err)
			queue = nil
		} else {
			cleanup = append(cleanup, queue.Close)
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			if config.PublishSyncRequests {
				items.WithPublisher(queue)
			}
		}
	}

	return &BackendResult{
		Store:          store,
		Provider:       provider,
		Sync:           sync,
		Query:          services.NewQueryService(store),
		Mutation:       services.NewMutationService(store),
		Budgets:        services.NewBudgetService(store),
		Items:          items,
		Accounts:       accounts,
		Reconciliation: services.NewReconciliationService(store, items),
		Queue:          queue,
		Ready:          ready,
		Cleanup:        closeAll,
	}, nil
}

func (f *DefaultFactory) createProvider(ctx context.Context, config Config) (ports.Provider, error) {
	switch config.Provider {
	case PlaidProvider:
		client, err := plaid.New(plaid.Config{
			ClientID: config.PlaidClientID,
			Secret:   config.PlaidSecret,
			Env:      config.PlaidEnv,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize plaid provider: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized plaid provider", "env", config.PlaidEnv)
		return client, nil
	default:
		if config.ProviderFixtureDir == "" {
			f.logger.InfoContext(ctx, "Initialized empty mock provider")
			return providermem.New(), nil
		}
		p, err := providermem.NewFromDir(config.ProviderFixtureDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load provider fixtures: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized mock provider", "fixture_dir", config.ProviderFixtureDir)
		return p, nil
	}
}
