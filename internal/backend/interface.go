package backend

import (
	"context"

	"budgetpro/internal/amqp"
	"budgetpro/internal/ports"
	"budgetpro/internal/services"
)

// Store is everything a storage backend must provide.
type Store interface {
	ports.LedgerStore
	ports.BudgetStore
	ports.ItemStore
	ports.AccountStore
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult is the wired application: the store plus every service
// built on top of it.
type BackendResult struct {
	Store          Store
	Provider       ports.Provider
	Sync           *services.SyncService
	Query          *services.QueryService
	Mutation       *services.MutationService
	Budgets        *services.BudgetService
	Items          *services.ItemService
	Accounts       *services.AccountService
	Reconciliation *services.ReconciliationService

	// Queue is nil when AMQP is not configured or unreachable.
	Queue *amqp.Client

	// Ready reports whether the store can serve requests.
	Ready   func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Queue, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	// PublishSyncRequests routes ItemService.RequestSync through the queue.
	// Workers consuming the queue leave it off.
	PublishSyncRequests bool

	// Provider
	Provider           ProviderType
	PlaidClientID      string
	PlaidSecret        string
	PlaidEnv           string
	ProviderFixtureDir string

	VaultKey string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// ProviderType selects the transaction feed implementation.
type ProviderType string

const (
	MockProvider  ProviderType = "mock"
	PlaidProvider ProviderType = "plaid"
)

func (pt ProviderType) IsValid() bool {
	return pt == MockProvider || pt == PlaidProvider
}
