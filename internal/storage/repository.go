package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"budgetpro/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements the ledger, budget and item stores on a single
// SQLite database.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc sqlite serialises writers; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func dsn(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// UpsertMany writes all records in one transaction.
func (r *SQLiteRepository) UpsertMany(ctx context.Context, records []core.Transaction) error {
	if len(records) == 0 {
		return nil
	}
	err := r.withTx(ctx, func(q *Queries) error {
		for _, rec := range records {
			row, err := transactionToRow(rec)
			if err != nil {
				return err
			}
			if err := q.UpsertTransaction(ctx, row); err != nil {
				return fmt.Errorf("upsert transaction %s: %w", rec.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.DebugContext(ctx, "Transactions upserted", "count", len(records))
	return nil
}

func (r *SQLiteRepository) ListByAccount(ctx context.Context, accountID string) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list transactions for account %s: %w", accountID, err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, transactionID, accountID string, category []string) (*core.Transaction, error) {
	encoded, err := encodeCategory(category)
	if err != nil {
		return nil, err
	}

	var updated *core.Transaction
	err = r.withTx(ctx, func(q *Queries) error {
		n, err := q.UpdateTransactionCategory(ctx, encoded, accountID, transactionID)
		if err != nil {
			return fmt.Errorf("update category: %w", err)
		}
		if n == 0 {
			return nil
		}
		row, err := q.GetTransaction(ctx, accountID, transactionID)
		if err != nil {
			return fmt.Errorf("reload transaction: %w", err)
		}
		t, err := row.toCore()
		if err != nil {
			return err
		}
		updated = &t
		return nil
	})
	return updated, err
}

func (r *SQLiteRepository) MarkRemoved(ctx context.Context, accountIDs, ids []string) (int, error) {
	if len(accountIDs) == 0 || len(ids) == 0 {
		return 0, nil
	}
	total := 0
	err := r.withTx(ctx, func(q *Queries) error {
		for _, id := range ids {
			n, err := q.MarkTransactionRemoved(ctx, id, accountIDs)
			if err != nil {
				return fmt.Errorf("mark %s removed: %w", id, err)
			}
			total += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	err := r.queries.CreateCategory(ctx, CategoryRow{
		ID:         c.ID,
		GroupID:    c.GroupID,
		Name:       c.Name,
		CreatedAt:  formatTime(c.CreatedAt),
		ArchivedAt: formatNullTime(c.ArchivedAt),
	})
	if isUniqueViolation(err) {
		return core.ErrCategoryExists
	}
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id string) (*core.Category, error) {
	row, err := r.queries.GetCategory(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	c, err := row.toCore()
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, groupID string) ([]core.Category, error) {
	rows, err := r.queries.ListActiveCategories(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, 0, len(rows))
	for _, row := range rows {
		c, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *SQLiteRepository) ArchiveCategory(ctx context.Context, id string, at time.Time) error {
	n, err := r.queries.ArchiveCategory(ctx, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("archive category: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) CreatePeriod(ctx context.Context, p core.Period) error {
	err := r.queries.CreatePeriod(ctx, PeriodRow{
		ID:        p.ID,
		GroupID:   p.GroupID,
		StartDate: p.StartDate,
		Type:      string(p.Type),
		CreatedAt: formatTime(p.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("create period: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetPeriod(ctx context.Context, id string) (*core.Period, error) {
	row, err := r.queries.GetPeriod(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get period: %w", err)
	}
	p, err := row.toCore()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *SQLiteRepository) PutAllocation(ctx context.Context, a core.Allocation) (core.Allocation, error) {
	row, err := r.queries.UpsertAllocation(ctx, AllocationRow{
		ID:         a.ID,
		PeriodID:   a.PeriodID,
		CategoryID: a.CategoryID,
		Amount:     a.Amount,
		Currency:   a.Currency,
		CreatedAt:  formatTime(a.CreatedAt),
	})
	if err != nil {
		return core.Allocation{}, fmt.Errorf("put allocation: %w", err)
	}
	return row.toCore()
}

func (r *SQLiteRepository) ListAllocations(ctx context.Context, periodID string) ([]core.Allocation, error) {
	rows, err := r.queries.ListAllocationsByPeriod(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	out := make([]core.Allocation, 0, len(rows))
	for _, row := range rows {
		a, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *SQLiteRepository) SaveItem(ctx context.Context, item core.Item) error {
	err := r.queries.SaveItem(ctx, ItemRow{
		ID:           item.ID,
		GroupID:      item.GroupID,
		SecretHandle: item.SecretHandle,
		CreatedAt:    formatTime(item.CreatedAt),
		LastSyncedAt: formatNullTime(item.LastSyncedAt),
	})
	if err != nil {
		return fmt.Errorf("save item: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetItem(ctx context.Context, id string) (*core.Item, error) {
	row, err := r.queries.GetItem(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	item, err := row.toCore()
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *SQLiteRepository) ListItems(ctx context.Context) ([]core.Item, error) {
	rows, err := r.queries.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	out := make([]core.Item, 0, len(rows))
	for _, row := range rows {
		item, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *SQLiteRepository) LinkAccounts(ctx context.Context, links []core.AccountLink) ([]string, error) {
	if len(links) == 0 {
		return nil, nil
	}
	var conflicts []string
	err := r.withTx(ctx, func(q *Queries) error {
		conflicts = conflicts[:0]
		for _, l := range links {
			groupID, err := q.GetAccountLinkGroup(ctx, l.AccountID)
			switch {
			case errors.Is(err, sql.ErrNoRows):
			case err != nil:
				return fmt.Errorf("read link for account %s: %w", l.AccountID, err)
			case groupID != l.GroupID:
				conflicts = append(conflicts, l.AccountID)
				continue
			}
			if err := q.UpsertAccountLink(ctx, l.AccountID, l.GroupID, l.ItemID); err != nil {
				return fmt.Errorf("link account %s: %w", l.AccountID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conflicts, nil
}

func (r *SQLiteRepository) ListGroupAccounts(ctx context.Context, groupID string) ([]string, error) {
	accounts, err := r.queries.ListGroupAccounts(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group accounts: %w", err)
	}
	return accounts, nil
}

func (r *SQLiteRepository) ListItemAccounts(ctx context.Context, itemID string) ([]string, error) {
	accounts, err := r.queries.ListItemAccounts(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("list item accounts: %w", err)
	}
	return accounts, nil
}

func (r *SQLiteRepository) UpsertAccounts(ctx context.Context, accounts []core.Account) error {
	if len(accounts) == 0 {
		return nil
	}
	return r.withTx(ctx, func(q *Queries) error {
		for _, a := range accounts {
			if err := q.UpsertAccount(ctx, accountRow(a)); err != nil {
				return fmt.Errorf("upsert account %s: %w", a.ID, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) ListAccountsByGroup(ctx context.Context, groupID string) ([]core.Account, error) {
	rows, err := r.queries.ListAccountsByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]core.Account, 0, len(rows))
	for _, row := range rows {
		a, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
