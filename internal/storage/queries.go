package storage

import (
	"context"
	"database/sql"
	"strings"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const transactionColumns = `account_id, id, posted_at, description, amount, currency, pending, category, modified_at, removed`

const upsertTransaction = `
INSERT INTO transactions (` + transactionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (account_id, id) DO UPDATE SET
    posted_at   = excluded.posted_at,
    description = excluded.description,
    amount      = excluded.amount,
    currency    = excluded.currency,
    pending     = excluded.pending,
    category    = excluded.category,
    modified_at = excluded.modified_at,
    removed     = excluded.removed`

func (q *Queries) UpsertTransaction(ctx context.Context, arg TransactionRow) error {
	_, err := q.db.ExecContext(ctx, upsertTransaction,
		arg.AccountID,
		arg.ID,
		arg.PostedAt,
		arg.Description,
		arg.Amount,
		arg.Currency,
		arg.Pending,
		arg.Category,
		arg.ModifiedAt,
		arg.Removed,
	)
	return err
}

const listTransactionsByAccount = `SELECT ` + transactionColumns + ` FROM transactions WHERE account_id = ?`

func (q *Queries) ListTransactionsByAccount(ctx context.Context, accountID string) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsByAccount, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionRow
	for rows.Next() {
		var i TransactionRow
		if err := scanTransaction(rows, &i); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE account_id = ? AND id = ?`

func (q *Queries) GetTransaction(ctx context.Context, accountID, id string) (TransactionRow, error) {
	row := q.db.QueryRowContext(ctx, getTransaction, accountID, id)
	var i TransactionRow
	err := scanTransaction(row, &i)
	return i, err
}

const updateTransactionCategory = `UPDATE transactions SET category = ? WHERE account_id = ? AND id = ?`

func (q *Queries) UpdateTransactionCategory(ctx context.Context, category sql.NullString, accountID, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateTransactionCategory, category, accountID, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markTransactionRemoved = `
UPDATE transactions SET removed = 1
WHERE id = ? AND removed = 0 AND account_id IN (/*SLICE:account_ids*/?)`

func (q *Queries) MarkTransactionRemoved(ctx context.Context, id string, accountIDs []string) (int64, error) {
	query := markTransactionRemoved
	var queryParams []interface{}
	queryParams = append(queryParams, id)
	if len(accountIDs) > 0 {
		for _, v := range accountIDs {
			queryParams = append(queryParams, v)
		}
		query = strings.Replace(query, "/*SLICE:account_ids*/?", strings.Repeat(",?", len(accountIDs))[1:], 1)
	} else {
		query = strings.Replace(query, "/*SLICE:account_ids*/?", "NULL", 1)
	}
	result, err := q.db.ExecContext(ctx, query, queryParams...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const createCategory = `INSERT INTO categories (id, group_id, name, created_at, archived_at) VALUES (?, ?, ?, ?, ?)`

func (q *Queries) CreateCategory(ctx context.Context, arg CategoryRow) error {
	_, err := q.db.ExecContext(ctx, createCategory, arg.ID, arg.GroupID, arg.Name, arg.CreatedAt, arg.ArchivedAt)
	return err
}

const getCategory = `SELECT id, group_id, name, created_at, archived_at FROM categories WHERE id = ?`

func (q *Queries) GetCategory(ctx context.Context, id string) (CategoryRow, error) {
	row := q.db.QueryRowContext(ctx, getCategory, id)
	var i CategoryRow
	err := row.Scan(&i.ID, &i.GroupID, &i.Name, &i.CreatedAt, &i.ArchivedAt)
	return i, err
}

const listActiveCategories = `
SELECT id, group_id, name, created_at, archived_at FROM categories
WHERE group_id = ? AND archived_at IS NULL
ORDER BY created_at, id`

func (q *Queries) ListActiveCategories(ctx context.Context, groupID string) ([]CategoryRow, error) {
	rows, err := q.db.QueryContext(ctx, listActiveCategories, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CategoryRow
	for rows.Next() {
		var i CategoryRow
		if err := rows.Scan(&i.ID, &i.GroupID, &i.Name, &i.CreatedAt, &i.ArchivedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const archiveCategory = `UPDATE categories SET archived_at = COALESCE(archived_at, ?) WHERE id = ?`

func (q *Queries) ArchiveCategory(ctx context.Context, archivedAt, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, archiveCategory, archivedAt, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const createPeriod = `INSERT INTO periods (id, group_id, start_date, type, created_at) VALUES (?, ?, ?, ?, ?)`

func (q *Queries) CreatePeriod(ctx context.Context, arg PeriodRow) error {
	_, err := q.db.ExecContext(ctx, createPeriod, arg.ID, arg.GroupID, arg.StartDate, arg.Type, arg.CreatedAt)
	return err
}

const getPeriod = `SELECT id, group_id, start_date, type, created_at FROM periods WHERE id = ?`

func (q *Queries) GetPeriod(ctx context.Context, id string) (PeriodRow, error) {
	row := q.db.QueryRowContext(ctx, getPeriod, id)
	var i PeriodRow
	err := row.Scan(&i.ID, &i.GroupID, &i.StartDate, &i.Type, &i.CreatedAt)
	return i, err
}

const upsertAllocation = `
INSERT INTO allocations (id, period_id, category_id, amount, currency, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (period_id, category_id) DO UPDATE SET
    amount      = excluded.amount,
    currency    = excluded.currency,
    modified_at = excluded.created_at
RETURNING id, period_id, category_id, amount, currency, created_at, modified_at`

func (q *Queries) UpsertAllocation(ctx context.Context, arg AllocationRow) (AllocationRow, error) {
	row := q.db.QueryRowContext(ctx, upsertAllocation,
		arg.ID,
		arg.PeriodID,
		arg.CategoryID,
		arg.Amount,
		arg.Currency,
		arg.CreatedAt,
	)
	var i AllocationRow
	err := row.Scan(&i.ID, &i.PeriodID, &i.CategoryID, &i.Amount, &i.Currency, &i.CreatedAt, &i.ModifiedAt)
	return i, err
}

const listAllocationsByPeriod = `
SELECT id, period_id, category_id, amount, currency, created_at, modified_at FROM allocations
WHERE period_id = ?
ORDER BY created_at, id`

func (q *Queries) ListAllocationsByPeriod(ctx context.Context, periodID string) ([]AllocationRow, error) {
	rows, err := q.db.QueryContext(ctx, listAllocationsByPeriod, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AllocationRow
	for rows.Next() {
		var i AllocationRow
		if err := rows.Scan(&i.ID, &i.PeriodID, &i.CategoryID, &i.Amount, &i.Currency, &i.CreatedAt, &i.ModifiedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const saveItem = `
INSERT INTO items (id, group_id, secret_handle, created_at, last_synced_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    group_id       = excluded.group_id,
    secret_handle  = excluded.secret_handle,
    last_synced_at = excluded.last_synced_at`

func (q *Queries) SaveItem(ctx context.Context, arg ItemRow) error {
	_, err := q.db.ExecContext(ctx, saveItem, arg.ID, arg.GroupID, arg.SecretHandle, arg.CreatedAt, arg.LastSyncedAt)
	return err
}

const getItem = `SELECT id, group_id, secret_handle, created_at, last_synced_at FROM items WHERE id = ?`

func (q *Queries) GetItem(ctx context.Context, id string) (ItemRow, error) {
	row := q.db.QueryRowContext(ctx, getItem, id)
	var i ItemRow
	err := row.Scan(&i.ID, &i.GroupID, &i.SecretHandle, &i.CreatedAt, &i.LastSyncedAt)
	return i, err
}

const listItems = `SELECT id, group_id, secret_handle, created_at, last_synced_at FROM items ORDER BY id`

func (q *Queries) ListItems(ctx context.Context) ([]ItemRow, error) {
	rows, err := q.db.QueryContext(ctx, listItems)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ItemRow
	for rows.Next() {
		var i ItemRow
		if err := rows.Scan(&i.ID, &i.GroupID, &i.SecretHandle, &i.CreatedAt, &i.LastSyncedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getAccountLinkGroup = `SELECT group_id FROM account_links WHERE account_id = ?`

func (q *Queries) GetAccountLinkGroup(ctx context.Context, accountID string) (string, error) {
	row := q.db.QueryRowContext(ctx, getAccountLinkGroup, accountID)
	var groupID string
	err := row.Scan(&groupID)
	return groupID, err
}

const upsertAccountLink = `
INSERT INTO account_links (account_id, group_id, item_id) VALUES (?, ?, ?)
ON CONFLICT (account_id) DO UPDATE SET item_id = excluded.item_id`

func (q *Queries) UpsertAccountLink(ctx context.Context, accountID, groupID, itemID string) error {
	_, err := q.db.ExecContext(ctx, upsertAccountLink, accountID, groupID, itemID)
	return err
}

const listItemAccounts = `SELECT account_id FROM account_links WHERE item_id = ? ORDER BY account_id`

func (q *Queries) ListItemAccounts(ctx context.Context, itemID string) ([]string, error) {
	return q.listAccountIDs(ctx, listItemAccounts, itemID)
}

const upsertAccount = `
INSERT INTO accounts (id, group_id, item_id, name, official_name, mask, type, subtype, currency, current_balance, last_synced_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    group_id = excluded.group_id,
    item_id = excluded.item_id,
    name = excluded.name,
    official_name = excluded.official_name,
    mask = excluded.mask,
    type = excluded.type,
    subtype = excluded.subtype,
    currency = excluded.currency,
    current_balance = excluded.current_balance,
    last_synced_at = excluded.last_synced_at`

func (q *Queries) UpsertAccount(ctx context.Context, arg AccountRow) error {
	_, err := q.db.ExecContext(ctx, upsertAccount,
		arg.ID,
		arg.GroupID,
		arg.ItemID,
		arg.Name,
		arg.OfficialName,
		arg.Mask,
		arg.Type,
		arg.Subtype,
		arg.Currency,
		arg.CurrentBalance,
		arg.LastSyncedAt,
	)
	return err
}

const listAccountsByGroup = `
SELECT id, group_id, item_id, name, official_name, mask, type, subtype, currency, current_balance, last_synced_at
FROM accounts WHERE group_id = ? ORDER BY id`

func (q *Queries) ListAccountsByGroup(ctx context.Context, groupID string) ([]AccountRow, error) {
	rows, err := q.db.QueryContext(ctx, listAccountsByGroup, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AccountRow
	for rows.Next() {
		var i AccountRow
		if err := rows.Scan(
			&i.ID,
			&i.GroupID,
			&i.ItemID,
			&i.Name,
			&i.OfficialName,
			&i.Mask,
			&i.Type,
			&i.Subtype,
			&i.Currency,
			&i.CurrentBalance,
			&i.LastSyncedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listGroupAccounts = `SELECT account_id FROM account_links WHERE group_id = ? ORDER BY account_id`

func (q *Queries) ListGroupAccounts(ctx context.Context, groupID string) ([]string, error) {
	return q.listAccountIDs(ctx, listGroupAccounts, groupID)
}

func (q *Queries) listAccountIDs(ctx context.Context, query, arg string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var accountID string
		if err := rows.Scan(&accountID); err != nil {
			return nil, err
		}
		items = append(items, accountID)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(s scanner, i *TransactionRow) error {
	return s.Scan(
		&i.AccountID,
		&i.ID,
		&i.PostedAt,
		&i.Description,
		&i.Amount,
		&i.Currency,
		&i.Pending,
		&i.Category,
		&i.ModifiedAt,
		&i.Removed,
	)
}
