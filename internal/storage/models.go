package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"budgetpro/internal/core"
)

// Timestamps are stored as RFC3339 text in UTC.
const timeLayout = time.RFC3339Nano

type TransactionRow struct {
	AccountID   string
	ID          string
	PostedAt    string
	Description string
	Amount      int64
	Currency    string
	Pending     bool
	Category    sql.NullString // JSON array, NULL when absent
	ModifiedAt  string
	Removed     bool
}

type CategoryRow struct {
	ID         string
	GroupID    string
	Name       string
	CreatedAt  string
	ArchivedAt sql.NullString
}

type PeriodRow struct {
	ID        string
	GroupID   string
	StartDate string
	Type      string
	CreatedAt string
}

type AllocationRow struct {
	ID         string
	PeriodID   string
	CategoryID string
	Amount     int64
	Currency   string
	CreatedAt  string
	ModifiedAt sql.NullString
}

type ItemRow struct {
	ID           string
	GroupID      string
	SecretHandle string
	CreatedAt    string
	LastSyncedAt sql.NullString
}

type AccountRow struct {
	ID             string
	GroupID        string
	ItemID         string
	Name           string
	OfficialName   sql.NullString
	Mask           sql.NullString
	Type           string
	Subtype        sql.NullString
	Currency       string
	CurrentBalance int64
	LastSyncedAt   string
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeCategory(category []string) (sql.NullString, error) {
	if category == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(category)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode category: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeCategory(s sql.NullString) ([]string, error) {
	if !s.Valid {
		return nil, nil
	}
	category := []string{}
	if err := json.Unmarshal([]byte(s.String), &category); err != nil {
		return nil, fmt.Errorf("decode category: %w", err)
	}
	return category, nil
}

func transactionToRow(t core.Transaction) (TransactionRow, error) {
	category, err := encodeCategory(t.Category)
	if err != nil {
		return TransactionRow{}, err
	}
	return TransactionRow{
		AccountID:   t.AccountID,
		ID:          t.ID,
		PostedAt:    t.PostedAt,
		Description: t.Description,
		Amount:      t.Amount,
		Currency:    t.Currency,
		Pending:     t.Pending,
		Category:    category,
		ModifiedAt:  formatTime(t.ModifiedAt),
		Removed:     t.Removed,
	}, nil
}

func (r TransactionRow) toCore() (core.Transaction, error) {
	category, err := decodeCategory(r.Category)
	if err != nil {
		return core.Transaction{}, err
	}
	modifiedAt, err := parseTime(r.ModifiedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		ID:          r.ID,
		AccountID:   r.AccountID,
		PostedAt:    r.PostedAt,
		Description: r.Description,
		Amount:      r.Amount,
		Currency:    r.Currency,
		Pending:     r.Pending,
		Category:    category,
		ModifiedAt:  modifiedAt,
		Removed:     r.Removed,
	}, nil
}

func (r CategoryRow) toCore() (core.Category, error) {
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return core.Category{}, err
	}
	archivedAt, err := parseNullTime(r.ArchivedAt)
	if err != nil {
		return core.Category{}, err
	}
	return core.Category{
		ID:         r.ID,
		GroupID:    r.GroupID,
		Name:       r.Name,
		CreatedAt:  createdAt,
		ArchivedAt: archivedAt,
	}, nil
}

func (r PeriodRow) toCore() (core.Period, error) {
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return core.Period{}, err
	}
	return core.Period{
		ID:        r.ID,
		GroupID:   r.GroupID,
		StartDate: r.StartDate,
		Type:      core.PeriodType(r.Type),
		CreatedAt: createdAt,
	}, nil
}

func (r AllocationRow) toCore() (core.Allocation, error) {
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return core.Allocation{}, err
	}
	modifiedAt, err := parseNullTime(r.ModifiedAt)
	if err != nil {
		return core.Allocation{}, err
	}
	return core.Allocation{
		ID:         r.ID,
		PeriodID:   r.PeriodID,
		CategoryID: r.CategoryID,
		Amount:     r.Amount,
		Currency:   r.Currency,
		CreatedAt:  createdAt,
		ModifiedAt: modifiedAt,
	}, nil
}

func (r ItemRow) toCore() (core.Item, error) {
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return core.Item{}, err
	}
	lastSyncedAt, err := parseNullTime(r.LastSyncedAt)
	if err != nil {
		return core.Item{}, err
	}
	return core.Item{
		ID:           r.ID,
		GroupID:      r.GroupID,
		SecretHandle: r.SecretHandle,
		CreatedAt:    createdAt,
		LastSyncedAt: lastSyncedAt,
	}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func accountRow(a core.Account) AccountRow {
	return AccountRow{
		ID:             a.ID,
		GroupID:        a.GroupID,
		ItemID:         a.ItemID,
		Name:           a.Name,
		OfficialName:   nullString(a.OfficialName),
		Mask:           nullString(a.Mask),
		Type:           a.Type,
		Subtype:        nullString(a.Subtype),
		Currency:       a.Currency,
		CurrentBalance: a.CurrentBalance,
		LastSyncedAt:   formatTime(a.LastSyncedAt),
	}
}

func (r AccountRow) toCore() (core.Account, error) {
	lastSyncedAt, err := parseTime(r.LastSyncedAt)
	if err != nil {
		return core.Account{}, err
	}
	return core.Account{
		ID:             r.ID,
		GroupID:        r.GroupID,
		ItemID:         r.ItemID,
		Name:           r.Name,
		OfficialName:   r.OfficialName.String,
		Mask:           r.Mask.String,
		Type:           r.Type,
		Subtype:        r.Subtype.String,
		Currency:       r.Currency,
		CurrentBalance: r.CurrentBalance,
		LastSyncedAt:   lastSyncedAt,
	}, nil
}
