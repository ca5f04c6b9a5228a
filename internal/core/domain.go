package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

const (
	// UncategorizedLabel is assigned when neither the categorization policy
	// nor the provider supplies a category.
	UncategorizedLabel = "Uncategorized"

	// DefaultCurrency is reported for budget totals with no allocations.
	DefaultCurrency = "USD"

	MonthPeriod PeriodType = "MONTH"
)

type (
	PeriodType string

	// Transaction is a ledger record. Identity is (AccountID, ID) where ID is
	// the provider's external transaction id.
	Transaction struct {
		ID          string    `json:"id"`
		AccountID   string    `json:"accountId"`
		PostedAt    string    `json:"postedAt"` // YYYY-MM-DD
		Description string    `json:"description"`
		Amount      int64     `json:"amount"` // minor units, signed
		Currency    string    `json:"currency"`
		Pending     bool      `json:"pending"`
		Category    []string  `json:"category,omitempty"`
		ModifiedAt  time.Time `json:"modifiedAt"`
		Removed     bool      `json:"removed,omitempty"`
	}

	// ProviderTransaction is a raw record as reported by the aggregator feed.
	ProviderTransaction struct {
		ID          string   `json:"id"`
		AccountID   string   `json:"accountId"`
		PostedAt    string   `json:"postedAt"`
		Description string   `json:"description"`
		Amount      int64    `json:"amount"`
		Currency    string   `json:"currency"`
		Pending     bool     `json:"pending"`
		Category    []string `json:"category,omitempty"`
	}

	RemovedTransaction struct {
		ID string `json:"id"`
	}

	// SyncPage is one page of the provider's cursor-paginated feed.
	// An empty NextCursor means no cursor was returned.
	SyncPage struct {
		Added      []ProviderTransaction `json:"added"`
		Modified   []ProviderTransaction `json:"modified"`
		Removed    []RemovedTransaction  `json:"removed"`
		NextCursor string                `json:"nextCursor,omitempty"`
		HasMore    bool                  `json:"hasMore"`
	}

	// SyncResult counts the entries seen across every page of a sync pass.
	SyncResult struct {
		Added    int `json:"added"`
		Modified int `json:"modified"`
		Removed  int `json:"removed"`
	}

	Category struct {
		ID         string     `json:"id"`
		GroupID    string     `json:"groupId"`
		Name       string     `json:"name"`
		CreatedAt  time.Time  `json:"createdAt"`
		ArchivedAt *time.Time `json:"archivedAt,omitempty"`
	}

	Period struct {
		ID        string     `json:"id"`
		GroupID   string     `json:"groupId"`
		StartDate string     `json:"startDate"` // YYYY-MM-DD
		Type      PeriodType `json:"type"`
		CreatedAt time.Time  `json:"createdAt"`
	}

	Allocation struct {
		ID         string     `json:"id"`
		PeriodID   string     `json:"periodId"`
		CategoryID string     `json:"categoryId"`
		Amount     int64      `json:"amount"` // planned spend, minor units
		Currency   string     `json:"currency"`
		CreatedAt  time.Time  `json:"createdAt"`
		ModifiedAt *time.Time `json:"modifiedAt,omitempty"`
	}

	// Item is a linked aggregator credential. The access token itself is
	// only held sealed behind SecretHandle.
	Item struct {
		ID           string     `json:"id"`
		GroupID      string     `json:"groupId"`
		SecretHandle string     `json:"-"`
		CreatedAt    time.Time  `json:"createdAt"`
		LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
	}

	// AccountLink assigns an account to the group of the item that reported
	// it. An account belongs to at most one group.
	AccountLink struct {
		AccountID string
		GroupID   string
		ItemID    string
	}

	// ProviderAccount is an account as reported by the aggregator.
	ProviderAccount struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		OfficialName   string `json:"officialName,omitempty"`
		Mask           string `json:"mask,omitempty"`
		Type           string `json:"type"`
		Subtype        string `json:"subtype,omitempty"`
		Currency       string `json:"currency"`
		CurrentBalance int64  `json:"currentBalance"` // minor units
	}

	// Account is a provider account ingested under a group.
	Account struct {
		ID             string    `json:"id"`
		GroupID        string    `json:"groupId"`
		ItemID         string    `json:"itemId"`
		Name           string    `json:"name"`
		OfficialName   string    `json:"officialName,omitempty"`
		Mask           string    `json:"mask,omitempty"`
		Type           string    `json:"type"`
		Subtype        string    `json:"subtype,omitempty"`
		Currency       string    `json:"currency"`
		CurrentBalance int64     `json:"currentBalance"`
		LastSyncedAt   time.Time `json:"lastSyncedAt"`
	}

	// LinkToken is a short-lived token the client hands to the aggregator's
	// link widget.
	LinkToken struct {
		Token      string    `json:"linkToken"`
		Expiration time.Time `json:"expiration"`
	}
)

var (
	ErrNotFound         = errors.New("not found")
	ErrPeriodNotFound   = errors.New("period not found")
	ErrItemNotFound     = errors.New("item not found")
	ErrProviderFailure  = errors.New("provider failure")
	ErrValidation       = errors.New("validation failed")
	ErrInvalidLimit     = errors.New("invalid limit")
	ErrInvalidCursor    = errors.New("invalid cursor")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrEmptyName        = errors.New("empty name")
	ErrCategoryExists   = errors.New("category already exists")
	ErrGroupMismatch    = errors.New("group mismatch")
	ErrEmptyAccessToken = errors.New("empty access token")
	ErrUnsupported      = errors.New("not supported by provider")
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// PrimaryCategory returns the first category element, or "" when absent.
func (t Transaction) PrimaryCategory() string {
	if len(t.Category) == 0 {
		return ""
	}
	return t.Category[0]
}

// HasCategory reports whether name is one of the transaction's categories.
func (t Transaction) HasCategory(name string) bool {
	for _, c := range t.Category {
		if c == name {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with t.
func (t Transaction) Clone() Transaction {
	if t.Category != nil {
		t.Category = append([]string(nil), t.Category...)
	}
	return t
}

// Month returns the YYYY-MM window the period matches against.
func (p Period) Month() string {
	if len(p.StartDate) < 7 {
		return p.StartDate
	}
	return p.StartDate[:7]
}

func (c Category) IsArchived() bool {
	return c.ArchivedAt != nil
}

// ValidateDate checks a YYYY-MM-DD calendar date.
func ValidateDate(s string) error {
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return ErrInvalidDate
	}
	return nil
}

func ValidateCurrency(s string) error {
	if !currencyPattern.MatchString(s) {
		return ErrInvalidCurrency
	}
	return nil
}

func (a Allocation) Validate() error {
	if strings.TrimSpace(a.PeriodID) == "" || strings.TrimSpace(a.CategoryID) == "" {
		return ErrValidation
	}
	if a.Amount < 0 {
		return ErrInvalidAmount
	}
	return ValidateCurrency(a.Currency)
}

func (p ProviderTransaction) Validate() error {
	if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.AccountID) == "" {
		return ErrValidation
	}
	if err := ValidateDate(p.PostedAt); err != nil {
		return err
	}
	return ValidateCurrency(p.Currency)
}
