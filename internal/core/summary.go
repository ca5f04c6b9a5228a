package core

// CategoryBudgetView is the reconciliation of one allocation.
type CategoryBudgetView struct {
	CategoryID           string `json:"categoryId"`
	Name                 string `json:"name"`
	AllocationMinorUnits int64  `json:"allocationMinorUnits"`
	SpentMinorUnits      int64  `json:"spentMinorUnits"`
	RemainingMinorUnits  int64  `json:"remainingMinorUnits"` // negative on overspend
	Currency             string `json:"currency"`
}

type BudgetTotals struct {
	Allocated int64  `json:"allocated"`
	Spent     int64  `json:"spent"`
	Remaining int64  `json:"remaining"`
	Currency  string `json:"currency"`
}

// PeriodBudgetView is the spent/remaining projection for one period.
type PeriodBudgetView struct {
	PeriodID   string               `json:"periodId"`
	GroupID    string               `json:"groupId"`
	StartDate  string               `json:"startDate"`
	Type       PeriodType           `json:"type"`
	Categories []CategoryBudgetView `json:"categories"`
	Totals     BudgetTotals         `json:"totals"`
}

// ListParams filters and paginates a ledger listing.
type ListParams struct {
	AccountID string
	Limit     int    // 0 means default
	Cursor    string // positional offset, "" for the first page
	MinAmount *int64
	MaxAmount *int64
	Category  string
}

type ListResult struct {
	Items      []Transaction `json:"items"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

type SetCategoryParams struct {
	TransactionID string
	AccountID     string
	Category      string
}

// SetCategoryResult carries a nil Updated when the transaction does not exist.
type SetCategoryResult struct {
	Updated *Transaction `json:"transaction,omitempty"`
}

// ItemSyncOutcome is the per-item line of a scheduled sync run.
type ItemSyncOutcome struct {
	ItemID string
	Result SyncResult
	Err    error
}

type SyncReport struct {
	Items  []ItemSyncOutcome
	Failed int
}
