// Package plaid implements the provider capability against the Plaid API:
// /transactions/sync for the feed, /accounts/get for account metadata and
// the link-token and public-token endpoints for the link flow.
package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"budgetpro/internal/core"
)

const (
	pageSize   = 100
	clientName = "BudgetPro"
)

var environments = map[string]string{
	"sandbox":     "https://sandbox.plaid.com",
	"development": "https://development.plaid.com",
	"production":  "https://production.plaid.com",
}

var ErrMissingCredentials = errors.New("plaid client id and secret are required")

// APIError is a non-2xx response from Plaid.
type APIError struct {
	StatusCode   int
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func (e *APIError) Error() string {
	if e.ErrorCode == "" {
		return fmt.Sprintf("plaid: http %d", e.StatusCode)
	}
	return fmt.Sprintf("plaid: http %d %s: %s", e.StatusCode, e.ErrorCode, e.ErrorMessage)
}

type Config struct {
	ClientID string
	Secret   string
	Env      string // sandbox, development or production
	BaseURL  string // overrides Env when set
	Timeout  time.Duration
}

type Client struct {
	clientID string
	secret   string
	baseURL  string
	http     *http.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.Secret == "" {
		return nil, ErrMissingCredentials
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		env := cfg.Env
		if env == "" {
			env = "sandbox"
		}
		u, ok := environments[env]
		if !ok {
			return nil, fmt.Errorf("unknown plaid environment %q", env)
		}
		baseURL = u
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		clientID: cfg.ClientID,
		secret:   cfg.Secret,
		baseURL:  baseURL,
		http:     &http.Client{Timeout: timeout},
	}, nil
}

type credentials struct {
	ClientID string `json:"client_id"`
	Secret   string `json:"secret"`
}

func (c *Client) credentials() credentials {
	return credentials{ClientID: c.clientID, Secret: c.secret}
}

// post sends in as JSON to path and decodes a 2xx body into out. Non-2xx
// responses come back as *APIError.
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		return apiErr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

type syncRequest struct {
	credentials
	AccessToken string `json:"access_token"`
	Cursor      string `json:"cursor,omitempty"`
	Count       int    `json:"count"`
}

type plaidTransaction struct {
	TransactionID   string          `json:"transaction_id"`
	AccountID       string          `json:"account_id"`
	Date            string          `json:"date"`
	Name            string          `json:"name"`
	Amount          decimal.Decimal `json:"amount"`
	ISOCurrencyCode *string         `json:"iso_currency_code"`
	Pending         bool            `json:"pending"`
	Category        []string        `json:"category"`
}

type syncResponse struct {
	Added    []plaidTransaction `json:"added"`
	Modified []plaidTransaction `json:"modified"`
	Removed  []struct {
		TransactionID string `json:"transaction_id"`
	} `json:"removed"`
	NextCursor string `json:"next_cursor"`
	HasMore    bool   `json:"has_more"`
}

func (c *Client) SyncTransactions(ctx context.Context, accessToken, cursor string) (core.SyncPage, error) {
	var data syncResponse
	err := c.post(ctx, "/transactions/sync", syncRequest{
		credentials: c.credentials(),
		AccessToken: accessToken,
		Cursor:      cursor,
		Count:       pageSize,
	}, &data)
	if err != nil {
		return core.SyncPage{}, err
	}
	return toPage(data)
}

type accessTokenRequest struct {
	credentials
	AccessToken string `json:"access_token"`
}

type plaidAccount struct {
	AccountID    string  `json:"account_id"`
	Name         string  `json:"name"`
	OfficialName *string `json:"official_name"`
	Mask         *string `json:"mask"`
	Type         string  `json:"type"`
	Subtype      *string `json:"subtype"`
	Balances     struct {
		Current         *decimal.Decimal `json:"current"`
		ISOCurrencyCode *string          `json:"iso_currency_code"`
	} `json:"balances"`
}

type accountsResponse struct {
	Accounts []plaidAccount `json:"accounts"`
}

// ListAccounts maps /accounts/get. A missing balance reads as zero.
func (c *Client) ListAccounts(ctx context.Context, accessToken string) ([]core.ProviderAccount, error) {
	var data accountsResponse
	err := c.post(ctx, "/accounts/get", accessTokenRequest{
		credentials: c.credentials(),
		AccessToken: accessToken,
	}, &data)
	if err != nil {
		return nil, err
	}

	out := make([]core.ProviderAccount, 0, len(data.Accounts))
	for _, a := range data.Accounts {
		currency := deref(a.Balances.ISOCurrencyCode)
		if currency == "" {
			currency = core.DefaultCurrency
		}
		var balance int64
		if a.Balances.Current != nil {
			balance, err = core.DecimalToMinorUnits(*a.Balances.Current, currency)
			if err != nil {
				return nil, fmt.Errorf("account %s balance: %w", a.AccountID, err)
			}
		}
		name := a.Name
		if name == "" {
			name = deref(a.OfficialName)
		}
		out = append(out, core.ProviderAccount{
			ID:             a.AccountID,
			Name:           name,
			OfficialName:   deref(a.OfficialName),
			Mask:           deref(a.Mask),
			Type:           a.Type,
			Subtype:        deref(a.Subtype),
			Currency:       currency,
			CurrentBalance: balance,
		})
	}
	return out, nil
}

type linkTokenRequest struct {
	credentials
	ClientName   string   `json:"client_name"`
	Language     string   `json:"language"`
	CountryCodes []string `json:"country_codes"`
	Products     []string `json:"products"`
	User         struct {
		ClientUserID string `json:"client_user_id"`
	} `json:"user"`
}

type linkTokenResponse struct {
	LinkToken  string    `json:"link_token"`
	Expiration time.Time `json:"expiration"`
}

func (c *Client) CreateLinkToken(ctx context.Context, userID string) (core.LinkToken, error) {
	in := linkTokenRequest{
		credentials:  c.credentials(),
		ClientName:   clientName,
		Language:     "en",
		CountryCodes: []string{"US"},
		Products:     []string{"transactions"},
	}
	in.User.ClientUserID = userID

	var data linkTokenResponse
	if err := c.post(ctx, "/link/token/create", in, &data); err != nil {
		return core.LinkToken{}, err
	}
	return core.LinkToken{Token: data.LinkToken, Expiration: data.Expiration}, nil
}

type publicTokenRequest struct {
	credentials
	PublicToken string `json:"public_token"`
}

type publicTokenResponse struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
}

func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (string, error) {
	var data publicTokenResponse
	err := c.post(ctx, "/item/public_token/exchange", publicTokenRequest{
		credentials: c.credentials(),
		PublicToken: publicToken,
	}, &data)
	if err != nil {
		return "", err
	}
	if data.AccessToken == "" {
		return "", errors.New("plaid: exchange returned no access token")
	}
	return data.AccessToken, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toPage(data syncResponse) (core.SyncPage, error) {
	page := core.SyncPage{
		Added:      make([]core.ProviderTransaction, 0, len(data.Added)),
		Modified:   make([]core.ProviderTransaction, 0, len(data.Modified)),
		Removed:    make([]core.RemovedTransaction, 0, len(data.Removed)),
		NextCursor: data.NextCursor,
		HasMore:    data.HasMore,
	}
	for _, t := range data.Added {
		r, err := toRecord(t)
		if err != nil {
			return core.SyncPage{}, err
		}
		page.Added = append(page.Added, r)
	}
	for _, t := range data.Modified {
		r, err := toRecord(t)
		if err != nil {
			return core.SyncPage{}, err
		}
		page.Modified = append(page.Modified, r)
	}
	for _, r := range data.Removed {
		page.Removed = append(page.Removed, core.RemovedTransaction{ID: r.TransactionID})
	}
	return page, nil
}

func toRecord(t plaidTransaction) (core.ProviderTransaction, error) {
	currency := core.DefaultCurrency
	if t.ISOCurrencyCode != nil && *t.ISOCurrencyCode != "" {
		currency = *t.ISOCurrencyCode
	}
	amount, err := core.DecimalToMinorUnits(t.Amount, currency)
	if err != nil {
		return core.ProviderTransaction{}, fmt.Errorf("transaction %s amount: %w", t.TransactionID, err)
	}
	return core.ProviderTransaction{
		ID:          t.TransactionID,
		AccountID:   t.AccountID,
		PostedAt:    t.Date,
		Description: t.Name,
		Amount:      amount,
		Currency:    currency,
		Pending:     t.Pending,
		Category:    t.Category,
	}, nil
}
