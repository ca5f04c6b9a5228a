package plaid

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{ClientID: "id", Secret: "sec", BaseURL: srv.URL})
	require.NoError(t, err)
	return c
}

func TestSyncTransactionsMapsPage(t *testing.T) {
	var got syncRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/sync", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"added": [{"transaction_id": "t1", "account_id": "acc1", "date": "2025-01-01", "name": "Coffee",
			           "amount": 4.5, "iso_currency_code": "USD", "pending": false, "category": ["Food", "Coffee"]}],
			"modified": [{"transaction_id": "t2", "account_id": "acc1", "date": "2025-01-02", "name": "Ramen",
			              "amount": 1200, "iso_currency_code": "JPY", "pending": true, "category": null}],
			"removed": [{"transaction_id": "t0"}],
			"next_cursor": "cursor2",
			"has_more": true
		}`))
	})

	page, err := c.SyncTransactions(context.Background(), "access-1", "cursor1")
	require.NoError(t, err)

	assert.Equal(t, "access-1", got.AccessToken)
	assert.Equal(t, "id", got.ClientID)
	assert.Equal(t, "sec", got.Secret)
	assert.Equal(t, "cursor1", got.Cursor)
	assert.Equal(t, pageSize, got.Count)

	require.Len(t, page.Added, 1)
	assert.Equal(t, int64(450), page.Added[0].Amount)
	assert.Equal(t, []string{"Food", "Coffee"}, page.Added[0].Category)

	require.Len(t, page.Modified, 1)
	assert.Equal(t, int64(1200), page.Modified[0].Amount, "zero-exponent currency")
	assert.Nil(t, page.Modified[0].Category)
	assert.True(t, page.Modified[0].Pending)

	require.Len(t, page.Removed, 1)
	assert.Equal(t, "t0", page.Removed[0].ID)
	assert.Equal(t, "cursor2", page.NextCursor)
	assert.True(t, page.HasMore)
}

func TestSyncTransactionsDefaultsCurrency(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"added": [{"transaction_id": "t1", "account_id": "a", "date": "2025-01-01",
			"name": "x", "amount": 0.1, "iso_currency_code": null}], "modified": [], "removed": [], "has_more": false}`))
	})

	page, err := c.SyncTransactions(context.Background(), "tok", "")
	require.NoError(t, err)
	require.Len(t, page.Added, 1)
	assert.Equal(t, "USD", page.Added[0].Currency)
	assert.Equal(t, int64(10), page.Added[0].Amount)
}

func TestSyncTransactionsAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_type": "ITEM_ERROR", "error_code": "ITEM_LOGIN_REQUIRED", "error_message": "login required"}`))
	})

	_, err := c.SyncTransactions(context.Background(), "tok", "")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "ITEM_LOGIN_REQUIRED", apiErr.ErrorCode)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = New(Config{ClientID: "a", Secret: "b", Env: "moon"})
	assert.Error(t, err)

	c, err := New(Config{ClientID: "a", Secret: "b"})
	require.NoError(t, err)
	assert.Equal(t, environments["sandbox"], c.baseURL)
}

func TestListAccountsMapsBalances(t *testing.T) {
	var got accessTokenRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/get", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"accounts": [
			{"account_id": "acc1", "name": "Plaid Checking", "official_name": "Plaid Gold Standard 0% Interest Checking",
			 "mask": "0000", "type": "depository", "subtype": "checking",
			 "balances": {"current": 110.25, "iso_currency_code": "USD"}},
			{"account_id": "acc2", "name": "", "official_name": "Yen Card", "mask": null, "type": "credit", "subtype": null,
			 "balances": {"current": 5000, "iso_currency_code": "JPY"}},
			{"account_id": "acc3", "name": "Pending", "type": "depository",
			 "balances": {"current": null, "iso_currency_code": null}}
		]}`))
	})

	accounts, err := c.ListAccounts(context.Background(), "access-1")
	require.NoError(t, err)
	assert.Equal(t, "access-1", got.AccessToken)
	require.Len(t, accounts, 3)

	assert.Equal(t, "acc1", accounts[0].ID)
	assert.Equal(t, "Plaid Checking", accounts[0].Name)
	assert.Equal(t, "0000", accounts[0].Mask)
	assert.Equal(t, "checking", accounts[0].Subtype)
	assert.Equal(t, int64(11025), accounts[0].CurrentBalance)

	assert.Equal(t, "Yen Card", accounts[1].Name, "falls back to official name")
	assert.Equal(t, int64(5000), accounts[1].CurrentBalance)
	assert.Empty(t, accounts[1].Subtype)

	assert.Equal(t, "USD", accounts[2].Currency)
	assert.Zero(t, accounts[2].CurrentBalance)
}

func TestCreateLinkToken(t *testing.T) {
	var got linkTokenRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/link/token/create", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"link_token": "link-sandbox-123", "expiration": "2025-01-01T04:00:00Z"}`))
	})

	token, err := c.CreateLinkToken(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.User.ClientUserID)
	assert.Equal(t, []string{"transactions"}, got.Products)
	assert.Equal(t, clientName, got.ClientName)
	assert.Equal(t, "link-sandbox-123", token.Token)
	assert.True(t, token.Expiration.Equal(time.Date(2025, 1, 1, 4, 0, 0, 0, time.UTC)))
}

func TestExchangePublicToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/item/public_token/exchange", r.URL.Path)
		var in publicTokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		if in.PublicToken != "public-sandbox-1" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error_type": "INVALID_INPUT", "error_code": "INVALID_PUBLIC_TOKEN", "error_message": "bad token"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token": "access-sandbox-1", "item_id": "item-1"}`))
	})

	access, err := c.ExchangePublicToken(context.Background(), "public-sandbox-1")
	require.NoError(t, err)
	assert.Equal(t, "access-sandbox-1", access)

	_, err = c.ExchangePublicToken(context.Background(), "public-other")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "INVALID_PUBLIC_TOKEN", apiErr.ErrorCode)
}
