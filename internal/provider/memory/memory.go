// Package memory is a scripted provider: each access token maps to a fixed
// sequence of sync pages. It backs PROVIDER=mock and tests.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"budgetpro/internal/core"
)

var (
	ErrUnknownCursor      = errors.New("unknown cursor")
	ErrUnknownPublicToken = errors.New("unknown public token")
)

// linkTokenTTL matches the lifetime aggregators give link tokens.
const linkTokenTTL = 4 * time.Hour

type Provider struct {
	mu       sync.Mutex
	feeds    map[string][]core.SyncPage
	accounts map[string][]core.ProviderAccount
	exchange map[string]string
	fail     map[string]error
	calls    map[string]int
	now      func() time.Time
}

func New() *Provider {
	return &Provider{
		feeds:    make(map[string][]core.SyncPage),
		accounts: make(map[string][]core.ProviderAccount),
		exchange: make(map[string]string),
		fail:     make(map[string]error),
		calls:    make(map[string]int),
		now:      time.Now,
	}
}

// SetAccounts scripts the accounts reported for accessToken.
func (p *Provider) SetAccounts(accessToken string, accounts ...core.ProviderAccount) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[accessToken] = append([]core.ProviderAccount(nil), accounts...)
}

// SetPublicToken makes ExchangePublicToken trade publicToken for accessToken.
func (p *Provider) SetPublicToken(publicToken, accessToken string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchange[publicToken] = accessToken
}

// SetPages scripts the feed for accessToken. Cursors are rewritten so page i
// is reached with cursor "c<i>" and HasMore is true on every page but the
// last.
func (p *Provider) SetPages(accessToken string, pages ...core.SyncPage) {
	scripted := make([]core.SyncPage, len(pages))
	for i, page := range pages {
		page.HasMore = i < len(pages)-1
		page.NextCursor = "c" + strconv.Itoa(i+1)
		scripted[i] = page
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.feeds[accessToken] = scripted
}

// FailWith makes every call for accessToken return err. A nil err clears it.
func (p *Provider) FailWith(accessToken string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.fail, accessToken)
		return
	}
	p.fail[accessToken] = err
}

// Calls reports how many SyncTransactions calls were made for accessToken.
func (p *Provider) Calls(accessToken string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[accessToken]
}

// SyncTransactions returns the page addressed by cursor. Unknown tokens get a
// single empty page.
func (p *Provider) SyncTransactions(ctx context.Context, accessToken, cursor string) (core.SyncPage, error) {
	if err := ctx.Err(); err != nil {
		return core.SyncPage{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[accessToken]++

	if err := p.fail[accessToken]; err != nil {
		return core.SyncPage{}, err
	}
	pages := p.feeds[accessToken]
	if len(pages) == 0 {
		return core.SyncPage{Added: []core.ProviderTransaction{}, Modified: []core.ProviderTransaction{}, Removed: []core.RemovedTransaction{}}, nil
	}

	idx := 0
	if cursor != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(cursor, "c"))
		if err != nil || !strings.HasPrefix(cursor, "c") || n < 0 || n >= len(pages) {
			return core.SyncPage{}, fmt.Errorf("%w: %q", ErrUnknownCursor, cursor)
		}
		idx = n
	}
	return clonePage(pages[idx]), nil
}

// ListAccounts returns the scripted accounts. Unknown tokens have none.
func (p *Provider) ListAccounts(ctx context.Context, accessToken string) ([]core.ProviderAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail[accessToken]; err != nil {
		return nil, err
	}
	return append([]core.ProviderAccount{}, p.accounts[accessToken]...), nil
}

func (p *Provider) CreateLinkToken(ctx context.Context, userID string) (core.LinkToken, error) {
	if err := ctx.Err(); err != nil {
		return core.LinkToken{}, err
	}
	return core.LinkToken{
		Token:      "link-mock-" + userID,
		Expiration: p.now().UTC().Add(linkTokenTTL),
	}, nil
}

func (p *Provider) ExchangePublicToken(ctx context.Context, publicToken string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	accessToken, ok := p.exchange[publicToken]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPublicToken, publicToken)
	}
	return accessToken, nil
}

func clonePage(page core.SyncPage) core.SyncPage {
	out := page
	out.Added = cloneRecords(page.Added)
	out.Modified = cloneRecords(page.Modified)
	out.Removed = append([]core.RemovedTransaction(nil), page.Removed...)
	return out
}

func cloneRecords(in []core.ProviderTransaction) []core.ProviderTransaction {
	out := make([]core.ProviderTransaction, len(in))
	for i, r := range in {
		if r.Category != nil {
			r.Category = append([]string(nil), r.Category...)
		}
		out[i] = r
	}
	return out
}

// fixtureFeed is the on-disk shape of a fixture file.
type fixtureFeed struct {
	AccessToken string                 `json:"accessToken"`
	PublicToken string                 `json:"publicToken,omitempty"`
	Accounts    []core.ProviderAccount `json:"accounts,omitempty"`
	Pages       []core.SyncPage        `json:"pages"`
}

// NewFromDir loads every *.json fixture under dir. Each file scripts one
// access token, its accounts and optionally the public token that exchanges
// for it. A missing directory yields an empty provider.
func NewFromDir(dir string) (*Provider, error) {
	p := New()
	if dir == "" {
		return p, nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("glob fixtures: %w", err)
	}
	for _, path := range matches {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read fixture %s: %w", path, err)
		}
		var feed fixtureFeed
		if err := json.Unmarshal(raw, &feed); err != nil {
			return nil, fmt.Errorf("parse fixture %s: %w", path, err)
		}
		if feed.AccessToken == "" {
			feed.AccessToken = strings.TrimSuffix(filepath.Base(path), ".json")
		}
		for i, page := range feed.Pages {
			for _, r := range append(append([]core.ProviderTransaction(nil), page.Added...), page.Modified...) {
				if err := r.Validate(); err != nil {
					return nil, fmt.Errorf("fixture %s page %d record %q: %w", path, i, r.ID, err)
				}
			}
		}
		for _, a := range feed.Accounts {
			if strings.TrimSpace(a.ID) == "" {
				return nil, fmt.Errorf("fixture %s: account without id", path)
			}
		}
		p.SetPages(feed.AccessToken, feed.Pages...)
		if len(feed.Accounts) > 0 {
			p.SetAccounts(feed.AccessToken, feed.Accounts...)
		}
		if feed.PublicToken != "" {
			p.SetPublicToken(feed.PublicToken, feed.AccessToken)
		}
	}
	return p, nil
}
