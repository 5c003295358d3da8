package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"pos-register/internal/terminal/session"

	"go.uber.org/zap"
)

// cacheTTL suppresses duplicate page fetches within a short window
const cacheTTL = time.Minute

// PageMeta mirrors the pagination envelope of /api/products/infinite
type PageMeta struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	Total       int `json:"total"`
	PerPage     int `json:"per_page"`
}

// Page is one page of catalog results
type Page struct {
	Data []Product `json:"data"`
	Meta PageMeta  `json:"meta"`
}

type pageKey struct {
	page    int
	perPage int
	search  string
}

type cacheEntry struct {
	page      *Page
	fetchedAt time.Time
}

// Client fetches paged product listings. Results are cached per
// (page, size, search) key for cacheTTL; the bearer token is resolved
// per request from the token source.
type Client struct {
	baseURL  string
	pageSize int
	http     *http.Client
	tokens   session.TokenSource
	logger   *zap.Logger

	mu    sync.Mutex
	cache map[pageKey]cacheEntry
	now   func() time.Time
}

func NewClient(baseURL string, pageSize int, httpClient *http.Client, tokens session.TokenSource, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:  baseURL,
		pageSize: pageSize,
		http:     httpClient,
		tokens:   tokens,
		logger:   logger,
		cache:    make(map[pageKey]cacheEntry),
		now:      time.Now,
	}
}

// FetchPage returns one page of products matching search. Pages are
// one-based. A fresh cached copy is returned without a network call.
func (c *Client) FetchPage(ctx context.Context, page int, search string) (*Page, error) {
	if page < 1 {
		page = 1
	}
	key := pageKey{page: page, perPage: c.pageSize, search: search}

	c.mu.Lock()
	if entry, ok := c.cache[key]; ok && c.now().Sub(entry.fetchedAt) < cacheTTL {
		c.mu.Unlock()
		return entry.page, nil
	}
	c.mu.Unlock()

	result, err := c.fetch(ctx, page, search)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[key] = cacheEntry{page: result, fetchedAt: c.now()}
	c.mu.Unlock()

	return result, nil
}

// Products walks pages from the first until the reported last page or an
// empty page, returning the accumulated listing.
func (c *Client) Products(ctx context.Context, search string) ([]Product, error) {
	var all []Product
	for page := 1; ; page++ {
		result, err := c.FetchPage(ctx, page, search)
		if err != nil {
			return nil, err
		}
		if len(result.Data) == 0 {
			break
		}
		all = append(all, result.Data...)
		if result.Meta.CurrentPage >= result.Meta.LastPage {
			break
		}
	}
	return all, nil
}

func (c *Client) fetch(ctx context.Context, page int, search string) (*Page, error) {
	query := url.Values{}
	query.Set("per_page", strconv.Itoa(c.pageSize))
	query.Set("page", strconv.Itoa(page))
	if search != "" {
		query.Set("search", search)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/products/infinite?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, session.ErrSessionExpired
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog fetch returned status %d", resp.StatusCode)
	}

	var result Page
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode catalog page: %w", err)
	}
	return &result, nil
}
