// Package mercari implements the marketplace.Adapter interface against
// Mercari's listing search and item-detail HTTP API.
package mercari

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mhbka/itemtracker/internal/gallery"
	"github.com/mhbka/itemtracker/pkg/fn"
	"github.com/mhbka/itemtracker/pkg/metrics"
	"github.com/mhbka/itemtracker/pkg/resilience"
	"golang.org/x/time/rate"
)

// searchRetryOpts governs retries of a single search page fetch against a
// transient 5xx from Mercari's search API. 4xx responses are never
// retried here — repeating an identical bad request just repeats the
// failure — nor is a 429, which the rate limiter already paces around.
var searchRetryOpts = fn.RetryOpts{
	MaxAttempts: 3,
	InitialWait: 200 * time.Millisecond,
	MaxWait:     2 * time.Second,
	Jitter:      true,
}

// httpStatusError carries the response status alongside the wrapped
// error so callers can decide whether a failure is worth retrying.
type httpStatusError struct {
	status int
	err    error
}

func (e *httpStatusError) Error() string { return e.err.Error() }
func (e *httpStatusError) Unwrap() error { return e.err }

func isRetryableStatus(err error) bool {
	var se *httpStatusError
	return errors.As(err, &se) && se.status >= 500
}

const (
	searchURL = "https://api.mercari.jp/search_index/search"
	itemURL   = "https://api.mercari.jp/items/get"
)

// Client scrapes Mercari search results and item details.
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	breaker     *resilience.Breaker
	signer      *Signer
	pageSize    int
}

// New creates a Mercari client. signer supplies the per-request DPoP JWT;
// a nil signer sends requests unsigned (useful in tests against a fake).
func New(signer *Signer) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		rateLimiter: rate.NewLimiter(rate.Every(150*time.Millisecond), 3),
		breaker:     resilience.NewBreaker(resilience.DefaultBreakerOpts),
		signer:      signer,
		pageSize:    60,
	}
}

type searchResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Updated int64  `json:"updated"`
	} `json:"items"`
	Meta struct {
		NextPageToken string `json:"nextPageToken"`
	} `json:"meta"`
}

// SearchScrape implements marketplace.Adapter. It paginates until the
// source reports no further page token, or until a page's items do not
// exceed since, in which case it filters the current page to strictly
// newer items and stops.
func (c *Client) SearchScrape(ctx context.Context, criteria gallery.SearchCriteria, since gallery.UnixUtcDateTime) fn.Result[[]gallery.ItemId] {
	var out []gallery.ItemId
	pageToken := ""

	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fn.Err[[]gallery.ItemId](err)
		}

		page, err := resilience.CallResult(c.breaker, ctx, func(ctx context.Context) fn.Result[searchResponse] {
			sr, err := c.fetchSearchPage(ctx, criteria, pageToken)
			if err == nil {
				return fn.Ok(sr)
			}
			if !isRetryableStatus(err) {
				return fn.Err[searchResponse](err)
			}
			// Transient 5xx: retry this page a few times before letting
			// the breaker see it as a call failure.
			return fn.Retry(ctx, searchRetryOpts, func(ctx context.Context) fn.Result[searchResponse] {
				sr, err := c.fetchSearchPage(ctx, criteria, pageToken)
				if err != nil {
					return fn.Err[searchResponse](err)
				}
				return fn.Ok(sr)
			})
		}).Unwrap()
		if err != nil {
			metrics.MarketplaceFetchErrors.WithLabelValues(string(gallery.Mercari)).Inc()
			return fn.Err[[]gallery.ItemId](err)
		}

		stop := false
		for _, it := range page.Items {
			updated := gallery.FromUnixSeconds(it.Updated)
			if !since.IsZero() && !updated.After(since) {
				stop = true
				break
			}
			out = append(out, it.ID)
		}

		if stop || page.Meta.NextPageToken == "" {
			break
		}
		pageToken = page.Meta.NextPageToken
	}

	return fn.Ok(out)
}

func (c *Client) fetchSearchPage(ctx context.Context, criteria gallery.SearchCriteria, pageToken string) (searchResponse, error) {
	q := url.Values{}
	q.Set("keyword", criteria.Keyword)
	if criteria.ExcludeKeyword != "" {
		q.Set("excludeKeyword", criteria.ExcludeKeyword)
	}
	if criteria.MinPrice != nil {
		q.Set("priceMin", strconv.FormatFloat(*criteria.MinPrice, 'f', -1, 64))
	}
	if criteria.MaxPrice != nil {
		q.Set("priceMax", strconv.FormatFloat(*criteria.MaxPrice, 'f', -1, 64))
	}
	q.Set("limit", strconv.Itoa(c.pageSize))
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}

	reqURL := searchURL + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return searchResponse{}, err
	}
	if err := c.sign(req); err != nil {
		return searchResponse{}, fmt.Errorf("sign search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return searchResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return searchResponse{}, &httpStatusError{
			status: resp.StatusCode,
			err:    fmt.Errorf("mercari search: status %d: %s", resp.StatusCode, body),
		}
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return searchResponse{}, fmt.Errorf("mercari search: decode: %w", err)
	}
	return sr, nil
}

type itemResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	SellerID    string   `json:"sellerId"`
	Category    string   `json:"itemCategoryName"`
	Thumbnails  []string `json:"photos"`
	Condition   string   `json:"itemConditionName"`
	Created     int64    `json:"created"`
	Updated     int64    `json:"updated"`
}

// ItemScrape implements marketplace.Adapter: one request per id, isolated.
func (c *Client) ItemScrape(ctx context.Context, ids []gallery.ItemId) []fn.Result[gallery.MarketplaceItemData] {
	return fn.ParMapResult(ids, 8, func(id gallery.ItemId) fn.Result[gallery.MarketplaceItemData] {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fn.Err[gallery.MarketplaceItemData](err)
		}
		result := resilience.CallResult(c.breaker, ctx, func(ctx context.Context) fn.Result[gallery.MarketplaceItemData] {
			return c.fetchItem(ctx, id)
		})
		if result.IsErr() {
			metrics.MarketplaceFetchErrors.WithLabelValues(string(gallery.Mercari)).Inc()
		}
		return result
	})
}

func (c *Client) fetchItem(ctx context.Context, id gallery.ItemId) fn.Result[gallery.MarketplaceItemData] {
	reqURL := itemURL + "?" + url.Values{"id": {id}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fn.Err[gallery.MarketplaceItemData](err)
	}
	if err := c.sign(req); err != nil {
		return fn.Err[gallery.MarketplaceItemData](fmt.Errorf("sign item request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fn.Err[gallery.MarketplaceItemData](err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fn.Err[gallery.MarketplaceItemData](fmt.Errorf("mercari item %s: status %d: %s", id, resp.StatusCode, body))
	}

	var ir itemResponse
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return fn.Err[gallery.MarketplaceItemData](fmt.Errorf("mercari item %s: decode: %w", id, err))
	}

	return fn.Ok(gallery.MarketplaceItemData{
		ItemID:        ir.ID,
		Name:          ir.Name,
		Price:         ir.Price,
		Description:   ir.Description,
		Status:        ir.Status,
		SellerID:      ir.SellerID,
		Category:      ir.Category,
		Thumbnails:    ir.Thumbnails,
		ItemCondition: ir.Condition,
		Created:       gallery.FromUnixSeconds(ir.Created),
		Updated:       gallery.FromUnixSeconds(ir.Updated),
	})
}

func (c *Client) sign(req *http.Request) error {
	if c.signer == nil {
		return nil
	}
	token, err := c.signer.Sign(req.Method, req.URL.String())
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "DPoP "+token)
	return nil
}
