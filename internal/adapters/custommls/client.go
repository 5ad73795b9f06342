// internal/adapters/custommls/client.go
package custommls

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/adapters/observability"
	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/domain"
)

const (
	searchTTL  = 900  // 15 min
	detailsTTL = 3600 // 1 h
	statsTTL   = 7200 // 2 h

	// healthWindow bounds how old the last successful call may be for the
	// provider to still count as healthy.
	healthWindow = 5 * time.Minute
)

var (
	ErrNotFound     = errors.New("custommls: not found")
	ErrUnauthorized = errors.New("custommls: unauthorized")
	ErrForbidden    = errors.New("custommls: forbidden")
)

// Client is an operator-registered provider integration. The endpoint itself
// is the search resource (POST); listing details live one path segment below
// it; responses are projected through the compiled field mapping.
type Client struct {
	id       string
	name     string
	endpoint string
	hc       *http.Client
	auth     authorizer
	m        mapping
	rl       domain.Limiter
	cache    domain.Cache

	mu          sync.Mutex
	lastSuccess time.Time

	now func() time.Time
}

// New compiles cfg into a ready adapter. Config problems (bad auth tag,
// missing credential fields, missing listingId path) surface here so a broken
// registration never reaches a request path.
func New(id string, cfg domain.CustomProviderConfig, rl domain.Limiter, cache domain.Cache) (*Client, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("provider %s: %w", id, err)
	}
	hc := &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond}
	auth, err := newAuthorizer(cfg.Auth, hc)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", id, err)
	}
	return &Client{
		id:       id,
		name:     cfg.Name,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		hc:       hc,
		auth:     auth,
		m:        compileMapping(cfg.Mapping),
		rl:       rl,
		cache:    cache,
		now:      time.Now,
	}, nil
}

func (c *Client) ID() string   { return c.id }
func (c *Client) Name() string { return c.name }

// ---- Provider operations ----

func (c *Client) SearchListings(ctx context.Context, criteria domain.SearchCriteria) ([]domain.PropertyListing, error) {
	criteria = criteria.Normalize()
	key := fmt.Sprintf("custommls:%s:search:%s", c.id, criteria.CacheKey())
	var cached []domain.PropertyListing
	if c.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	var doc any
	if err := c.post(ctx, c.endpoint, criteria, &doc); err != nil {
		return nil, c.opErr("search", err)
	}
	now := c.now()
	raws := c.m.resultsArray(doc)
	out := make([]domain.PropertyListing, 0, len(raws))
	for _, it := range raws {
		obj, ok := it.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, c.m.listing(c.id, obj, now))
	}
	c.markSuccess()
	c.cachePut(ctx, key, out, searchTTL)
	return out, nil
}

// GetListing returns (nil, nil) when the provider reports the id as unknown.
func (c *Client) GetListing(ctx context.Context, id string) (*domain.PropertyListing, error) {
	key := fmt.Sprintf("custommls:%s:listing:%s", c.id, id)
	var cached domain.PropertyListing
	if c.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := c.get(ctx, c.endpoint+"/"+url.PathEscape(id), &doc); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, c.opErr("details", err)
	}
	l := c.m.listing(c.id, doc, c.now())
	c.markSuccess()
	c.cachePut(ctx, key, l, detailsTTL)
	return &l, nil
}

func (c *Client) MarketStats(ctx context.Context, region, period string) (map[string]any, error) {
	if period == "" {
		period = "30d"
	}
	key := fmt.Sprintf("custommls:%s:stats:%s:%s", c.id, region, period)
	var cached map[string]any
	if c.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/stats?region=%s&period=%s",
		c.endpoint, url.QueryEscape(region), url.QueryEscape(period))
	var out map[string]any
	if err := c.get(ctx, u, &out); err != nil {
		return nil, c.opErr("stats", err)
	}
	c.markSuccess()
	c.cachePut(ctx, key, out, statsTTL)
	return out, nil
}

// TestConnection issues a minimal bounded search. Success stamps the health
// window; failure describes the provider so registration can reject with
// actionable detail.
func (c *Client) TestConnection(ctx context.Context) error {
	if err := c.acquire(ctx); err != nil {
		return fmt.Errorf("provider %s: connection test: %w", c.id, err)
	}
	probe := domain.SearchCriteria{MaxResults: 1}
	var doc any
	if err := c.post(ctx, c.endpoint, probe, &doc); err != nil {
		return fmt.Errorf("provider %s: connection test failed: %w", c.id, err)
	}
	c.markSuccess()
	return nil
}

// HealthCheck is a live probe; it refreshes the health window on success.
func (c *Client) HealthCheck(ctx context.Context) bool {
	ok := c.TestConnection(ctx) == nil
	observability.SetProviderUp(c.id, ok)
	return ok
}

// Healthy reports whether the last successful call is younger than five
// minutes. It never issues a probe: a provider not exercised recently reads
// as unhealthy until something re-verifies it.
func (c *Client) Healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.lastSuccess.IsZero() && c.now().Sub(c.lastSuccess) < healthWindow
}

// ---- Internals ----

func (c *Client) markSuccess() {
	c.mu.Lock()
	c.lastSuccess = c.now()
	c.mu.Unlock()
}

func (c *Client) opErr(op string, err error) error {
	return &domain.ProviderError{Provider: c.id, Op: op, Err: err}
}

func (c *Client) acquire(ctx context.Context) error {
	if c.rl == nil {
		return nil
	}
	start := time.Now()
	err := c.rl.Acquire(ctx)
	observability.ObserveRateLimitWait(c.id, time.Since(start))
	return err
}

func (c *Client) cacheGet(ctx context.Context, key string, dst any) bool {
	if c.cache == nil {
		return false
	}
	ok, err := c.cache.Get(ctx, key, dst)
	return err == nil && ok
}

func (c *Client) cachePut(ctx context.Context, key string, v any, ttlSec int) {
	if c.cache == nil {
		return
	}
	_ = c.cache.Set(ctx, key, v, ttlSec)
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	return c.do(ctx, http.MethodGet, url, nil, out)
}

func (c *Client) post(ctx context.Context, url string, body, out any) error {
	return c.do(ctx, http.MethodPost, url, body, out)
}

// do performs one authorized request and decodes the JSON response into out.
// No retries; the gateway degrades on failure.
func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "agentradar/1.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.auth.apply(ctx, req); err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal(c.id, method, 0, time.Since(start))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer resp.Body.Close()
	observability.ObserveExternal(c.id, method, resp.StatusCode, time.Since(start))

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return json.NewDecoder(resp.Body).Decode(out)

	case http.StatusNoContent:
		io.Copy(io.Discard, resp.Body)
		return nil

	case http.StatusNotFound:
		return ErrNotFound

	case http.StatusUnauthorized:
		return ErrUnauthorized

	case http.StatusForbidden:
		return ErrForbidden

	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
}
