// internal/adapters/repliers/client.go
package repliers

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
	"time"

	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/adapters/observability"
	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/domain"
)

// ProviderID keys the primary provider in aggregate results and cache keys.
const ProviderID = "repliers"

const (
	DefaultBaseURL = "https://api.repliers.io"
	DefaultRegion  = "GTA"

	searchTTL  = 900  // 15 min
	detailsTTL = 3600 // 1 h
	statsTTL   = 7200 // 2 h
)

var (
	ErrNotFound     = errors.New("repliers: not found")
	ErrUnauthorized = errors.New("repliers: unauthorized")
	ErrForbidden    = errors.New("repliers: forbidden")
)

// Client is the fixed primary-provider integration. Every outbound call goes
// through the injected limiter; search, details and stats are cache-first.
type Client struct {
	base   string
	region string
	hc     *http.Client
	key    string
	rl     domain.Limiter
	cache  domain.Cache
	now    func() time.Time
}

func New(base, key, region string, timeout time.Duration, rl domain.Limiter, cache domain.Cache) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("repliers: API key is required")
	}
	if base == "" {
		base = DefaultBaseURL
	}
	if region == "" {
		region = DefaultRegion
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base:   strings.TrimRight(base, "/"),
		region: region,
		hc:     &http.Client{Timeout: timeout},
		key:    key,
		rl:     rl,
		cache:  cache,
		now:    time.Now,
	}, nil
}

// ---- Wire shapes ----

type searchRequest struct {
	Region         string   `json:"region"`
	City           string   `json:"city,omitempty"`
	Province       string   `json:"province,omitempty"`
	MinPrice       *float64 `json:"minPrice,omitempty"`
	MaxPrice       *float64 `json:"maxPrice,omitempty"`
	MinBeds        *int     `json:"minBeds,omitempty"`
	MinBaths       *int     `json:"minBaths,omitempty"`
	PropertyType   string   `json:"propertyType,omitempty"`
	ResultsPerPage int      `json:"resultsPerPage"`
	Offset         int      `json:"offset"`
}

type searchResponse struct {
	Listings []listingDTO `json:"listings"`
	Count    int          `json:"count"`
}

type listingDTO struct {
	MLSNumber    string     `json:"mlsNumber"`
	ListPrice    float64    `json:"listPrice"`
	Address      addressDTO `json:"address"`
	Map          *mapDTO    `json:"map"`
	Details      detailsDTO `json:"details"`
	ListDate     string     `json:"listDate"`
	DaysOnMarket *int       `json:"daysOnMarket"`
	LastStatus   string     `json:"lastStatus"`
	Images       []string   `json:"images"`
}

type addressDTO struct {
	StreetNumber string `json:"streetNumber"`
	StreetName   string `json:"streetName"`
	StreetSuffix string `json:"streetSuffix"`
	City         string `json:"city"`
	State        string `json:"state"`
	Zip          string `json:"zip"`
}

type mapDTO struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type detailsDTO struct {
	PropertyType string  `json:"propertyType"`
	NumBedrooms  int     `json:"numBedrooms"`
	NumBathrooms float64 `json:"numBathrooms"`
	SqFt         *int    `json:"sqft"`
}

// ---- Public API ----

func (c *Client) SearchListings(ctx context.Context, criteria domain.SearchCriteria) ([]domain.PropertyListing, error) {
	criteria = criteria.Normalize()
	key := "repliers:search:" + criteria.CacheKey()
	var cached []domain.PropertyListing
	if c.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	var resp searchResponse
	if err := c.post(ctx, c.base+"/listings/search", c.searchBody(criteria), &resp); err != nil {
		return nil, c.opErr("search", err)
	}
	out := make([]domain.PropertyListing, 0, len(resp.Listings))
	for _, d := range resp.Listings {
		out = append(out, c.mapListing(d))
	}
	c.cachePut(ctx, key, out, searchTTL)
	return out, nil
}

// GetListing returns (nil, nil) when the provider reports the id as unknown.
func (c *Client) GetListing(ctx context.Context, id string) (*domain.PropertyListing, error) {
	key := "repliers:listing:" + id
	var cached domain.PropertyListing
	if c.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	var dto listingDTO
	if err := c.get(ctx, c.base+"/listings/"+url.PathEscape(id), &dto); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, c.opErr("details", err)
	}
	l := c.mapListing(dto)
	c.cachePut(ctx, key, l, detailsTTL)
	return &l, nil
}

func (c *Client) MarketStats(ctx context.Context, region, period string) (map[string]any, error) {
	if region == "" {
		region = c.region
	}
	if period == "" {
		period = "30d"
	}
	key := fmt.Sprintf("repliers:stats:%s:%s", region, period)
	var cached map[string]any
	if c.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/market/statistics?region=%s&period=%s",
		c.base, url.QueryEscape(region), url.QueryEscape(period))
	var out map[string]any
	if err := c.get(ctx, u, &out); err != nil {
		return nil, c.opErr("stats", err)
	}
	c.cachePut(ctx, key, out, statsTTL)
	return out, nil
}

// HealthCheck is a liveness probe; any failure maps to false, never an error.
func (c *Client) HealthCheck(ctx context.Context) bool {
	ok := c.probe(ctx)
	observability.SetProviderUp(ProviderID, ok)
	return ok
}

func (c *Client) probe(ctx context.Context) bool {
	if err := c.acquire(ctx); err != nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return false
	}
	c.decorate(req, false)
	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal(ProviderID, "health", 0, time.Since(start))
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	observability.ObserveExternal(ProviderID, "health", resp.StatusCode, time.Since(start))
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// ---- Internals ----

func (c *Client) searchBody(criteria domain.SearchCriteria) searchRequest {
	return searchRequest{
		Region:         c.region,
		City:           criteria.City,
		Province:       criteria.Province,
		MinPrice:       criteria.MinPrice,
		MaxPrice:       criteria.MaxPrice,
		MinBeds:        criteria.Bedrooms,
		MinBaths:       criteria.Bathrooms,
		PropertyType:   criteria.PropertyType,
		ResultsPerPage: criteria.MaxResults,
		Offset:         criteria.Offset,
	}
}

func (c *Client) mapListing(d listingDTO) domain.PropertyListing {
	now := c.now()
	l := domain.PropertyListing{
		ID:           d.MLSNumber,
		Provider:     ProviderID,
		Address:      joinAddress(d.Address),
		City:         d.Address.City,
		Province:     d.Address.State,
		Price:        d.ListPrice,
		PropertyType: d.Details.PropertyType,
		Bedrooms:     d.Details.NumBedrooms,
		Bathrooms:    d.Details.NumBathrooms,
		Status:       d.LastStatus,
		LastUpdated:  now,
		Photos:       d.Images,
	}
	if d.MLSNumber != "" {
		n := d.MLSNumber
		l.MLSNumber = &n
	}
	if d.Address.Zip != "" {
		z := d.Address.Zip
		l.PostalCode = &z
	}
	if d.Map != nil {
		l.Coordinates = &domain.Coordinates{Lat: d.Map.Latitude, Lng: d.Map.Longitude}
	}
	if d.Details.SqFt != nil {
		l.SquareFootage = d.Details.SqFt
	}
	l.ListingDate = parseDate(d.ListDate)
	if d.DaysOnMarket != nil {
		l.DaysOnMarket = *d.DaysOnMarket
	} else {
		l.DaysOnMarket = domain.DaysOnMarketSince(l.ListingDate, now)
	}
	if l.Status == "" {
		l.Status = domain.StatusActive
	}
	if l.Photos == nil {
		l.Photos = []string{}
	}
	return l
}

func joinAddress(a addressDTO) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.StreetNumber, a.StreetName, a.StreetSuffix} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (c *Client) opErr(op string, err error) error {
	return &domain.ProviderError{Provider: ProviderID, Op: op, Err: err}
}

func (c *Client) acquire(ctx context.Context) error {
	if c.rl == nil {
		return nil
	}
	start := time.Now()
	err := c.rl.Acquire(ctx)
	observability.ObserveRateLimitWait(ProviderID, time.Since(start))
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

// do performs one request and decodes the JSON response into out. The adapter
// never retries; connectivity failures bubble up for the gateway to degrade.
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
	c.decorate(req, body != nil)

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal(ProviderID, method, 0, time.Since(start))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer resp.Body.Close()
	observability.ObserveExternal(ProviderID, method, resp.StatusCode, time.Since(start))

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

func (c *Client) decorate(req *http.Request, hasBody bool) {
	req.Header.Set("REPLIERS-API-KEY", c.key)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "agentradar/1.0")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
}
