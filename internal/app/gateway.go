package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/domain"
	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/ratelimit"
)

// AdapterFactory builds a custom-provider adapter from a registered config.
// Injected so the gateway never imports transport code and the lifecycle is
// testable with fakes.
type AdapterFactory func(id string, cfg domain.CustomProviderConfig, rl domain.Limiter) (domain.CustomProvider, error)

// registration is one registry entry: the adapter together with the limiter
// sized to its configured RPM.
type registration struct {
	id       string
	adapter  domain.CustomProvider
	limiter  domain.Limiter
	cfg      domain.CustomProviderConfig
	throttle *rate.Sometimes
}

// Gateway fans searches and health checks out across the fixed primary
// provider and every registered custom provider, and owns the custom-provider
// lifecycle (add, test, remove). A nil store disables persistence.
type Gateway struct {
	primaryID     string
	primaryRegion string
	primary       domain.ListingProvider
	factory       AdapterFactory
	store         domain.ProviderStore

	mu        sync.RWMutex
	providers map[string]*registration

	primaryThrottle *rate.Sometimes
}

func NewGateway(primaryID, primaryRegion string, primary domain.ListingProvider, factory AdapterFactory, store domain.ProviderStore) *Gateway {
	return &Gateway{
		primaryID:       primaryID,
		primaryRegion:   primaryRegion,
		primary:         primary,
		factory:         factory,
		store:           store,
		providers:       make(map[string]*registration),
		primaryThrottle: &rate.Sometimes{First: 3, Interval: time.Minute},
	}
}

func (g *Gateway) PrimaryID() string { return g.primaryID }

// SearchAll fans the criteria out to the primary and every registered custom
// provider concurrently and settles all branches: a failing provider is
// logged and contributes an empty list for its key, never an error.
func (g *Gateway) SearchAll(ctx context.Context, criteria domain.SearchCriteria) domain.AggregateResult {
	criteria = criteria.Normalize()
	snap := g.snapshot()

	out := domain.AggregateResult{
		Primary: []domain.PropertyListing{},
		Custom:  make(map[string][]domain.PropertyListing, len(snap)),
	}
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		ls, err := g.primary.SearchListings(ctx, criteria)
		if err != nil {
			g.primaryThrottle.Do(func() {
				log.Warn().Err(err).Str("provider", g.primaryID).Msg("provider search failed, degrading to empty result")
			})
			return
		}
		mu.Lock()
		out.Primary = ls
		mu.Unlock()
	}()

	for _, e := range snap {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ls, err := e.adapter.SearchListings(ctx, criteria)
			if err != nil {
				e.throttle.Do(func() {
					log.Warn().Err(err).Str("provider", e.id).Msg("provider search failed, degrading to empty result")
				})
				ls = nil
			}
			if ls == nil {
				ls = []domain.PropertyListing{}
			}
			mu.Lock()
			out.Custom[e.id] = ls
			mu.Unlock()
		}()
	}
	wg.Wait()

	out.Total = len(out.Primary)
	for _, ls := range out.Custom {
		out.Total += len(ls)
	}
	return out
}

// SearchOne restricts the search to a single provider by id.
func (g *Gateway) SearchOne(ctx context.Context, providerID string, criteria domain.SearchCriteria) ([]domain.PropertyListing, error) {
	p, err := g.provider(providerID)
	if err != nil {
		return nil, err
	}
	return p.SearchListings(ctx, criteria.Normalize())
}

// GetListing resolves one listing. Listing ids are provider-scoped, so an
// empty providerID means the primary provider. A (nil, nil) return is a
// clean not-found.
func (g *Gateway) GetListing(ctx context.Context, providerID, id string) (*domain.PropertyListing, error) {
	if providerID == "" {
		providerID = g.primaryID
	}
	p, err := g.provider(providerID)
	if err != nil {
		return nil, err
	}
	return p.GetListing(ctx, id)
}

// MarketStats proxies the primary provider's market statistics.
func (g *Gateway) MarketStats(ctx context.Context, region, period string) (map[string]any, error) {
	return g.primary.MarketStats(ctx, region, period)
}

// AddCustomProvider builds the adapter and its limiter, proves connectivity,
// and only then registers. A failure at any step leaves the registry exactly
// as it was and surfaces the original error.
func (g *Gateway) AddCustomProvider(ctx context.Context, id string, cfg domain.CustomProviderConfig) error {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	g.mu.RLock()
	_, exists := g.providers[id]
	g.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: %s", domain.ErrProviderExists, id)
	}

	rl := ratelimit.PerMinute(cfg.RateLimitRPM)
	adapter, err := g.factory(id, cfg, rl)
	if err != nil {
		return err
	}
	if err := adapter.TestConnection(ctx); err != nil {
		log.Warn().Err(err).Str("provider", id).Msg("custom provider rejected")
		return err
	}

	g.mu.Lock()
	if _, exists := g.providers[id]; exists {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrProviderExists, id)
	}
	g.providers[id] = &registration{
		id:       id,
		adapter:  adapter,
		limiter:  rl,
		cfg:      cfg,
		throttle: &rate.Sometimes{First: 3, Interval: time.Minute},
	}
	g.mu.Unlock()

	if g.store != nil {
		if err := g.store.Save(ctx, id, cfg); err != nil {
			g.mu.Lock()
			delete(g.providers, id)
			g.mu.Unlock()
			return fmt.Errorf("persisting provider %s: %w", id, err)
		}
	}
	log.Info().Str("provider", id).Str("name", cfg.Name).Int("rpm", cfg.RateLimitRPM).Msg("custom provider registered")
	return nil
}

// RemoveCustomProvider drops the adapter and its limiter, and clears the
// stored config so the provider does not come back on restart. Removing an id
// that was never registered still clears the store and is otherwise a no-op.
func (g *Gateway) RemoveCustomProvider(ctx context.Context, id string) error {
	g.mu.Lock()
	_, existed := g.providers[id]
	delete(g.providers, id)
	g.mu.Unlock()

	if g.store != nil {
		if err := g.store.Delete(ctx, id); err != nil {
			return fmt.Errorf("deleting provider %s: %w", id, err)
		}
	}
	if existed {
		log.Info().Str("provider", id).Msg("custom provider removed")
	}
	return nil
}

// TestProviderConfig dry-runs a registration: builds the adapter and probes
// connectivity without touching the registry.
func (g *Gateway) TestProviderConfig(ctx context.Context, cfg domain.CustomProviderConfig) error {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}
	adapter, err := g.factory("config-test", cfg, ratelimit.PerMinute(cfg.RateLimitRPM))
	if err != nil {
		return err
	}
	return adapter.TestConnection(ctx)
}

// ProvidersStatus reports the primary (live probe) and every registered
// custom provider (passive freshness via Healthy).
func (g *Gateway) ProvidersStatus(ctx context.Context) domain.ProvidersStatus {
	snap := g.snapshot()

	primary := domain.StatusError
	if g.primary.HealthCheck(ctx) {
		primary = domain.StatusActive
	}
	st := domain.ProvidersStatus{
		Primary: domain.ProviderStatus{Name: g.primaryID, Status: primary, Region: g.primaryRegion},
		Custom:  make(map[string]domain.ProviderStatus, len(snap)),
	}
	for _, e := range snap {
		status := domain.StatusError
		if e.adapter.Healthy() {
			status = domain.StatusActive
		}
		st.Custom[e.id] = domain.ProviderStatus{
			Name:     e.cfg.Name,
			Status:   status,
			Endpoint: e.cfg.Endpoint,
		}
	}
	return st
}

// HealthCheck probes every provider concurrently; the gateway is healthy as
// long as any one of them is.
func (g *Gateway) HealthCheck(ctx context.Context) bool {
	snap := g.snapshot()
	up := make([]bool, len(snap)+1)

	var wg sync.WaitGroup
	wg.Add(len(snap) + 1)
	go func() {
		defer wg.Done()
		up[0] = g.primary.HealthCheck(ctx)
	}()
	for i, e := range snap {
		go func() {
			defer wg.Done()
			up[i+1] = e.adapter.HealthCheck(ctx)
		}()
	}
	wg.Wait()

	for _, ok := range up {
		if ok {
			return true
		}
	}
	return false
}

// snapshot copies the registry entries so fan-out iterates a stable list
// while add/remove mutate the live map.
func (g *Gateway) snapshot() []*registration {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*registration, 0, len(g.providers))
	for _, e := range g.providers {
		out = append(out, e)
	}
	return out
}

func (g *Gateway) provider(id string) (domain.ListingProvider, error) {
	if id == g.primaryID {
		return g.primary, nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if e, ok := g.providers[id]; ok {
		return e.adapter, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, id)
}
