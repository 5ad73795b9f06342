package domain

import "context"

// ListingProvider is the operation surface every listing source exposes.
// Implementations rate-limit and cache their own calls. Failures surface as
// *ProviderError; a missing listing is (nil, nil), not an error.
type ListingProvider interface {
	SearchListings(ctx context.Context, criteria SearchCriteria) ([]PropertyListing, error)
	GetListing(ctx context.Context, id string) (*PropertyListing, error)
	MarketStats(ctx context.Context, region, period string) (map[string]any, error)
	HealthCheck(ctx context.Context) bool
}

// CustomProvider adds the registration-time lifecycle of operator-supplied
// providers. Healthy is passive: it reports how fresh the last successful
// call was without issuing a new one.
type CustomProvider interface {
	ListingProvider
	TestConnection(ctx context.Context) error
	Healthy() bool
}

// Limiter admits one outbound request per Acquire, blocking until a slot
// frees or ctx ends. A nil Limiter means unlimited.
type Limiter interface {
	Acquire(ctx context.Context) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// ProviderStore persists registered custom-provider configs across restarts.
// The gateway saves and deletes alongside registry changes; List feeds the
// boot-time re-registration pass.
type ProviderStore interface {
	Save(ctx context.Context, id string, cfg CustomProviderConfig) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) (map[string]CustomProviderConfig, error)
}
