package domain

import "time"

// PropertyListing is the canonical, provider-agnostic listing shape every
// adapter maps into. Optional fields stay nil when the source payload has no
// usable value; a single unmappable field never fails the whole listing.
type PropertyListing struct {
	ID        string  `json:"id"`
	Provider  string  `json:"provider"`
	MLSNumber *string `json:"mlsNumber,omitempty"`

	Address     string       `json:"address"`
	City        string       `json:"city"`
	Province    string       `json:"province"`
	PostalCode  *string      `json:"postalCode,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`

	Price         float64 `json:"price"`
	PropertyType  string  `json:"propertyType"`
	Bedrooms      int     `json:"bedrooms"`
	Bathrooms     float64 `json:"bathrooms"`
	SquareFootage *int    `json:"squareFootage,omitempty"`

	ListingDate  time.Time `json:"listingDate"`
	DaysOnMarket int       `json:"daysOnMarket"`
	Status       string    `json:"status"`
	LastUpdated  time.Time `json:"lastUpdated"`

	Photos []string `json:"photos"`
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DaysOnMarketSince derives days-on-market from the listing date when a
// provider doesn't supply it. Zero or future dates count as zero days.
func DaysOnMarketSince(listed, now time.Time) int {
	if listed.IsZero() || now.Before(listed) {
		return 0
	}
	return int(now.Sub(listed).Hours() / 24)
}

// AggregateResult is the merged fan-out outcome: the primary provider's
// listings plus one entry per registered custom provider, keyed by provider
// id. A provider whose branch failed contributes an empty slice for its key.
type AggregateResult struct {
	Primary []PropertyListing            `json:"primary"`
	Custom  map[string][]PropertyListing `json:"custom"`
	Total   int                          `json:"total"`
}

// Provider status values reported by the gateway.
const (
	StatusActive = "active"
	StatusError  = "error"
)

type ProviderStatus struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Region   string `json:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

type ProvidersStatus struct {
	Primary ProviderStatus            `json:"primary"`
	Custom  map[string]ProviderStatus `json:"custom"`
}
