package domain

import (
	"fmt"
	"strings"
)

// Auth schemes a custom provider can register with. The scheme tag is
// validated once at registration; request paths never see an unknown scheme.
const (
	AuthBearer = "bearer"
	AuthAPIKey = "api_key"
	AuthBasic  = "basic"
	AuthOAuth  = "oauth"
)

// AuthConfig is the tagged wire shape for provider credentials. Type selects
// the scheme; only that scheme's fields are read.
type AuthConfig struct {
	Type string `json:"type"`

	// bearer
	Token string `json:"token,omitempty"`

	// api_key
	Key    string `json:"key,omitempty"`
	Header string `json:"header,omitempty"`

	// basic
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	// oauth client credentials
	ClientID     string `json:"clientId,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`
	TokenURL     string `json:"tokenUrl,omitempty"`
}

// FieldMapping projects a provider's raw JSON into PropertyListing fields.
// Each value is a dotted path into the raw listing object, e.g.
// "list_price.amount". An empty path leaves the target at its zero value;
// ListingID is the only required path. Results locates the listing array
// inside the search response envelope; when empty the adapter falls back to
// common envelope keys and to a top-level array.
type FieldMapping struct {
	Results       string `json:"results,omitempty"`
	ListingID     string `json:"listingId"`
	MLSNumber     string `json:"mlsNumber,omitempty"`
	Address       string `json:"address,omitempty"`
	City          string `json:"city,omitempty"`
	Province      string `json:"province,omitempty"`
	PostalCode    string `json:"postalCode,omitempty"`
	Latitude      string `json:"latitude,omitempty"`
	Longitude     string `json:"longitude,omitempty"`
	Price         string `json:"price,omitempty"`
	PropertyType  string `json:"propertyType,omitempty"`
	Bedrooms      string `json:"bedrooms,omitempty"`
	Bathrooms     string `json:"bathrooms,omitempty"`
	SquareFootage string `json:"squareFootage,omitempty"`
	ListingDate   string `json:"listingDate,omitempty"`
	DaysOnMarket  string `json:"daysOnMarket,omitempty"`
	Status        string `json:"status,omitempty"`
	Photos        string `json:"photos,omitempty"`
}

// Defaults applied to custom provider registrations.
const (
	DefaultCustomRPM       = 60
	DefaultCustomTimeoutMS = 30000
)

// CustomProviderConfig registers a bring-your-own listing provider.
type CustomProviderConfig struct {
	Name         string       `json:"name"`
	Endpoint     string       `json:"endpoint"`
	Auth         AuthConfig   `json:"authentication"`
	Mapping      FieldMapping `json:"mapping"`
	RateLimitRPM int          `json:"rateLimitRPM,omitempty"`
	TimeoutMS    int          `json:"timeout,omitempty"`
}

// Normalize returns a copy with rate-limit and timeout defaults applied.
func (c CustomProviderConfig) Normalize() CustomProviderConfig {
	if c.RateLimitRPM <= 0 {
		c.RateLimitRPM = DefaultCustomRPM
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = DefaultCustomTimeoutMS
	}
	return c
}

// Validate reports registration-blocking problems. Auth scheme and credential
// checks live in the adapter constructor, which is the one place that knows
// what each scheme requires.
func (c CustomProviderConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("provider name is required")
	}
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("provider endpoint is required")
	}
	if strings.TrimSpace(c.Mapping.ListingID) == "" {
		return fmt.Errorf("mapping.listingId is required")
	}
	return nil
}
