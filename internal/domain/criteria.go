package domain

import (
	"fmt"
	"strconv"
)

// DefaultMaxResults applies when a search arrives without a page size.
const DefaultMaxResults = 50

// SearchCriteria carries the optional listing filters. Numeric filters are
// pointers so that zero is expressible; nil means "no filter".
type SearchCriteria struct {
	City         string   `json:"city,omitempty"`
	Province     string   `json:"province,omitempty"`
	MinPrice     *float64 `json:"minPrice,omitempty"`
	MaxPrice     *float64 `json:"maxPrice,omitempty"`
	Bedrooms     *int     `json:"bedrooms,omitempty"`
	Bathrooms    *int     `json:"bathrooms,omitempty"`
	PropertyType string   `json:"propertyType,omitempty"`
	MaxResults   int      `json:"maxResults,omitempty"`
	Offset       int      `json:"offset,omitempty"`
}

// Normalize returns a copy with paging defaults applied.
func (c SearchCriteria) Normalize() SearchCriteria {
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.Offset < 0 {
		c.Offset = 0
	}
	return c
}

// CacheKey folds the criteria into a stable fragment for cache keys. Field
// order is fixed so equal criteria always produce equal keys.
func (c SearchCriteria) CacheKey() string {
	c = c.Normalize()
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%d|%d",
		c.City, c.Province, c.PropertyType,
		floatKey(c.MinPrice), floatKey(c.MaxPrice),
		intKey(c.Bedrooms), intKey(c.Bathrooms),
		c.MaxResults, c.Offset)
}

func floatKey(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func intKey(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}
