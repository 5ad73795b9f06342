// internal/adapters/custommls/mapping.go
package custommls

import (
	"strconv"
	"strings"
	"time"

	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/domain"
)

// fieldPath is a dotted path precompiled into segments at registration, so
// per-listing extraction never re-parses the path string.
type fieldPath []string

func compilePath(s string) fieldPath {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Split(s, ".")
}

// lookup walks the segments through nested maps. Any missing or mistyped
// intermediate step yields nil, never a panic.
func (p fieldPath) lookup(m map[string]any) any {
	if len(p) == 0 {
		return nil
	}
	cur := any(m)
	for _, part := range p {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// mapping is a FieldMapping compiled once per provider.
type mapping struct {
	results       fieldPath
	listingID     fieldPath
	mlsNumber     fieldPath
	address       fieldPath
	city          fieldPath
	province      fieldPath
	postalCode    fieldPath
	latitude      fieldPath
	longitude     fieldPath
	price         fieldPath
	propertyType  fieldPath
	bedrooms      fieldPath
	bathrooms     fieldPath
	squareFootage fieldPath
	listingDate   fieldPath
	daysOnMarket  fieldPath
	status        fieldPath
	photos        fieldPath
}

func compileMapping(fm domain.FieldMapping) mapping {
	return mapping{
		results:       compilePath(fm.Results),
		listingID:     compilePath(fm.ListingID),
		mlsNumber:     compilePath(fm.MLSNumber),
		address:       compilePath(fm.Address),
		city:          compilePath(fm.City),
		province:      compilePath(fm.Province),
		postalCode:    compilePath(fm.PostalCode),
		latitude:      compilePath(fm.Latitude),
		longitude:     compilePath(fm.Longitude),
		price:         compilePath(fm.Price),
		propertyType:  compilePath(fm.PropertyType),
		bedrooms:      compilePath(fm.Bedrooms),
		bathrooms:     compilePath(fm.Bathrooms),
		squareFootage: compilePath(fm.SquareFootage),
		listingDate:   compilePath(fm.ListingDate),
		daysOnMarket:  compilePath(fm.DaysOnMarket),
		status:        compilePath(fm.Status),
		photos:        compilePath(fm.Photos),
	}
}

// Envelope keys tried when no results path is configured.
var resultsFallbacks = []fieldPath{{"listings"}, {"results"}, {"data"}, {"items"}}

// resultsArray locates the listing array inside a search response: the
// configured path when set, otherwise known envelope keys, and a top-level
// array is accepted as-is.
func (m mapping) resultsArray(doc any) []any {
	if arr, ok := doc.([]any); ok {
		return arr
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	if m.results != nil {
		arr, _ := m.results.lookup(obj).([]any)
		return arr
	}
	for _, p := range resultsFallbacks {
		if arr, ok := p.lookup(obj).([]any); ok {
			return arr
		}
	}
	return nil
}

// listing projects one raw object into the canonical shape. A field whose
// path is unset, missing or malformed stays at its zero value; mapping a
// listing never fails.
func (m mapping) listing(provider string, raw map[string]any, now time.Time) domain.PropertyListing {
	l := domain.PropertyListing{
		ID:           asString(m.listingID.lookup(raw)),
		Provider:     provider,
		Address:      asString(m.address.lookup(raw)),
		City:         asString(m.city.lookup(raw)),
		Province:     asString(m.province.lookup(raw)),
		PropertyType: asString(m.propertyType.lookup(raw)),
		Status:       asString(m.status.lookup(raw)),
		LastUpdated:  now,
		Photos:       []string{},
	}
	if f := asFloat(m.price.lookup(raw)); f != nil {
		l.Price = *f
	}
	if n := asInt(m.bedrooms.lookup(raw)); n != nil {
		l.Bedrooms = *n
	}
	if f := asFloat(m.bathrooms.lookup(raw)); f != nil {
		l.Bathrooms = *f
	}
	if s := asString(m.mlsNumber.lookup(raw)); s != "" {
		l.MLSNumber = &s
	}
	if s := asString(m.postalCode.lookup(raw)); s != "" {
		l.PostalCode = &s
	}
	if n := asInt(m.squareFootage.lookup(raw)); n != nil {
		l.SquareFootage = n
	}
	lat, lng := asFloat(m.latitude.lookup(raw)), asFloat(m.longitude.lookup(raw))
	if lat != nil && lng != nil {
		l.Coordinates = &domain.Coordinates{Lat: *lat, Lng: *lng}
	}
	l.ListingDate = parseDate(asString(m.listingDate.lookup(raw)))
	if n := asInt(m.daysOnMarket.lookup(raw)); n != nil {
		l.DaysOnMarket = *n
	} else {
		l.DaysOnMarket = domain.DaysOnMarketSince(l.ListingDate, now)
	}
	if ph := asStrings(m.photos.lookup(raw)); ph != nil {
		l.Photos = ph
	}
	return l
}

/********** flexible coercers **********/

// asString accepts strings and JSON numbers (ids are numeric more often
// than providers admit).
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

// asFloat: number from float64/int/string forms ("8,0" included).
func asFloat(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case int:
		f := float64(t)
		return &f
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", "."))
		if s == "" {
			return nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return &f
		}
	}
	return nil
}

func asInt(v any) *int {
	if f := asFloat(v); f != nil {
		n := int(*f)
		return &n
	}
	return nil
}

// asStrings: accept []any holding either strings or {url/src} objects.
func asStrings(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, it := range raw {
		switch t := it.(type) {
		case string:
			if t != "" {
				out = append(out, t)
			}
		case map[string]any:
			if u, ok := t["url"].(string); ok && u != "" {
				out = append(out, u)
				continue
			}
			if u, ok := t["src"].(string); ok && u != "" {
				out = append(out, u)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
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
