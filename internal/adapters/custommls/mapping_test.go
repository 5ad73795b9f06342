package custommls

import (
	"testing"
	"time"

	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/domain"
)

func TestMapping_RoundTrip(t *testing.T) {
	m := compileMapping(domain.FieldMapping{ListingID: "id", Price: "list_price.amount"})
	raw := map[string]any{"id": "X1", "list_price": map[string]any{"amount": 500000.0}}

	l := m.listing("prov-1", raw, time.Unix(1_700_000_000, 0))
	if l.ID != "X1" || l.Price != 500000 {
		t.Fatalf("unexpected mapping: %+v", l)
	}
	if l.Provider != "prov-1" {
		t.Fatalf("unexpected provider tag: %q", l.Provider)
	}
	// everything without a mapped path stays at its zero value
	if l.Address != "" || l.City != "" || l.Bedrooms != 0 || l.Status != "" {
		t.Fatalf("expected unmapped fields to stay zero: %+v", l)
	}
	if l.MLSNumber != nil || l.Coordinates != nil || l.SquareFootage != nil {
		t.Fatalf("expected unmapped optionals to stay nil: %+v", l)
	}
	if l.LastUpdated.IsZero() {
		t.Fatal("expected lastUpdated stamped at mapping time")
	}
}

func TestMapping_MalformedFieldStaysZero(t *testing.T) {
	m := compileMapping(domain.FieldMapping{
		ListingID: "id",
		Price:     "price.deep.amount", // intermediate step is a string, not an object
		Bedrooms:  "beds",
		Photos:    "photos",
	})
	raw := map[string]any{"id": "L2", "price": "oops", "beds": "three", "photos": "not-a-list"}

	l := m.listing("p", raw, time.Now())
	if l.ID != "L2" {
		t.Fatalf("expected the listing to survive malformed fields, got %+v", l)
	}
	if l.Price != 0 || l.Bedrooms != 0 {
		t.Fatalf("expected malformed fields at zero, got price=%v beds=%v", l.Price, l.Bedrooms)
	}
	if len(l.Photos) != 0 {
		t.Fatalf("expected empty photos, got %v", l.Photos)
	}
}

func TestMapping_NestedCoordinates(t *testing.T) {
	m := compileMapping(domain.FieldMapping{
		ListingID: "id",
		Latitude:  "geo.lat",
		Longitude: "geo.lng",
	})

	l := m.listing("p", map[string]any{
		"id":  "a",
		"geo": map[string]any{"lat": 43.6, "lng": -79.4},
	}, time.Now())
	if l.Coordinates == nil || l.Coordinates.Lat != 43.6 || l.Coordinates.Lng != -79.4 {
		t.Fatalf("unexpected coordinates: %+v", l.Coordinates)
	}

	// one half missing means no coordinates at all
	l = m.listing("p", map[string]any{"id": "b", "geo": map[string]any{"lat": 43.6}}, time.Now())
	if l.Coordinates != nil {
		t.Fatalf("expected nil coordinates when lng is missing, got %+v", l.Coordinates)
	}
}

func TestMapping_DaysOnMarketDerivedFromListingDate(t *testing.T) {
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	m := compileMapping(domain.FieldMapping{ListingID: "id", ListingDate: "listed"})

	l := m.listing("p", map[string]any{"id": "c", "listed": "2025-06-10"}, now)
	if l.DaysOnMarket != 10 {
		t.Fatalf("expected 10 days on market, got %d", l.DaysOnMarket)
	}

	// an explicit value wins over derivation
	m = compileMapping(domain.FieldMapping{ListingID: "id", ListingDate: "listed", DaysOnMarket: "dom"})
	l = m.listing("p", map[string]any{"id": "d", "listed": "2025-06-10", "dom": 3.0}, now)
	if l.DaysOnMarket != 3 {
		t.Fatalf("expected supplied days on market, got %d", l.DaysOnMarket)
	}
}

func TestMapping_ResultsLocation(t *testing.T) {
	configured := compileMapping(domain.FieldMapping{ListingID: "id", Results: "payload.homes"})
	if got := configured.resultsArray(map[string]any{
		"payload": map[string]any{"homes": []any{map[string]any{"id": "1"}}},
	}); len(got) != 1 {
		t.Fatalf("expected configured results path to resolve, got %v", got)
	}

	plain := compileMapping(domain.FieldMapping{ListingID: "id"})
	for _, envelope := range []string{"listings", "results", "data", "items"} {
		if got := plain.resultsArray(map[string]any{envelope: []any{map[string]any{}}}); len(got) != 1 {
			t.Fatalf("expected fallback envelope %q to resolve", envelope)
		}
	}
	if got := plain.resultsArray([]any{map[string]any{}, map[string]any{}}); len(got) != 2 {
		t.Fatalf("expected top-level array accepted, got %v", got)
	}
	if got := plain.resultsArray(map[string]any{"unrelated": 1}); got != nil {
		t.Fatalf("expected nil for an unrecognized envelope, got %v", got)
	}
}

func TestCoercers_FlexibleForms(t *testing.T) {
	if f := asFloat("1,5"); f == nil || *f != 1.5 {
		t.Fatalf("asFloat comma form: %v", f)
	}
	if asString(123.0) != "123" {
		t.Fatalf("asString number form: %q", asString(123.0))
	}
	if n := asInt("4"); n == nil || *n != 4 {
		t.Fatalf("asInt string form: %v", n)
	}
	got := asStrings([]any{"a.jpg", map[string]any{"url": "b.jpg"}, map[string]any{"src": "c.jpg"}, 7})
	if len(got) != 3 || got[1] != "b.jpg" || got[2] != "c.jpg" {
		t.Fatalf("asStrings mixed forms: %v", got)
	}
}
