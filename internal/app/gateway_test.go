package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/app"
	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/domain"
)

// ---- fakes ----

type fakePrimary struct {
	listings []domain.PropertyListing
	err      error
	healthy  bool
	searches int32

	enter chan struct{} // receives one value when a search starts
	block chan struct{} // search waits on this when set
}

func (f *fakePrimary) SearchListings(ctx context.Context, c domain.SearchCriteria) ([]domain.PropertyListing, error) {
	atomic.AddInt32(&f.searches, 1)
	if f.enter != nil {
		f.enter <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.listings, nil
}

func (f *fakePrimary) GetListing(ctx context.Context, id string) (*domain.PropertyListing, error) {
	for i := range f.listings {
		if f.listings[i].ID == id {
			return &f.listings[i], nil
		}
	}
	return nil, nil
}

func (f *fakePrimary) MarketStats(ctx context.Context, region, period string) (map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	return map[string]any{"region": region, "period": period}, nil
}

func (f *fakePrimary) HealthCheck(ctx context.Context) bool { return f.healthy }

type fakeCustom struct {
	fakePrimary
	testErr error
	fresh   bool
}

func (f *fakeCustom) TestConnection(ctx context.Context) error { return f.testErr }
func (f *fakeCustom) Healthy() bool                            { return f.fresh }

func factoryFor(adapters map[string]*fakeCustom) app.AdapterFactory {
	return func(id string, cfg domain.CustomProviderConfig, rl domain.Limiter) (domain.CustomProvider, error) {
		a, ok := adapters[id]
		if !ok {
			return nil, fmt.Errorf("no adapter for %s", id)
		}
		return a, nil
	}
}

func validConfig(name string) domain.CustomProviderConfig {
	return domain.CustomProviderConfig{
		Name:     name,
		Endpoint: "http://" + name + ".example.com/listings",
		Auth:     domain.AuthConfig{Type: domain.AuthBearer, Token: "t"},
		Mapping:  domain.FieldMapping{ListingID: "id"},
	}
}

type fakeStore struct {
	saved   map[string]domain.CustomProviderConfig
	saveErr error
	delErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[string]domain.CustomProviderConfig)}
}

func (s *fakeStore) Save(ctx context.Context, id string, cfg domain.CustomProviderConfig) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved[id] = cfg
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, id string) error {
	if s.delErr != nil {
		return s.delErr
	}
	delete(s.saved, id)
	return nil
}

func (s *fakeStore) List(ctx context.Context) (map[string]domain.CustomProviderConfig, error) {
	return s.saved, nil
}

func customCount(t *testing.T, g *app.Gateway) int {
	t.Helper()
	return len(g.ProvidersStatus(context.Background()).Custom)
}

// ---- tests ----

func TestSearchAll_IsolatesFailingProvider(t *testing.T) {
	primary := &fakePrimary{listings: []domain.PropertyListing{{ID: "p1"}, {ID: "p2"}}}
	good := &fakeCustom{fakePrimary: fakePrimary{listings: []domain.PropertyListing{{ID: "c1"}}}}
	bad := &fakeCustom{fakePrimary: fakePrimary{err: errors.New("connect refused")}}
	g := app.NewGateway("primary", "GTA", primary, factoryFor(map[string]*fakeCustom{"good": good, "bad": bad}), nil)

	ctx := context.Background()
	if err := g.AddCustomProvider(ctx, "good", validConfig("good")); err != nil {
		t.Fatalf("add good: %v", err)
	}
	if err := g.AddCustomProvider(ctx, "bad", validConfig("bad")); err != nil {
		t.Fatalf("add bad: %v", err)
	}

	res := g.SearchAll(ctx, domain.SearchCriteria{})
	if len(res.Primary) != 2 {
		t.Fatalf("expected primary listings, got %+v", res.Primary)
	}
	if got := res.Custom["good"]; len(got) != 1 {
		t.Fatalf("expected the healthy custom branch, got %+v", got)
	}
	if got, ok := res.Custom["bad"]; !ok || got == nil || len(got) != 0 {
		t.Fatalf("expected an empty non-nil slice for the failing branch, got %+v (present=%v)", got, ok)
	}
	if res.Total != 3 {
		t.Fatalf("expected total 3, got %d", res.Total)
	}
}

func TestSearchAll_TotalOutageStillReturns(t *testing.T) {
	primary := &fakePrimary{err: errors.New("down")}
	bad := &fakeCustom{fakePrimary: fakePrimary{err: errors.New("down too")}}
	g := app.NewGateway("primary", "GTA", primary, factoryFor(map[string]*fakeCustom{"bad": bad}), nil)

	ctx := context.Background()
	if err := g.AddCustomProvider(ctx, "bad", validConfig("bad")); err != nil {
		t.Fatalf("add: %v", err)
	}

	res := g.SearchAll(ctx, domain.SearchCriteria{})
	if res.Primary == nil || len(res.Primary) != 0 {
		t.Fatalf("expected empty primary, got %+v", res.Primary)
	}
	if got := res.Custom["bad"]; got == nil || len(got) != 0 {
		t.Fatalf("expected empty custom branch, got %+v", got)
	}
	if res.Total != 0 {
		t.Fatalf("expected total 0, got %d", res.Total)
	}
}

func TestSearchAll_SnapshotSurvivesConcurrentRemove(t *testing.T) {
	primary := &fakePrimary{}
	slow := &fakeCustom{fakePrimary: fakePrimary{
		listings: []domain.PropertyListing{{ID: "s1"}},
		enter:    make(chan struct{}, 1),
		block:    make(chan struct{}),
	}}
	g := app.NewGateway("primary", "GTA", primary, factoryFor(map[string]*fakeCustom{"slow": slow}), nil)

	ctx := context.Background()
	if err := g.AddCustomProvider(ctx, "slow", validConfig("slow")); err != nil {
		t.Fatalf("add: %v", err)
	}

	done := make(chan domain.AggregateResult, 1)
	go func() { done <- g.SearchAll(ctx, domain.SearchCriteria{}) }()

	<-slow.enter // the fan-out branch is in flight
	g.RemoveCustomProvider(ctx, "slow")
	close(slow.block)

	res := <-done
	if got, ok := res.Custom["slow"]; !ok || len(got) != 1 {
		t.Fatalf("expected the snapshotted branch to settle, got %+v (present=%v)", got, ok)
	}
	if customCount(t, g) != 0 {
		t.Fatal("expected the registry to be empty after removal")
	}
}

func TestAddCustomProvider_FailedTestLeavesRegistryUnchanged(t *testing.T) {
	primary := &fakePrimary{healthy: true}
	bad := &fakeCustom{testErr: errors.New("provider bad: connection test failed")}
	g := app.NewGateway("primary", "GTA", primary, factoryFor(map[string]*fakeCustom{"bad": bad}), nil)

	ctx := context.Background()
	before := customCount(t, g)
	err := g.AddCustomProvider(ctx, "bad", validConfig("bad"))
	if err == nil {
		t.Fatal("expected the add to fail")
	}
	if customCount(t, g) != before {
		t.Fatal("expected registry size unchanged after a failed add")
	}

	// factory failure behaves the same
	if err := g.AddCustomProvider(ctx, "unknown", validConfig("unknown")); err == nil {
		t.Fatal("expected a factory error to reject the add")
	}
	if customCount(t, g) != before {
		t.Fatal("expected registry size unchanged after a factory failure")
	}
}

func TestAddCustomProvider_DuplicateID(t *testing.T) {
	primary := &fakePrimary{healthy: true}
	a := &fakeCustom{}
	g := app.NewGateway("primary", "GTA", primary, factoryFor(map[string]*fakeCustom{"a": a}), nil)

	ctx := context.Background()
	if err := g.AddCustomProvider(ctx, "a", validConfig("a")); err != nil {
		t.Fatalf("first add: %v", err)
	}
	err := g.AddCustomProvider(ctx, "a", validConfig("a"))
	if !errors.Is(err, domain.ErrProviderExists) {
		t.Fatalf("expected ErrProviderExists, got %v", err)
	}
	if customCount(t, g) != 1 {
		t.Fatal("expected a single registration")
	}
}

func TestRemoveCustomProvider_Idempotent(t *testing.T) {
	primary := &fakePrimary{healthy: true}
	a := &fakeCustom{}
	g := app.NewGateway("primary", "GTA", primary, factoryFor(map[string]*fakeCustom{"a": a}), nil)

	ctx := context.Background()
	if err := g.RemoveCustomProvider(ctx, "ghost"); err != nil {
		t.Fatalf("removing an unknown id: %v", err)
	}

	if err := g.AddCustomProvider(ctx, "a", validConfig("a")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := g.RemoveCustomProvider(ctx, "a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if customCount(t, g) != 0 {
		t.Fatal("expected empty registry after removal")
	}
	if err := g.RemoveCustomProvider(ctx, "a"); err != nil { // second removal is a no-op
		t.Fatalf("repeated remove: %v", err)
	}
	if customCount(t, g) != 0 {
		t.Fatal("expected registry unchanged after repeated removal")
	}
}

func TestHealthCheck_TrueWhenAnyProviderUp(t *testing.T) {
	primary := &fakePrimary{healthy: false}
	up := &fakeCustom{fakePrimary: fakePrimary{healthy: true}}
	g := app.NewGateway("primary", "GTA", primary, factoryFor(map[string]*fakeCustom{"up": up}), nil)

	ctx := context.Background()
	if err := g.AddCustomProvider(ctx, "up", validConfig("up")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !g.HealthCheck(ctx) {
		t.Fatal("expected healthy while one provider is up")
	}

	up.healthy = false
	if g.HealthCheck(ctx) {
		t.Fatal("expected unhealthy when every provider is down")
	}
}

func TestSearchOne(t *testing.T) {
	primary := &fakePrimary{listings: []domain.PropertyListing{{ID: "p1"}}}
	a := &fakeCustom{fakePrimary: fakePrimary{listings: []domain.PropertyListing{{ID: "a1"}}}}
	g := app.NewGateway("primary", "GTA", primary, factoryFor(map[string]*fakeCustom{"a": a}), nil)

	ctx := context.Background()
	if err := g.AddCustomProvider(ctx, "a", validConfig("a")); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := g.SearchOne(ctx, "primary", domain.SearchCriteria{})
	if err != nil || len(got) != 1 || got[0].ID != "p1" {
		t.Fatalf("primary selector: %+v, %v", got, err)
	}
	got, err = g.SearchOne(ctx, "a", domain.SearchCriteria{})
	if err != nil || len(got) != 1 || got[0].ID != "a1" {
		t.Fatalf("custom selector: %+v, %v", got, err)
	}
	if _, err := g.SearchOne(ctx, "ghost", domain.SearchCriteria{}); !errors.Is(err, domain.ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestGetListing_DefaultsToPrimary(t *testing.T) {
	primary := &fakePrimary{listings: []domain.PropertyListing{{ID: "p1"}}}
	g := app.NewGateway("primary", "GTA", primary, factoryFor(nil), nil)

	ctx := context.Background()
	got, err := g.GetListing(ctx, "", "p1")
	if err != nil || got == nil || got.ID != "p1" {
		t.Fatalf("expected the primary listing, got %+v, %v", got, err)
	}
	got, err = g.GetListing(ctx, "", "nonexistent-123")
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil) for an unknown id, got %+v, %v", got, err)
	}
}

func TestProvidersStatus(t *testing.T) {
	primary := &fakePrimary{healthy: true}
	fresh := &fakeCustom{fresh: true}
	stale := &fakeCustom{fresh: false}
	g := app.NewGateway("primary", "GTA", primary, factoryFor(map[string]*fakeCustom{"fresh": fresh, "stale": stale}), nil)

	ctx := context.Background()
	for _, id := range []string{"fresh", "stale"} {
		if err := g.AddCustomProvider(ctx, id, validConfig(id)); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}

	st := g.ProvidersStatus(ctx)
	if st.Primary.Status != domain.StatusActive || st.Primary.Region != "GTA" {
		t.Fatalf("unexpected primary status: %+v", st.Primary)
	}
	if st.Custom["fresh"].Status != domain.StatusActive {
		t.Fatalf("expected fresh provider active, got %+v", st.Custom["fresh"])
	}
	if st.Custom["stale"].Status != domain.StatusError {
		t.Fatalf("expected stale provider in error, got %+v", st.Custom["stale"])
	}
	if st.Custom["fresh"].Endpoint == "" || st.Custom["fresh"].Name == "" {
		t.Fatalf("expected endpoint and name in the status, got %+v", st.Custom["fresh"])
	}
}

func TestTestProviderConfig_DoesNotRegister(t *testing.T) {
	primary := &fakePrimary{healthy: true}
	probe := &fakeCustom{}
	g := app.NewGateway("primary", "GTA", primary, factoryFor(map[string]*fakeCustom{"config-test": probe}), nil)

	if err := g.TestProviderConfig(context.Background(), validConfig("probe")); err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if customCount(t, g) != 0 {
		t.Fatal("expected the dry run to leave the registry empty")
	}
}

func TestAddCustomProvider_PersistsConfig(t *testing.T) {
	primary := &fakePrimary{healthy: true}
	a := &fakeCustom{}
	store := newFakeStore()
	g := app.NewGateway("primary", "GTA", primary, factoryFor(map[string]*fakeCustom{"a": a}), store)

	ctx := context.Background()
	if err := g.AddCustomProvider(ctx, "a", validConfig("a")); err != nil {
		t.Fatalf("add: %v", err)
	}
	saved, ok := store.saved["a"]
	if !ok {
		t.Fatal("expected the config in the store after a successful add")
	}
	if saved.RateLimitRPM != domain.DefaultCustomRPM {
		t.Fatalf("expected the normalized config to be stored, got rpm %d", saved.RateLimitRPM)
	}

	if err := g.RemoveCustomProvider(ctx, "a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := store.saved["a"]; ok {
		t.Fatal("expected the config cleared from the store after removal")
	}
}

func TestAddCustomProvider_SaveFailureRollsBack(t *testing.T) {
	primary := &fakePrimary{healthy: true}
	a := &fakeCustom{}
	store := newFakeStore()
	store.saveErr = errors.New("connection lost")
	g := app.NewGateway("primary", "GTA", primary, factoryFor(map[string]*fakeCustom{"a": a}), store)

	err := g.AddCustomProvider(context.Background(), "a", validConfig("a"))
	if err == nil {
		t.Fatal("expected the add to surface the store failure")
	}
	if customCount(t, g) != 0 {
		t.Fatal("expected the registration rolled back when persisting fails")
	}
}
