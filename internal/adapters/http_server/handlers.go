package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/app"
	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/domain"
)

type Handlers struct {
	G        *app.Gateway
	AdminKey string
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/listings/search", h.searchListings)
	s.mux.Get("/v1/listings/{listingID}", h.getListing)
	s.mux.Get("/v1/market/stats", h.marketStats)
	s.mux.Get("/v1/providers", h.providersStatus)
	s.mux.Get("/v1/health", h.health)

	s.mux.Group(func(r chi.Router) {
		r.Use(AdminOnly(h.AdminKey))
		r.Post("/v1/providers", h.addProvider)
		r.Post("/v1/providers/test", h.testProvider)
		r.Delete("/v1/providers/{providerID}", h.removeProvider)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// parseCriteria reads the search filters off the query string. A malformed
// numeric is a 400, never a silently dropped filter.
func parseCriteria(q url.Values) (domain.SearchCriteria, error) {
	var (
		c   domain.SearchCriteria
		err error
	)
	c.City = q.Get("city")
	c.Province = q.Get("province")
	c.PropertyType = q.Get("propertyType")
	if c.MinPrice, err = floatParam(q, "minPrice"); err != nil {
		return c, err
	}
	if c.MaxPrice, err = floatParam(q, "maxPrice"); err != nil {
		return c, err
	}
	if c.Bedrooms, err = intParam(q, "bedrooms"); err != nil {
		return c, err
	}
	if c.Bathrooms, err = intParam(q, "bathrooms"); err != nil {
		return c, err
	}
	if v := q.Get("maxResults"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 200 {
			return c, fmt.Errorf("maxResults must be an integer between 1 and 200")
		}
		c.MaxResults = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c, fmt.Errorf("offset must be a non-negative integer")
		}
		c.Offset = n
	}
	return c, nil
}

func floatParam(q url.Values, name string) (*float64, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", name)
	}
	return &f, nil
}

func intParam(q url.Values, name string) (*int, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", name)
	}
	return &n, nil
}

type searchOneResponse struct {
	Provider string                   `json:"provider"`
	Listings []domain.PropertyListing `json:"listings"`
	Total    int                      `json:"total"`
}

func (h *Handlers) searchListings(w http.ResponseWriter, r *http.Request) {
	criteria, err := parseCriteria(r.URL.Query())
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid criteria", err.Error())
		return
	}

	if pid := r.URL.Query().Get("provider"); pid != "" {
		listings, err := h.G.SearchOne(r.Context(), pid, criteria)
		if err != nil {
			if errors.Is(err, domain.ErrUnknownProvider) {
				writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
				return
			}
			// a single-provider search has no fan-out isolation to degrade into
			writeProblem(w, http.StatusBadGateway, "Provider Error", err.Error())
			return
		}
		if listings == nil {
			listings = []domain.PropertyListing{}
		}
		writeJSON(w, http.StatusOK, searchOneResponse{Provider: pid, Listings: listings, Total: len(listings)})
		return
	}

	writeJSON(w, http.StatusOK, h.G.SearchAll(r.Context(), criteria))
}

func (h *Handlers) getListing(w http.ResponseWriter, r *http.Request) {
	listing, err := h.G.GetListing(r.Context(), r.URL.Query().Get("provider"), chi.URLParam(r, "listingID"))
	if err != nil {
		if errors.Is(err, domain.ErrUnknownProvider) {
			writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		writeProblem(w, http.StatusBadGateway, "Provider Error", err.Error())
		return
	}
	if listing == nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "listing not found")
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (h *Handlers) marketStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.G.MarketStats(r.Context(), r.URL.Query().Get("region"), r.URL.Query().Get("period"))
	if err != nil {
		writeProblem(w, http.StatusBadGateway, "Provider Error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handlers) providersStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.G.ProvidersStatus(r.Context()))
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	if h.G.HealthCheck(r.Context()) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
}

type addProviderRequest struct {
	ID string `json:"id,omitempty"`
	domain.CustomProviderConfig
}

func (h *Handlers) addProvider(w http.ResponseWriter, r *http.Request) {
	var req addProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "request body must be a provider config document")
		return
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}
	if err := h.G.AddCustomProvider(r.Context(), id, req.CustomProviderConfig); err != nil {
		if errors.Is(err, domain.ErrProviderExists) {
			writeProblem(w, http.StatusConflict, "Conflict", err.Error())
			return
		}
		writeProblem(w, http.StatusBadRequest, "Registration failed", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "status": "registered"})
}

func (h *Handlers) testProvider(w http.ResponseWriter, r *http.Request) {
	var cfg domain.CustomProviderConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "request body must be a provider config document")
		return
	}
	if err := h.G.TestProviderConfig(r.Context(), cfg); err != nil {
		writeProblem(w, http.StatusBadRequest, "Connection test failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) removeProvider(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "providerID")
	if err := h.G.RemoveCustomProvider(r.Context(), id); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Remove failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "removed"})
}
