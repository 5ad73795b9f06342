// internal/adapters/custommls/auth.go
package custommls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/domain"
)

// authorizer is the auth scheme sum type. One variant is chosen at
// construction; request paths only ever call apply.
type authorizer interface {
	apply(ctx context.Context, req *http.Request) error
}

type bearerAuth struct{ token string }

func (a bearerAuth) apply(_ context.Context, req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+a.token)
	return nil
}

type apiKeyAuth struct{ header, key string }

func (a apiKeyAuth) apply(_ context.Context, req *http.Request) error {
	req.Header.Set(a.header, a.key)
	return nil
}

type basicAuth struct{ user, pass string }

func (a basicAuth) apply(_ context.Context, req *http.Request) error {
	req.SetBasicAuth(a.user, a.pass)
	return nil
}

// oauthAuth holds a client-credentials token, refreshed on demand. The token
// is shared across requests, so the refresh path is mutex-guarded.
type oauthAuth struct {
	hc           *http.Client
	tokenURL     string
	clientID     string
	clientSecret string

	mu     sync.Mutex
	token  string
	expiry time.Time
	now    func() time.Time
}

func (a *oauthAuth) apply(ctx context.Context, req *http.Request) error {
	tok, err := a.bearer(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}

func (a *oauthAuth) bearer(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != "" && a.now().Before(a.expiry) {
		return a.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {a.clientID},
		"client_secret": {a.clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("token endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("token decode: %w", err)
	}
	if tr.AccessToken == "" {
		return "", errors.New("token endpoint returned no access_token")
	}

	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	a.token = tr.AccessToken
	// refresh slightly early so an almost-expired token is never sent
	a.expiry = a.now().Add(ttl - 30*time.Second)
	return a.token, nil
}

// newAuthorizer builds the variant named by cfg.Type. An unknown tag or a
// variant missing its required fields fails here, at registration time.
func newAuthorizer(cfg domain.AuthConfig, hc *http.Client) (authorizer, error) {
	switch cfg.Type {
	case domain.AuthBearer:
		if cfg.Token == "" {
			return nil, errors.New("bearer auth requires a token")
		}
		return bearerAuth{token: cfg.Token}, nil

	case domain.AuthAPIKey:
		if cfg.Key == "" {
			return nil, errors.New("api_key auth requires a key")
		}
		h := cfg.Header
		if h == "" {
			h = "X-API-Key"
		}
		return apiKeyAuth{header: h, key: cfg.Key}, nil

	case domain.AuthBasic:
		if cfg.Username == "" {
			return nil, errors.New("basic auth requires a username")
		}
		return basicAuth{user: cfg.Username, pass: cfg.Password}, nil

	case domain.AuthOAuth:
		if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.TokenURL == "" {
			return nil, errors.New("oauth auth requires clientId, clientSecret and tokenUrl")
		}
		return &oauthAuth{
			hc:           hc,
			tokenURL:     cfg.TokenURL,
			clientID:     cfg.ClientID,
			clientSecret: cfg.ClientSecret,
			now:          time.Now,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported auth type %q", cfg.Type)
	}
}
