package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Ethical-AI-Syndicate/agentradar-app-sub000/internal/domain"
)

// Store persists custom provider registrations so they can be re-registered
// after a restart. Credentials and field mappings travel as JSON columns.
type Store struct{ db *sql.DB }

func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Save(ctx context.Context, id string, cfg domain.CustomProviderConfig) error {
	auth, err := json.Marshal(cfg.Auth)
	if err != nil {
		return fmt.Errorf("marshal auth for %s: %w", id, err)
	}
	mapping, err := json.Marshal(cfg.Mapping)
	if err != nil {
		return fmt.Errorf("marshal mapping for %s: %w", id, err)
	}
	_, err = s.db.ExecContext(ctx, upsertProviderSQL,
		id,
		cfg.Name,
		cfg.Endpoint,
		string(auth),
		string(mapping),
		cfg.RateLimitRPM,
		cfg.TimeoutMS,
	)
	return err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, deleteProviderSQL, id)
	return err
}

func (s *Store) List(ctx context.Context) (map[string]domain.CustomProviderConfig, error) {
	rows, err := s.db.QueryContext(ctx, listProvidersSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]domain.CustomProviderConfig)
	for rows.Next() {
		var (
			id, name, endpoint string
			authJSON, mapJSON  []byte
			rpm, timeout       int
		)
		if err := rows.Scan(&id, &name, &endpoint, &authJSON, &mapJSON, &rpm, &timeout); err != nil {
			return nil, err
		}
		cfg := domain.CustomProviderConfig{
			Name:         name,
			Endpoint:     endpoint,
			RateLimitRPM: rpm,
			TimeoutMS:    timeout,
		}
		if err := json.Unmarshal(authJSON, &cfg.Auth); err != nil {
			return nil, fmt.Errorf("auth column for %s: %w", id, err)
		}
		if err := json.Unmarshal(mapJSON, &cfg.Mapping); err != nil {
			return nil, fmt.Errorf("mapping column for %s: %w", id, err)
		}
		out[id] = cfg
	}
	return out, rows.Err()
}
