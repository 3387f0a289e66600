package postgres

import (
	"context"
	"fmt"

	"github.com/rpggio/fieldlog/internal/repository"
)

// APIKeyRepository stores hashed API keys and resolves them to actor ids
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Create stores the hash of token for userID
func (r *APIKeyRepository) Create(ctx context.Context, token, userID, description string) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO api_keys (key_hash, user_id, description) VALUES ($1, $2, $3)`,
		repository.HashToken(token), userID, description)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", translateError(err))
	}
	return nil
}

// ResolveActor returns the user id owning token
func (r *APIKeyRepository) ResolveActor(ctx context.Context, token string) (string, error) {
	var userID string
	err := r.db.Pool.QueryRow(ctx,
		`UPDATE api_keys SET last_used = now() WHERE key_hash = $1 RETURNING user_id`,
		repository.HashToken(token),
	).Scan(&userID)
	if isNoRows(err) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve api key: %w", err)
	}
	return userID, nil
}
