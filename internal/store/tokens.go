package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shrimpsizemoose/poseshaemost/internal/models"
)

const tokenColumns = `
	t.id, t.class_room_id, c.name AS class_name, t.issued_by, t.token_hash, t.ttl_seconds,
	t.created_at, t.expires_at, t.revoked_at, t.last_used_at
`

func (s *BaseStore) CreateToken(ctx context.Context, token *models.SubstituteToken) error {
	query := s.Converter(`
		INSERT INTO substitute_tokens (class_room_id, issued_by, token_hash, ttl_seconds, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := s.DB.QueryRowxContext(ctx, query,
		token.ClassRoomID,
		token.IssuedBy,
		token.TokenHash,
		token.TTLSeconds,
		token.CreatedAt,
		token.ExpiresAt,
	).Scan(&token.ID)
	if err != nil {
		return s.uniqueErr(err, "failed to create token for class %d", token.ClassRoomID)
	}
	return nil
}

func (s *BaseStore) GetToken(ctx context.Context, id int64) (*models.SubstituteToken, error) {
	return s.getToken(ctx, "t.id = ?", id)
}

func (s *BaseStore) GetTokenByHash(ctx context.Context, hash string) (*models.SubstituteToken, error) {
	return s.getToken(ctx, "t.token_hash = ?", hash)
}

func (s *BaseStore) getToken(ctx context.Context, cond string, arg interface{}) (*models.SubstituteToken, error) {
	var token models.SubstituteToken
	query := s.Converter(`
		SELECT ` + tokenColumns + `
		FROM substitute_tokens t
		JOIN class_rooms c ON c.id = t.class_room_id
		WHERE ` + cond)
	err := s.DB.GetContext(ctx, &token, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return &token, nil
}

// UpdateToken stores hash, issuer, lifetime and revocation of an existing token.
func (s *BaseStore) UpdateToken(ctx context.Context, token *models.SubstituteToken) error {
	query := s.Converter(`
		UPDATE substitute_tokens
		SET issued_by = ?,
			token_hash = ?,
			ttl_seconds = ?,
			created_at = ?,
			expires_at = ?,
			revoked_at = ?
		WHERE id = ?
	`)
	res, err := s.DB.ExecContext(ctx, query,
		token.IssuedBy,
		token.TokenHash,
		token.TTLSeconds,
		token.CreatedAt,
		token.ExpiresAt,
		token.RevokedAt,
		token.ID,
	)
	if err != nil {
		return s.uniqueErr(err, "failed to update token %d", token.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("token %d: %w", token.ID, ErrNotFound)
	}
	return nil
}

func (s *BaseStore) TouchToken(ctx context.Context, id int64, at time.Time) error {
	query := s.Converter(`UPDATE substitute_tokens SET last_used_at = ? WHERE id = ?`)
	if _, err := s.DB.ExecContext(ctx, query, at, id); err != nil {
		return fmt.Errorf("failed to touch token %d: %w", id, err)
	}
	return nil
}

func (s *BaseStore) DeleteToken(ctx context.Context, id int64) error {
	query := s.Converter(`DELETE FROM substitute_tokens WHERE id = ?`)
	res, err := s.DB.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete token %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("token %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListTokens returns the newest tokens first.
func (s *BaseStore) ListTokens(ctx context.Context, limit int) ([]models.SubstituteToken, error) {
	if limit <= 0 {
		limit = 100
	}
	query := s.Converter(`
		SELECT ` + tokenColumns + `
		FROM substitute_tokens t
		JOIN class_rooms c ON c.id = t.class_room_id
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT ?
	`)
	var tokens []models.SubstituteToken
	if err := s.DB.SelectContext(ctx, &tokens, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	return tokens, nil
}
