package app

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/poseshaemost/internal/models"
	"github.com/shrimpsizemoose/poseshaemost/internal/store"
)

const (
	MinTokenTTL = 30
	MaxTokenTTL = 14 * 24 * 60 * 60

	tokenBytes = 32
)

var (
	ErrTokenNotFound  = errors.New("token not found")
	ErrTokenInactive  = errors.New("token is revoked or expired")
	ErrNoTeacher      = errors.New("class has no active homeroom teacher")
	ErrAlreadyRevoked = errors.New("token is already revoked")
	ErrClassNotFound  = errors.New("class not found")
)

// TTLError reports a token lifetime outside [MinTokenTTL, MaxTokenTTL].
type TTLError struct {
	TTL int
}

func (e *TTLError) Error() string {
	return fmt.Sprintf("token lifetime must be between %d and %d seconds, got %d", MinTokenTTL, MaxTokenTTL, e.TTL)
}

type TokenBackend interface {
	store.TokenStore
	GetClassRoom(ctx context.Context, id int64) (*models.ClassRoom, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// TokenManager issues and checks substitute tokens. Raw secrets leave the
// manager exactly once, on Issue and Rotate.
type TokenManager struct {
	store TokenBackend
	now   func() time.Time
}

func NewTokenManager(s TokenBackend) *TokenManager {
	return &TokenManager{store: s, now: time.Now}
}

func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	tm.now = now
	return tm
}

func TTLFromParts(seconds, minutes, hours, days, weeks int) int {
	return seconds + minutes*60 + hours*3600 + days*86400 + weeks*604800
}

func ValidateTTL(ttl int) error {
	if ttl < MinTokenTTL || ttl > MaxTokenTTL {
		return &TTLError{TTL: ttl}
	}
	return nil
}

func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func generateToken() (string, string, error) {
	randomBytes := make([]byte, tokenBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	raw := base64.RawURLEncoding.EncodeToString(randomBytes)
	return raw, HashToken(raw), nil
}

// classTeacher returns the active homeroom teacher of a class.
func (tm *TokenManager) classTeacher(ctx context.Context, classID int64) (*models.User, error) {
	class, err := tm.store.GetClassRoom(ctx, classID)
	if err != nil {
		return nil, err
	}
	if class == nil {
		return nil, fmt.Errorf("class %d: %w", classID, ErrClassNotFound)
	}
	if class.TeacherID == nil {
		return nil, fmt.Errorf("class %s: %w", class.Name, ErrNoTeacher)
	}
	teacher, err := tm.store.GetUser(ctx, *class.TeacherID)
	if err != nil {
		return nil, err
	}
	if teacher == nil || !teacher.IsActive {
		return nil, fmt.Errorf("class %s: %w", class.Name, ErrNoTeacher)
	}
	return teacher, nil
}

func (tm *TokenManager) Issue(ctx context.Context, classID int64, issuedBy *int64, ttl int) (string, *models.SubstituteToken, error) {
	if err := ValidateTTL(ttl); err != nil {
		return "", nil, err
	}
	if _, err := tm.classTeacher(ctx, classID); err != nil {
		return "", nil, err
	}

	raw, hash, err := generateToken()
	if err != nil {
		return "", nil, err
	}

	now := tm.now().UTC()
	token := &models.SubstituteToken{
		ClassRoomID: classID,
		IssuedBy:    issuedBy,
		TokenHash:   hash,
		TTLSeconds:  ttl,
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Duration(ttl) * time.Second),
	}
	if err := tm.store.CreateToken(ctx, token); err != nil {
		return "", nil, err
	}

	logger.Info.Printf("Issued substitute token %d for class %d, ttl %ds", token.ID, classID, ttl)
	return raw, token, nil
}

// Authenticate resolves a raw secret into its token and the teacher the
// holder acts for.
func (tm *TokenManager) Authenticate(ctx context.Context, raw string) (*models.SubstituteToken, *models.User, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil, ErrTokenNotFound
	}

	token, err := tm.store.GetTokenByHash(ctx, HashToken(raw))
	if err != nil {
		return nil, nil, err
	}
	if token == nil {
		return nil, nil, ErrTokenNotFound
	}

	teacher, err := tm.activeTeacher(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	now := tm.now().UTC()
	if err := tm.store.TouchToken(ctx, token.ID, now); err != nil {
		return nil, nil, err
	}
	token.LastUsedAt = &now
	return token, teacher, nil
}

// CheckActive re-validates the token behind a delegated session.
func (tm *TokenManager) CheckActive(ctx context.Context, id int64) (*models.SubstituteToken, error) {
	token, err := tm.store.GetToken(ctx, id)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, ErrTokenNotFound
	}
	if _, err := tm.activeTeacher(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

func (tm *TokenManager) activeTeacher(ctx context.Context, token *models.SubstituteToken) (*models.User, error) {
	if !token.IsActive(tm.now()) {
		return nil, fmt.Errorf("token %d: %w", token.ID, ErrTokenInactive)
	}
	teacher, err := tm.classTeacher(ctx, token.ClassRoomID)
	if errors.Is(err, ErrClassNotFound) {
		return nil, fmt.Errorf("token %d: %w", token.ID, ErrNoTeacher)
	}
	return teacher, err
}

func (tm *TokenManager) Revoke(ctx context.Context, id int64) error {
	token, err := tm.store.GetToken(ctx, id)
	if err != nil {
		return err
	}
	if token == nil {
		return ErrTokenNotFound
	}
	if token.RevokedAt != nil {
		return ErrAlreadyRevoked
	}

	now := tm.now().UTC()
	token.RevokedAt = &now
	if err := tm.store.UpdateToken(ctx, token); err != nil {
		return err
	}
	logger.Info.Printf("Revoked substitute token %d", id)
	return nil
}

// Rotate replaces the secret and restarts the lifetime from now using the
// stored ttl. A revoked token becomes active again.
func (tm *TokenManager) Rotate(ctx context.Context, id int64, issuedBy *int64) (string, *models.SubstituteToken, error) {
	token, err := tm.store.GetToken(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if token == nil {
		return "", nil, ErrTokenNotFound
	}
	if _, err := tm.classTeacher(ctx, token.ClassRoomID); err != nil {
		return "", nil, err
	}

	raw, hash, err := generateToken()
	if err != nil {
		return "", nil, err
	}

	now := tm.now().UTC()
	token.TokenHash = hash
	token.IssuedBy = issuedBy
	token.CreatedAt = now
	token.ExpiresAt = now.Add(time.Duration(token.TTLSeconds) * time.Second)
	token.RevokedAt = nil
	if err := tm.store.UpdateToken(ctx, token); err != nil {
		return "", nil, err
	}

	logger.Info.Printf("Rotated substitute token %d", id)
	return raw, token, nil
}

func (tm *TokenManager) Delete(ctx context.Context, id int64) error {
	err := tm.store.DeleteToken(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrTokenNotFound
	}
	if err == nil {
		logger.Info.Printf("Deleted substitute token %d", id)
	}
	return err
}

func (tm *TokenManager) List(ctx context.Context, limit int) ([]models.SubstituteToken, error) {
	return tm.store.ListTokens(ctx, limit)
}

// SessionTTL is how long a delegated session may live: the remaining token
// lifetime.
func (tm *TokenManager) SessionTTL(token *models.SubstituteToken) time.Duration {
	return token.ExpiresAt.Sub(tm.now())
}
