package models

import (
	"time"
)

// SubstituteToken grants a delegated login into one class on behalf of its
// homeroom teacher. Only the SHA-256 digest of the raw secret is kept.
type SubstituteToken struct {
	ID          int64      `db:"id" json:"id"`
	ClassRoomID int64      `db:"class_room_id" json:"class_room_id"`
	ClassName   string     `db:"class_name" json:"class_name,omitempty"`
	IssuedBy    *int64     `db:"issued_by" json:"issued_by,omitempty"`
	TokenHash   string     `db:"token_hash" json:"-"`
	TTLSeconds  int        `db:"ttl_seconds" json:"ttl_seconds"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt   time.Time  `db:"expires_at" json:"expires_at"`
	RevokedAt   *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	LastUsedAt  *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
}

func (t *SubstituteToken) IsActive(now time.Time) bool {
	return t.RevokedAt == nil && !now.After(t.ExpiresAt)
}
