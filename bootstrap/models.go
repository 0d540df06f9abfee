// Package bootstrap persists session snapshots so the application can come
// up with the last known identity and entitlements while the network or the
// identity provider is unavailable. Bearer tokens are never stored in the
// clear: they are sealed with a caller-provided key before hitting disk.
package bootstrap

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SessionSnapshot is the persisted form of a resolved session.
type SessionSnapshot struct {
	bun.BaseModel `bun:"table:session_snapshots,alias:snp"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	IdentityID    string     `bun:"identity_id" json:"identity_id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	DisplayName   string     `bun:"display_name" json:"display_name,omitempty"`
	AvatarURL     string     `bun:"avatar_url" json:"avatar_url,omitempty"`
	Phone         string     `bun:"phone_number" json:"phone_number,omitempty"`
	Role          string     `bun:"user_role,notnull" json:"user_role,omitempty"`
	IsPremium     bool       `bun:"is_premium" json:"is_premium,omitempty"`
	SealedToken   []byte     `bun:"sealed_token" json:"-"`
	SyncedAt      *time.Time `bun:"synced_at,nullzero" json:"synced_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}
