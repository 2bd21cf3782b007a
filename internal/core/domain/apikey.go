package domain

import (
	"time"

	"github.com/google/uuid"
)

// Permission is a capability granted to an API key.
type Permission string

const (
	PermissionDeposit  Permission = "DEPOSIT"
	PermissionTransfer Permission = "TRANSFER"
	PermissionRead     Permission = "READ"
)

// APIKey is a long-lived credential scoped to a permission set.
// Keys are revoked by flag, never deleted.
type APIKey struct {
	ID          uuid.UUID    `json:"id"`
	UserID      uuid.UUID    `json:"user_id"`
	Name        string       `json:"name"`
	Key         string       `json:"-"` // Opaque secret, shown only at creation
	Permissions []Permission `json:"permissions"`
	ExpiresAt   time.Time    `json:"expires_at"`
	Revoked     bool         `json:"revoked"`
	CreatedAt   time.Time    `json:"created_at"`
}

// IsExpired reports whether the key has passed its expiry at now.
func (k *APIKey) IsExpired(now time.Time) bool {
	return now.After(k.ExpiresAt)
}

// IsUsable reports whether the key can authenticate requests at now.
func (k *APIKey) IsUsable(now time.Time) bool {
	return !k.Revoked && !k.IsExpired(now)
}

// HasPermission reports whether the key grants p.
func (k *APIKey) HasPermission(p Permission) bool {
	for _, granted := range k.Permissions {
		if granted == p {
			return true
		}
	}
	return false
}
