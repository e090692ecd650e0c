// internal/model/identity.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// HubIdentity is a centrally held user identity, shared across tenants.
// It is keyed by email in practice, found-or-created during bootstrap.
type HubIdentity struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Nickname     string    `json:"nickname" db:"nickname"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	IsActive     bool      `json:"isActive" db:"is_active"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Membership links a HubIdentity to a Tenant with a role. The pair
// (UserID, TenantID) is the primary key; rows are reactivated rather
// than re-inserted.
type Membership struct {
	UserID   uuid.UUID  `json:"userId" db:"user_id"`
	TenantID uuid.UUID  `json:"tenantId" db:"tenant_id"`
	Role     string     `json:"role" db:"role"`
	IsActive bool       `json:"isActive" db:"is_active"`
	JoinedAt time.Time  `json:"joinedAt" db:"joined_at"`
	LeftAt   *time.Time `json:"leftAt,omitempty" db:"left_at"`
}

const RoleAdmin = "admin"
const RoleMember = "member"

// AuditEvent is one tenant lifecycle event, published to the notification
// queue and persisted by the audit consumer.
type AuditEvent struct {
	ID        uuid.UUID `json:"id"`
	Event     string    `json:"event"`
	Slug      string    `json:"slug"`
	Actor     string    `json:"actor"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

const (
	EventTenantCreated = "tenant.created"
	EventTenantDeleted = "tenant.deleted"
)
