// internal/registry/membership.go
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"tenant-provisioner/internal/model"
)

// ErrLastAdmin is returned when the sole active admin of a tenant tries
// to leave. Every active tenant must keep at least one active admin.
var ErrLastAdmin = errors.New("tenant would be left without an active admin")

// FindHubIdentity looks a central identity up by email.
func (r *Registry) FindHubIdentity(ctx context.Context, email string) (*model.HubIdentity, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, name, nickname, email, password_hash, is_active, created_at
		FROM hub_users WHERE email = $1`, email)

	var h model.HubIdentity
	err := row.Scan(&h.ID, &h.Name, &h.Nickname, &h.Email, &h.PasswordHash,
		&h.IsActive, &h.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up hub identity: %w", err)
	}
	return &h, nil
}

// CreateHubIdentity inserts a central identity. The caller re-looks the
// row up afterwards to obtain its id; the lookup/insert/lookup sequence
// is deliberately not a single atomic upsert (see design notes).
func (r *Registry) CreateHubIdentity(ctx context.Context, h *model.HubIdentity) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO hub_users (name, nickname, email, password_hash, is_active)
		VALUES ($1, $2, $3, $4, TRUE)`,
		h.Name, h.Nickname, h.Email, h.PasswordHash)
	if err != nil {
		return fmt.Errorf("failed to create hub identity: %w", err)
	}
	return nil
}

// UpsertMembership links a hub identity to a tenant with the given role,
// reactivating a previously deactivated membership if one exists.
func (r *Registry) UpsertMembership(ctx context.Context, userID, tenantID uuid.UUID, role string) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO user_tenants (user_id, tenant_id, role, is_active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (user_id, tenant_id)
		DO UPDATE SET role = EXCLUDED.role, is_active = TRUE, left_at = NULL`,
		userID, tenantID, role)
	if err != nil {
		return fmt.Errorf("failed to upsert membership: %w", err)
	}
	return nil
}

// CountActiveAdmins counts active admin memberships for a tenant.
func (r *Registry) CountActiveAdmins(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_tenants
		WHERE tenant_id = $1 AND role = $2 AND is_active = TRUE`,
		tenantID, model.RoleAdmin).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return n, nil
}

// LeaveTenant deactivates a membership. An admin cannot leave while they
// are the only active admin of the tenant.
func (r *Registry) LeaveTenant(ctx context.Context, userID, tenantID uuid.UUID) error {
	var role string
	err := r.DB.QueryRowContext(ctx, `
		SELECT role FROM user_tenants
		WHERE user_id = $1 AND tenant_id = $2 AND is_active = TRUE`,
		userID, tenantID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load membership: %w", err)
	}

	if role == model.RoleAdmin {
		n, err := r.CountActiveAdmins(ctx, tenantID)
		if err != nil {
			return err
		}
		if n <= 1 {
			return ErrLastAdmin
		}
	}

	_, err = r.DB.ExecContext(ctx, `
		UPDATE user_tenants SET is_active = FALSE, left_at = NOW()
		WHERE user_id = $1 AND tenant_id = $2`, userID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to deactivate membership: %w", err)
	}
	return nil
}
