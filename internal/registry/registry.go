// internal/registry/registry.go
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"tenant-provisioner/internal/model"
)

var (
	// ErrDuplicateSlug is returned by Reserve when the slug is already
	// registered. The unique constraint on tenants.slug is the only
	// cross-request synchronization in the whole saga.
	ErrDuplicateSlug = errors.New("slug already registered")

	ErrNotFound = errors.New("not found")
)

// Registry is the central store recording which tenants exist. A row here
// is an intent log entry: it is written before the physical database is
// created and deleted only after the physical database is gone.
type Registry struct {
	DB *sql.DB
}

func NewRegistry(dsn string) (*Registry, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to registry db: %w", err)
	}
	return &Registry{DB: db}, nil
}

// EnsureSchema creates the registry tables if missing.
func (r *Registry) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tenants (
			id UUID PRIMARY KEY,
			slug TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			tenant_type TEXT NOT NULL,
			database_name TEXT NOT NULL UNIQUE,
			database_host TEXT NOT NULL,
			primary_color TEXT NOT NULL DEFAULT '#ef4444',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			maintenance_mode BOOLEAN NOT NULL DEFAULT FALSE,
			allow_registration BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS hub_users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name TEXT NOT NULL,
			nickname TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS user_tenants (
			user_id UUID NOT NULL,
			tenant_id UUID NOT NULL,
			role TEXT NOT NULL DEFAULT 'member',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			left_at TIMESTAMPTZ,
			PRIMARY KEY (user_id, tenant_id)
		);
		CREATE TABLE IF NOT EXISTS audit_log (
			id UUID PRIMARY KEY,
			event TEXT NOT NULL,
			tenant_slug TEXT NOT NULL,
			actor TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to ensure registry schema: %w", err)
	}
	return nil
}

// Reserve inserts the tenant record. It must run before any physical
// resource is created: a dangling registry row is recoverable, an
// unregistered physical database is a silent leak. Duplicate slugs are
// rejected by the unique constraint, not pre-checked.
func (r *Registry) Reserve(ctx context.Context, t *model.Tenant) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO tenants (
			id, slug, display_name, tenant_type, database_name, database_host,
			primary_color, is_active, maintenance_mode, allow_registration
		) VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, FALSE, TRUE)`,
		t.ID, t.Slug, t.DisplayName, string(t.TenantType),
		t.DatabaseName, t.DatabaseHost, t.PrimaryColor,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("failed to reserve tenant %q: %w", t.Slug, err)
	}
	return nil
}

// Remove deletes the record by slug. Used by provisioning rollback.
func (r *Registry) Remove(ctx context.Context, slug string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM tenants WHERE slug = $1`, slug)
	if err != nil {
		return fmt.Errorf("failed to remove tenant %q: %w", slug, err)
	}
	return nil
}

// Delete removes the record by id. Used by deprovisioning after the
// physical database has been dropped.
func (r *Registry) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tenant %s: %w", id, err)
	}
	return nil
}

const tenantColumns = `id, slug, display_name, tenant_type, database_name, database_host,
		primary_color, is_active, maintenance_mode, allow_registration, created_at`

func scanTenant(row interface{ Scan(...any) error }) (*model.Tenant, error) {
	var t model.Tenant
	var typ string
	err := row.Scan(&t.ID, &t.Slug, &t.DisplayName, &typ, &t.DatabaseName,
		&t.DatabaseHost, &t.PrimaryColor, &t.IsActive, &t.MaintenanceMode,
		&t.AllowRegistration, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.TenantType = model.TenantType(typ)
	return &t, nil
}

func (r *Registry) GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	t, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant %s: %w", id, err)
	}
	return t, nil
}

func (r *Registry) GetBySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug)
	t, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant %q: %w", slug, err)
	}
	return t, nil
}

func (r *Registry) List(ctx context.Context) ([]model.Tenant, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []model.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, *t)
	}
	return tenants, rows.Err()
}

// ListActiveByType returns active tenants of one archetype, for the
// public selector flow.
func (r *Registry) ListActiveByType(ctx context.Context, typ model.TenantType) ([]model.Tenant, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants
		 WHERE tenant_type = $1 AND is_active = TRUE
		 ORDER BY display_name`, string(typ))
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants of type %q: %w", typ, err)
	}
	defer rows.Close()

	var tenants []model.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, *t)
	}
	return tenants, rows.Err()
}

// TenantPatch carries the updatable registry fields. Nil means unchanged.
type TenantPatch struct {
	DisplayName       *string `json:"displayName"`
	PrimaryColor      *string `json:"primaryColor"`
	IsActive          *bool   `json:"isActive"`
	MaintenanceMode   *bool   `json:"maintenanceMode"`
	AllowRegistration *bool   `json:"allowRegistration"`
}

// Update applies a patch to a single tenant row, keyed by id.
func (r *Registry) Update(ctx context.Context, id uuid.UUID, patch TenantPatch) error {
	sets := make([]string, 0, 5)
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.DisplayName != nil {
		add("display_name", *patch.DisplayName)
	}
	if patch.PrimaryColor != nil {
		add("primary_color", *patch.PrimaryColor)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}
	if patch.MaintenanceMode != nil {
		add("maintenance_mode", *patch.MaintenanceMode)
	}
	if patch.AllowRegistration != nil {
		add("allow_registration", *patch.AllowRegistration)
	}
	if len(sets) == 0 {
		return fmt.Errorf("no fields to update")
	}

	query := "UPDATE tenants SET "
	for i, s := range sets {
		if i > 0 {
			query += ", "
		}
		query += s
	}
	query += " WHERE id = $1"

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update tenant %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertAudit persists one lifecycle event. Called by the audit consumer.
func (r *Registry) InsertAudit(ctx context.Context, ev *model.AuditEvent) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO audit_log (id, event, tenant_slug, actor, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.ID, ev.Event, ev.Slug, ev.Actor, ev.Detail, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

func (r *Registry) ListAudit(ctx context.Context, limit int) ([]model.AuditEvent, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, event, tenant_slug, actor, detail, created_at
		FROM audit_log ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []model.AuditEvent
	for rows.Next() {
		var ev model.AuditEvent
		if err := rows.Scan(&ev.ID, &ev.Event, &ev.Slug, &ev.Actor, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
