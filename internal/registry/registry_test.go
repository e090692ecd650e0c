package registry

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"tenant-provisioner/internal/model"
)

func newMockRegistry(t *testing.T) (*Registry, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Registry{DB: db}, mock
}

func sampleTenant() *model.Tenant {
	return &model.Tenant{
		ID:           uuid.New(),
		Slug:         "acme",
		DisplayName:  "Acme",
		TenantType:   model.TenantTypeGeneric,
		DatabaseName: "tenant_acme",
		DatabaseHost: "db.internal",
		PrimaryColor: "#ef4444",
	}
}

func TestReserve(t *testing.T) {
	reg, mock := newMockRegistry(t)
	tenant := sampleTenant()

	mock.ExpectExec("INSERT INTO tenants").
		WithArgs(tenant.ID, "acme", "Acme", "generic", "tenant_acme", "db.internal", "#ef4444").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, reg.Reserve(context.Background(), tenant))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveDuplicateSlug(t *testing.T) {
	reg, mock := newMockRegistry(t)

	mock.ExpectExec("INSERT INTO tenants").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "tenants_slug_key"})

	err := reg.Reserve(context.Background(), sampleTenant())
	require.ErrorIs(t, err, ErrDuplicateSlug)
}

func TestGetByIDNotFound(t *testing.T) {
	reg, mock := newMockRegistry(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM tenants WHERE id").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := reg.GetByID(context.Background(), id)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate(t *testing.T) {
	reg, mock := newMockRegistry(t)
	id := uuid.New()
	name := "New Name"
	active := false

	mock.ExpectExec(`UPDATE tenants SET display_name = \$2, is_active = \$3 WHERE id = \$1`).
		WithArgs(id, name, active).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := reg.Update(context.Background(), id, TenantPatch{
		DisplayName: &name,
		IsActive:    &active,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateNoFields(t *testing.T) {
	reg, _ := newMockRegistry(t)

	err := reg.Update(context.Background(), uuid.New(), TenantPatch{})
	require.Error(t, err)
}

func TestUpdateUnknownTenant(t *testing.T) {
	reg, mock := newMockRegistry(t)
	id := uuid.New()
	name := "New Name"

	mock.ExpectExec("UPDATE tenants SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := reg.Update(context.Background(), id, TenantPatch{DisplayName: &name})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertMembershipReactivates(t *testing.T) {
	reg, mock := newMockRegistry(t)
	userID, tenantID := uuid.New(), uuid.New()

	mock.ExpectExec("INSERT INTO user_tenants").
		WithArgs(userID, tenantID, model.RoleAdmin).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, reg.UpsertMembership(context.Background(), userID, tenantID, model.RoleAdmin))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveTenantLastAdmin(t *testing.T) {
	reg, mock := newMockRegistry(t)
	userID, tenantID := uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT role FROM user_tenants").
		WithArgs(userID, tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow(model.RoleAdmin))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM user_tenants`).
		WithArgs(tenantID, model.RoleAdmin).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	err := reg.LeaveTenant(context.Background(), userID, tenantID)
	require.ErrorIs(t, err, ErrLastAdmin)
}

func TestLeaveTenantAsSecondAdmin(t *testing.T) {
	reg, mock := newMockRegistry(t)
	userID, tenantID := uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT role FROM user_tenants").
		WithArgs(userID, tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow(model.RoleAdmin))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM user_tenants`).
		WithArgs(tenantID, model.RoleAdmin).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec("UPDATE user_tenants SET is_active = FALSE").
		WithArgs(userID, tenantID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, reg.LeaveTenant(context.Background(), userID, tenantID))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveTenantNoMembership(t *testing.T) {
	reg, mock := newMockRegistry(t)

	mock.ExpectQuery("SELECT role FROM user_tenants").
		WillReturnError(sql.ErrNoRows)

	err := reg.LeaveTenant(context.Background(), uuid.New(), uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}
