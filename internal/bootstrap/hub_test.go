package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"tenant-provisioner/internal/model"
	"tenant-provisioner/internal/registry"
)

func hubRow(id uuid.UUID, email string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "nickname", "email", "password_hash", "is_active", "created_at"}).
		AddRow(id.String(), "Super Admin", "Super Admin", email, "hashed", true, time.Now())
}

func newLinkFixtures(t *testing.T) (*HubLinker, sqlmock.Sqlmock, *sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	regDB, regMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { regDB.Close() })

	tenantDB, tenantMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { tenantDB.Close() })

	linker := NewHubLinker(&registry.Registry{DB: regDB}, quietLogger())
	return linker, regMock, tenantDB, tenantMock
}

func TestLinkAdminCreatesIdentity(t *testing.T) {
	linker, regMock, tenantDB, tenantMock := newLinkFixtures(t)
	hubID := uuid.New()
	tenant := &model.Tenant{ID: uuid.New(), Slug: "acme"}

	// Lookup misses, insert, lookup again for the id.
	regMock.ExpectQuery("SELECT (.+) FROM hub_users WHERE email").
		WithArgs("admin@acme.com").
		WillReturnError(sql.ErrNoRows)
	regMock.ExpectExec("INSERT INTO hub_users").
		WithArgs("Super Admin", "Super Admin", "admin@acme.com", "hashed").
		WillReturnResult(sqlmock.NewResult(0, 1))
	regMock.ExpectQuery("SELECT (.+) FROM hub_users WHERE email").
		WithArgs("admin@acme.com").
		WillReturnRows(hubRow(hubID, "admin@acme.com"))
	regMock.ExpectExec("INSERT INTO user_tenants").
		WithArgs(hubID, tenant.ID, model.RoleAdmin).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tenantMock.ExpectExec("UPDATE users SET hub_user_id").
		WithArgs(hubID, "admin@acme.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := linker.LinkAdmin(context.Background(), tenant, seed(), tenantDB)
	require.NoError(t, err)
	require.NoError(t, regMock.ExpectationsWereMet())
	require.NoError(t, tenantMock.ExpectationsWereMet())
}

func TestLinkAdminReusesExistingIdentity(t *testing.T) {
	linker, regMock, tenantDB, tenantMock := newLinkFixtures(t)
	hubID := uuid.New()
	tenant := &model.Tenant{ID: uuid.New(), Slug: "acme"}

	regMock.ExpectQuery("SELECT (.+) FROM hub_users WHERE email").
		WithArgs("admin@acme.com").
		WillReturnRows(hubRow(hubID, "admin@acme.com"))
	regMock.ExpectExec("INSERT INTO user_tenants").
		WithArgs(hubID, tenant.ID, model.RoleAdmin).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tenantMock.ExpectExec("UPDATE users SET hub_user_id").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := linker.LinkAdmin(context.Background(), tenant, seed(), tenantDB)
	require.NoError(t, err)
	require.NoError(t, regMock.ExpectationsWereMet())
}

func TestLinkAdminBackLinkFailureIsSoft(t *testing.T) {
	linker, regMock, tenantDB, tenantMock := newLinkFixtures(t)
	hubID := uuid.New()
	tenant := &model.Tenant{ID: uuid.New(), Slug: "acme"}

	regMock.ExpectQuery("SELECT (.+) FROM hub_users WHERE email").
		WillReturnRows(hubRow(hubID, "admin@acme.com"))
	regMock.ExpectExec("INSERT INTO user_tenants").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// The applied template has no hub_user_id column.
	tenantMock.ExpectExec("UPDATE users SET hub_user_id").
		WillReturnError(errors.New(`column "hub_user_id" does not exist`))

	err := linker.LinkAdmin(context.Background(), tenant, seed(), tenantDB)
	require.NoError(t, err)
}

func TestLinkAdminMembershipFailureIsReported(t *testing.T) {
	linker, regMock, tenantDB, _ := newLinkFixtures(t)
	tenant := &model.Tenant{ID: uuid.New(), Slug: "acme"}

	regMock.ExpectQuery("SELECT (.+) FROM hub_users WHERE email").
		WillReturnRows(hubRow(uuid.New(), "admin@acme.com"))
	regMock.ExpectExec("INSERT INTO user_tenants").
		WillReturnError(errors.New("registry down"))

	err := linker.LinkAdmin(context.Background(), tenant, seed(), tenantDB)
	require.Error(t, err)
}
