// internal/bootstrap/hub.go
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"tenant-provisioner/internal/model"
	"tenant-provisioner/internal/registry"
)

// HubLinker connects the new tenant's admin to the central identity
// space: find-or-create the hub identity, upsert an admin membership,
// and best-effort back-link the hub id into the tenant-local admin row.
type HubLinker struct {
	reg *registry.Registry
	log *logrus.Logger
}

func NewHubLinker(reg *registry.Registry, log *logrus.Logger) *HubLinker {
	return &HubLinker{reg: reg, log: log}
}

// LinkAdmin runs after the tenant is fully functional; a failure here is
// reported to the saga but never compensated, since the tenant works
// without the link.
//
// The find-or-create is lookup, insert, lookup again. Two concurrent
// registrations with the same email can both miss the first lookup and
// insert twice; the dedup policy for that case is an open design
// question, so the race is left as is rather than papered over.
func (h *HubLinker) LinkAdmin(ctx context.Context, tenant *model.Tenant, admin model.AdminSeed, tenantDB *sql.DB) error {
	identity, err := h.reg.FindHubIdentity(ctx, admin.Email)
	if errors.Is(err, registry.ErrNotFound) {
		create := &model.HubIdentity{
			Name:         admin.Name,
			Nickname:     admin.Nickname,
			Email:        admin.Email,
			PasswordHash: admin.PasswordHash,
		}
		if err := h.reg.CreateHubIdentity(ctx, create); err != nil {
			return err
		}
		identity, err = h.reg.FindHubIdentity(ctx, admin.Email)
		if err != nil {
			return fmt.Errorf("failed to reload hub identity: %w", err)
		}
	} else if err != nil {
		return err
	}

	if err := h.reg.UpsertMembership(ctx, identity.ID, tenant.ID, model.RoleAdmin); err != nil {
		return err
	}

	// Soft back-link: the tenant-local users table may not carry the
	// column, depending on the applied template.
	_, err = tenantDB.ExecContext(ctx,
		`UPDATE users SET hub_user_id = $1 WHERE email = $2`,
		identity.ID, admin.Email)
	if err != nil {
		h.log.WithFields(logrus.Fields{
			"tenant": tenant.Slug,
			"email":  admin.Email,
		}).WithError(err).Warn("hub back-link not written")
	}

	return nil
}
