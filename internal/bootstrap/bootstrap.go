// internal/bootstrap/bootstrap.go
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"tenant-provisioner/internal/model"
	"tenant-provisioner/internal/schema"
)

// Initializer applies the tenant type's schema template and inserts the
// bootstrap admin row, in one transaction on the new tenant database.
// That transaction is the only atomicity available to the saga: there is
// no cross-database transaction anywhere else.
type Initializer struct {
	templates *schema.Templates
	log       *logrus.Logger
}

func NewInitializer(templates *schema.Templates, log *logrus.Logger) *Initializer {
	return &Initializer{templates: templates, log: log}
}

func (i *Initializer) Initialize(ctx context.Context, db *sql.DB, typ model.TenantType, admin model.AdminSeed) error {
	script, err := i.templates.Lookup(typ)
	switch {
	case errors.Is(err, schema.ErrTemplateNotFound):
		// Missing template is recoverable: apply the minimal schema.
		i.log.WithField("tenant_type", typ).Info("no schema template, applying fallback")
		script = schema.FallbackDDL
	case err != nil:
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tenant transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("failed to apply schema for type %q: %w", typ, err)
	}
	if err := insertAdmin(ctx, tx, typ.AdminShape(), admin); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tenant schema: %w", err)
	}
	return nil
}

// insertAdmin writes the bootstrap admin row in the shape the tenant
// type demands. The switch is exhaustive over the two known shapes.
func insertAdmin(ctx context.Context, tx *sql.Tx, shape model.AdminShape, admin model.AdminSeed) error {
	var err error
	switch shape {
	case model.AdminShapeMerged:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO users (
				email, password_hash,
				is_admin, is_approved, is_blocked, is_monthly,
				name, nickname, phone, photo, skill_rating
			) VALUES ($1, $2, TRUE, TRUE, FALSE, FALSE, $3, $4, NULL, NULL, 0.0)`,
			admin.Email, admin.PasswordHash, admin.Name, admin.Nickname)
	case model.AdminShapeGeneric:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO users (name, email, password_hash, role)
			VALUES ($1, $2, $3, $4)`,
			admin.Name, admin.Email, admin.PasswordHash, model.RoleAdmin)
	default:
		return fmt.Errorf("unknown admin shape %d", shape)
	}
	if err != nil {
		return fmt.Errorf("failed to insert admin account: %w", err)
	}
	return nil
}
