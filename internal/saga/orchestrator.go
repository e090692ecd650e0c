// internal/saga/orchestrator.go
package saga

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tenant-provisioner/internal/metrics"
	"tenant-provisioner/internal/model"
	"tenant-provisioner/internal/provisioner"
	"tenant-provisioner/internal/registry"
	"tenant-provisioner/internal/slug"
)

// RegistryStore is the central intent log for tenant existence.
type RegistryStore interface {
	Reserve(ctx context.Context, t *model.Tenant) error
	Remove(ctx context.Context, slug string) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Databases creates, drops and connects to physical tenant databases.
type Databases interface {
	Create(ctx context.Context, host, dbName string) error
	Drop(ctx context.Context, host, dbName string) error
	Open(host, dbName string) (*sql.DB, error)
}

// Initializer applies the schema template and seeds the admin row in one
// transaction on the new tenant database.
type Initializer interface {
	Initialize(ctx context.Context, db *sql.DB, typ model.TenantType, admin model.AdminSeed) error
}

// HubLinker links the tenant admin into the central identity space. The
// link is a soft dependency of the saga.
type HubLinker interface {
	LinkAdmin(ctx context.Context, tenant *model.Tenant, admin model.AdminSeed, tenantDB *sql.DB) error
}

// Hasher hashes bootstrap admin passwords before they reach storage.
type Hasher interface {
	Hash(password string) (string, error)
}

// Notifier publishes lifecycle events, fire-and-forget. The saga never
// waits on it or reads a result from it.
type Notifier interface {
	Publish(ev *model.AuditEvent)
}

// Orchestrator sequences the provisioning saga. Every request runs
// synchronously end to end; no queue, no worker pool, no distributed
// lock. Concurrent callers racing on one slug are serialized by the
// registry unique constraint alone.
type Orchestrator struct {
	registry   RegistryStore
	databases  Databases
	initialize Initializer
	hub        HubLinker
	hasher     Hasher
	notifier   Notifier
	tenantHost string
	log        *logrus.Logger
}

func NewOrchestrator(
	reg RegistryStore,
	dbs Databases,
	init Initializer,
	hub HubLinker,
	hasher Hasher,
	notifier Notifier,
	tenantHost string,
	log *logrus.Logger,
) *Orchestrator {
	return &Orchestrator{
		registry:   reg,
		databases:  dbs,
		initialize: init,
		hub:        hub,
		hasher:     hasher,
		notifier:   notifier,
		tenantHost: tenantHost,
		log:        log,
	}
}

// ProvisionRequest is the inbound creation request. Admin fields are
// optional and defaulted from the slug.
type ProvisionRequest struct {
	Slug          string `json:"slug"`
	TenantType    string `json:"tenantType"`
	DisplayName   string `json:"displayName"`
	PrimaryColor  string `json:"primaryColor"`
	AdminEmail    string `json:"adminEmail"`
	AdminPassword string `json:"adminPassword"`
	AdminName     string `json:"adminName"`
	AdminNickname string `json:"adminNickname"`
	Actor         string `json:"-"`
}

// ProvisionResult describes a successfully created tenant.
type ProvisionResult struct {
	Tenant     *model.Tenant `json:"tenant"`
	AdminEmail string        `json:"adminEmail"`
}

// checkpoint records which saga steps completed, in memory only. It
// exists purely to drive reverse-order compensation and is never
// persisted anywhere.
type checkpoint struct {
	registryReserved bool
	databaseCreated  bool
}

// Provision runs S0 Validate → S1 Reserve → S2 CreateDB →
// S3 Schema+Admin → S4 HubLink(soft). An error at S1..S3 compensates in
// reverse order; an error at S4 is logged and the saga still succeeds.
func (o *Orchestrator) Provision(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error) {
	start := time.Now()
	result, err := o.provision(ctx, req)
	metrics.ProvisionDuration.Observe(time.Since(start).Seconds())
	metrics.ProvisionTotal.WithLabelValues(outcomeLabel(err)).Inc()
	return result, err
}

func (o *Orchestrator) provision(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error) {
	// S0: validate, zero side effects.
	tenant, admin, err := o.validate(req)
	if err != nil {
		return nil, err
	}

	log := o.log.WithFields(logrus.Fields{
		"slug":     tenant.Slug,
		"database": tenant.DatabaseName,
		"host":     tenant.DatabaseHost,
	})

	var cp checkpoint

	// S1: reserve the registry record before anything physical exists.
	if err := o.registry.Reserve(ctx, tenant); err != nil {
		if errors.Is(err, registry.ErrDuplicateSlug) {
			return nil, &ConflictError{Slug: tenant.Slug}
		}
		return nil, &ProvisioningError{Step: "reserve", Cause: err}
	}
	cp.registryReserved = true

	// S2: create the physical database.
	log.Info("creating tenant database")
	if err := o.databases.Create(ctx, tenant.DatabaseHost, tenant.DatabaseName); err != nil {
		return nil, o.compensate(ctx, &cp, tenant, "create-database", err)
	}
	cp.databaseCreated = true

	// S3: schema + admin row, one local transaction on the new database.
	tenantDB, err := o.databases.Open(tenant.DatabaseHost, tenant.DatabaseName)
	if err != nil {
		return nil, o.compensate(ctx, &cp, tenant, "connect-tenant", err)
	}
	defer tenantDB.Close()

	if err := o.initialize.Initialize(ctx, tenantDB, tenant.TenantType, admin); err != nil {
		return nil, o.compensate(ctx, &cp, tenant, "apply-schema", err)
	}

	// S4: hub identity link. Soft: the tenant is fully functional
	// without it, so a failure here never triggers compensation.
	if err := o.hub.LinkAdmin(ctx, tenant, admin, tenantDB); err != nil {
		log.WithError(err).Warn("hub identity link failed, tenant created without it")
	}

	log.Info("tenant provisioned")
	if o.notifier != nil {
		o.notifier.Publish(&model.AuditEvent{
			ID:        uuid.New(),
			Event:     model.EventTenantCreated,
			Slug:      tenant.Slug,
			Actor:     req.Actor,
			Detail:    tenant.DatabaseName,
			CreatedAt: time.Now().UTC(),
		})
	}
	return &ProvisionResult{Tenant: tenant, AdminEmail: admin.Email}, nil
}

func (o *Orchestrator) validate(req ProvisionRequest) (*model.Tenant, model.AdminSeed, error) {
	var admin model.AdminSeed

	s, err := slug.Validate(req.Slug)
	if err != nil {
		return nil, admin, &ValidationError{Msg: err.Error()}
	}
	typ, err := model.ParseTenantType(req.TenantType)
	if err != nil {
		return nil, admin, &ValidationError{Msg: err.Error()}
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = s
	}
	color := req.PrimaryColor
	if color == "" {
		color = "#ef4444"
	}

	admin = model.AdminSeed{
		Name:     req.AdminName,
		Nickname: req.AdminNickname,
		Email:    req.AdminEmail,
	}
	if admin.Email == "" {
		admin.Email = fmt.Sprintf("admin@%s.com", s)
	}
	if admin.Name == "" {
		admin.Name = "Super Admin"
	}
	if admin.Nickname == "" {
		admin.Nickname = admin.Name
	}
	password := req.AdminPassword
	if password == "" {
		password = "change-me"
	}
	hash, err := o.hasher.Hash(password)
	if err != nil {
		return nil, admin, &ValidationError{Msg: fmt.Sprintf("invalid admin password: %v", err)}
	}
	admin.PasswordHash = hash

	return &model.Tenant{
		ID:           uuid.New(),
		Slug:         s,
		DisplayName:  displayName,
		TenantType:   typ,
		DatabaseName: slug.DeriveDatabaseName(s),
		DatabaseHost: o.tenantHost,
		PrimaryColor: color,
	}, admin, nil
}

// compensate undoes completed steps in reverse order, furthest first.
// If dropping the database fails, the registry record is kept on
// purpose: deleting it would orphan a physical database with no pointer
// left to it. Any compensation failure is the partial-cleanup outcome.
func (o *Orchestrator) compensate(ctx context.Context, cp *checkpoint, tenant *model.Tenant, step string, cause error) error {
	log := o.log.WithFields(logrus.Fields{
		"slug": tenant.Slug,
		"step": step,
	})
	log.WithError(cause).Error("provisioning failed, compensating")

	if cp.databaseCreated {
		if err := o.databases.Drop(ctx, tenant.DatabaseHost, tenant.DatabaseName); err != nil {
			metrics.CompensationFailures.Inc()
			log.WithError(err).Error("COMPENSATION FAILED: tenant database and registry record left behind, operator intervention required")
			return &CompensationError{
				Step:              step,
				Cause:             cause,
				CompensationCause: err,
				Orphans: []string{
					"database " + tenant.DatabaseName + " on " + tenant.DatabaseHost,
					"registry record " + tenant.Slug,
				},
			}
		}
	}
	if cp.registryReserved {
		if err := o.registry.Remove(ctx, tenant.Slug); err != nil {
			metrics.CompensationFailures.Inc()
			log.WithError(err).Error("COMPENSATION FAILED: registry record left behind, operator intervention required")
			return &CompensationError{
				Step:              step,
				Cause:             cause,
				CompensationCause: err,
				Orphans:           []string{"registry record " + tenant.Slug},
			}
		}
	}

	log.Info("compensation complete, no resources left behind")
	return &ProvisioningError{Step: step, Cause: cause}
}

// Deprovision removes a tenant: D1 drop the physical database, then D2
// delete the registry record. If the drop fails the registry record is
// kept and the whole operation can simply be retried; a database that
// still exists must never lose its registry pointer.
func (o *Orchestrator) Deprovision(ctx context.Context, tenantID uuid.UUID, actor string) (*model.Tenant, error) {
	tenant, err := o.registry.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return nil, err
		}
		return nil, &DeprovisionError{Cause: err}
	}

	log := o.log.WithFields(logrus.Fields{
		"slug":     tenant.Slug,
		"database": tenant.DatabaseName,
	})

	// D1: physical drop first.
	log.Info("dropping tenant database")
	if err := o.databases.Drop(ctx, tenant.DatabaseHost, tenant.DatabaseName); err != nil {
		if errors.Is(err, provisioner.ErrNotFound) {
			// Database already gone, most likely a retry after a
			// previous run failed between D1 and D2. Converge.
			log.Warn("tenant database already absent, proceeding to registry delete")
		} else {
			metrics.DeprovisionTotal.WithLabelValues("failed").Inc()
			log.WithError(err).Error("drop failed, registry record kept for retry")
			return nil, &DeprovisionError{Cause: err}
		}
	}

	// D2: only now is it safe to forget the tenant.
	if err := o.registry.Delete(ctx, tenantID); err != nil {
		metrics.DeprovisionTotal.WithLabelValues("failed").Inc()
		log.WithError(err).Error("registry delete failed after drop, record is now dangling")
		return nil, &DeprovisionError{Cause: err}
	}

	metrics.DeprovisionTotal.WithLabelValues("success").Inc()
	log.Info("tenant deprovisioned")
	if o.notifier != nil {
		o.notifier.Publish(&model.AuditEvent{
			ID:        uuid.New(),
			Event:     model.EventTenantDeleted,
			Slug:      tenant.Slug,
			Actor:     actor,
			Detail:    tenant.DatabaseName,
			CreatedAt: time.Now().UTC(),
		})
	}
	return tenant, nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.As(err, new(*CompensationError)):
		return "failed_partial_cleanup"
	case errors.As(err, new(*ConflictError)):
		return "conflict"
	case errors.As(err, new(*ValidationError)):
		return "invalid"
	default:
		return "failed"
	}
}
