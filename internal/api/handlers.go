package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	httpSwagger "github.com/swaggo/http-swagger"

	"tenant-provisioner/internal/auth"
	"tenant-provisioner/internal/metrics"
	"tenant-provisioner/internal/model"
	"tenant-provisioner/internal/registry"
	"tenant-provisioner/internal/saga"
)

func (a *API) Router() http.Handler {
	// Public
	a.Routers.Get("/health", a.Health)
	a.Routers.Post("/auth/login", a.Login)
	a.Routers.Get("/tenant-types/{type}/tenants", a.ListTenantsByType)
	a.Routers.Handle("/metrics", metrics.Handler())
	a.Routers.Get("/swagger/*", httpSwagger.Handler())

	// Secured
	a.Routers.Group(func(r chi.Router) {
		r.Use(auth.JWTAuthMiddleware)

		r.Post("/tenants", a.CreateTenant)
		r.Get("/tenants", a.ListTenants)
		r.Delete("/tenants/{id}", a.DeleteTenant)
		r.Patch("/tenants/{id}", a.UpdateTenant)
		r.Delete("/tenants/{id}/memberships/{userId}", a.LeaveTenant)
		r.Get("/audit", a.ListAudit)
	})

	return a.Routers
}

type errorResponse struct {
	ErrorKind string `json:"errorKind"`
	Message   string `json:"message"`
}

// writeError maps the saga error taxonomy to status codes. Internal
// failure detail is only exposed outside production; the full cause is
// always logged server-side.
func (a *API) writeError(w http.ResponseWriter, err error) {
	var (
		status  int
		kind    string
		message string
	)

	var validationErr *saga.ValidationError
	var conflictErr *saga.ConflictError
	var compensationErr *saga.CompensationError
	var deprovisionErr *saga.DeprovisionError

	switch {
	case errors.As(err, &validationErr):
		status, kind, message = http.StatusBadRequest, "validation", validationErr.Msg
	case errors.As(err, &conflictErr):
		status, kind, message = http.StatusConflict, "conflict", conflictErr.Error()
	case errors.Is(err, registry.ErrNotFound):
		status, kind, message = http.StatusNotFound, "not_found", "tenant not found"
	case errors.Is(err, registry.ErrLastAdmin):
		status, kind, message = http.StatusConflict, "last_admin", registry.ErrLastAdmin.Error()
	case errors.As(err, &compensationErr):
		status, kind = http.StatusInternalServerError, "partial_cleanup"
		message = "provisioning failed and cleanup was incomplete; operator intervention required"
	case errors.As(err, &deprovisionErr):
		status, kind = http.StatusInternalServerError, "deprovision_failed"
		message = "deprovisioning failed; the tenant is untouched in the registry and the request can be retried"
	default:
		status, kind, message = http.StatusInternalServerError, "provisioning_failed", "failed to provision tenant"
	}

	a.Log.WithError(err).WithField("kind", kind).Error("request failed")
	if status == http.StatusInternalServerError && !a.Cfg.Production() {
		message = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{ErrorKind: kind, Message: message})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// @Summary Health check
// @Tags Meta
// @Success 200 {object} map[string]string
// @Router /health [get]
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// @Summary Operator login
// @Tags Auth
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Router /auth/login [post]
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	if body.Email != a.Cfg.Auth.SuperAdminEmail ||
		!auth.CheckPassword(a.Cfg.Auth.SuperAdminPassHash, body.Password) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateToken(body.Email)
	if err != nil {
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type createTenantResponse struct {
	Slug         string `json:"slug"`
	DatabaseName string `json:"databaseName"`
	DatabaseHost string `json:"databaseHost"`
	AdminEmail   string `json:"adminEmail"`
}

// @Summary Provision a tenant
// @Tags Tenants
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body saga.ProvisionRequest true "Provisioning request"
// @Success 201 {object} createTenantResponse
// @Failure 400 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /tenants [post]
func (a *API) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req saga.ProvisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, &saga.ValidationError{Msg: "invalid request body"})
		return
	}
	req.Actor = auth.GetOperator(r)

	result, err := a.Orchestrator.Provision(r.Context(), req)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJSON(w, http.StatusCreated, createTenantResponse{
		Slug:         result.Tenant.Slug,
		DatabaseName: result.Tenant.DatabaseName,
		DatabaseHost: result.Tenant.DatabaseHost,
		AdminEmail:   result.AdminEmail,
	})
}

// @Summary Deprovision a tenant
// @Tags Tenants
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Tenant UUID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} errorResponse
// @Router /tenants/{id} [delete]
func (a *API) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, &saga.ValidationError{Msg: "invalid tenant id"})
		return
	}

	tenant, err := a.Orchestrator.Deprovision(r.Context(), id, auth.GetOperator(r))
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]string{
		"message": "tenant " + tenant.DisplayName + " and its database were removed",
	})
}

// @Summary List all tenants
// @Tags Tenants
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} model.Tenant
// @Router /tenants [get]
func (a *API) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := a.Registry.List(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	if tenants == nil {
		tenants = []model.Tenant{}
	}
	a.writeJSON(w, http.StatusOK, tenants)
}

// @Summary List active tenants of one type
// @Tags Tenants
// @Produce json
// @Param type path string true "Tenant type"
// @Success 200 {array} model.Tenant
// @Router /tenant-types/{type}/tenants [get]
func (a *API) ListTenantsByType(w http.ResponseWriter, r *http.Request) {
	typ, err := model.ParseTenantType(chi.URLParam(r, "type"))
	if err != nil {
		a.writeError(w, &saga.ValidationError{Msg: err.Error()})
		return
	}

	tenants, err := a.Registry.ListActiveByType(r.Context(), typ)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if tenants == nil {
		tenants = []model.Tenant{}
	}
	a.writeJSON(w, http.StatusOK, tenants)
}

// @Summary Update tenant registry fields
// @Tags Tenants
// @Accept json
// @Security ApiKeyAuth
// @Param id path string true "Tenant UUID"
// @Param body body registry.TenantPatch true "Fields to update"
// @Success 200 {object} map[string]string
// @Router /tenants/{id} [patch]
func (a *API) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, &saga.ValidationError{Msg: "invalid tenant id"})
		return
	}

	var patch registry.TenantPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		a.writeError(w, &saga.ValidationError{Msg: "invalid request body"})
		return
	}

	if err := a.Registry.Update(r.Context(), id, patch); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"message": "tenant updated"})
}

// @Summary Leave a tenant
// @Tags Memberships
// @Security ApiKeyAuth
// @Param id path string true "Tenant UUID"
// @Param userId path string true "Hub user UUID"
// @Success 204
// @Failure 409 {object} errorResponse
// @Router /tenants/{id}/memberships/{userId} [delete]
func (a *API) LeaveTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, &saga.ValidationError{Msg: "invalid tenant id"})
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		a.writeError(w, &saga.ValidationError{Msg: "invalid user id"})
		return
	}

	if err := a.Registry.LeaveTenant(r.Context(), userID, tenantID); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// @Summary List audit events
// @Tags Audit
// @Produce json
// @Security ApiKeyAuth
// @Param limit query int false "Max events"
// @Success 200 {array} model.AuditEvent
// @Router /audit [get]
func (a *API) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	events, err := a.Registry.ListAudit(r.Context(), limit)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if events == nil {
		events = []model.AuditEvent{}
	}
	a.writeJSON(w, http.StatusOK, events)
}
