package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tenant-provisioner/internal/auth"
	"tenant-provisioner/internal/config"
	"tenant-provisioner/internal/registry"
	"tenant-provisioner/internal/saga"
)

func newTestAPI(t *testing.T, env string) *API {
	t.Helper()
	auth.SetSecret("test-secret")

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{Env: env}
	cfg.Auth.SuperAdminEmail = "root@example.com"
	cfg.Auth.SuperAdminPassHash = string(hash)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return NewAPI(nil, &registry.Registry{}, cfg, log)
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t, "development")
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogin(t *testing.T) {
	a := newTestAPI(t, "development")
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	body, _ := json.Marshal(map[string]string{
		"email":    "root@example.com",
		"password": "hunter2",
	})
	resp, err := http.Post(srv.URL+"/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out["token"])

	claims, err := auth.ValidateToken(out["token"])
	require.NoError(t, err)
	require.Equal(t, "root@example.com", claims.Operator)
}

func TestLoginBadCredentials(t *testing.T) {
	a := newTestAPI(t, "development")
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	body, _ := json.Marshal(map[string]string{
		"email":    "root@example.com",
		"password": "wrong",
	})
	resp, err := http.Post(srv.URL+"/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSecuredRoutesRequireToken(t *testing.T) {
	a := newTestAPI(t, "development")
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/tenants")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDeleteTenantInvalidID(t *testing.T) {
	a := newTestAPI(t, "development")
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	token, err := auth.GenerateToken("root@example.com")
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/tenants/not-a-uuid", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var out errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestErrorMapping(t *testing.T) {
	a := newTestAPI(t, "development")

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"validation", &saga.ValidationError{Msg: "bad slug"}, http.StatusBadRequest, "validation"},
		{"conflict", &saga.ConflictError{Slug: "acme"}, http.StatusConflict, "conflict"},
		{"not found", registry.ErrNotFound, http.StatusNotFound, "not_found"},
		{"last admin", registry.ErrLastAdmin, http.StatusConflict, "last_admin"},
		{"provisioning", &saga.ProvisioningError{Step: "create-database", Cause: errors.New("boom")}, http.StatusInternalServerError, "provisioning_failed"},
		{"partial cleanup", &saga.CompensationError{Step: "apply-schema", Cause: errors.New("boom"), CompensationCause: errors.New("worse")}, http.StatusInternalServerError, "partial_cleanup"},
		{"deprovision", &saga.DeprovisionError{Cause: errors.New("boom")}, http.StatusInternalServerError, "deprovision_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			a.writeError(rec, tt.err)
			require.Equal(t, tt.wantStatus, rec.Code)
			require.Equal(t, tt.wantKind, decodeError(t, rec).ErrorKind)
		})
	}
}

func TestErrorDetailGatedInProduction(t *testing.T) {
	cause := errors.New("pq: relation does not exist")
	err := &saga.ProvisioningError{Step: "apply-schema", Cause: cause}

	dev := newTestAPI(t, "development")
	rec := httptest.NewRecorder()
	dev.writeError(rec, err)
	require.Contains(t, decodeError(t, rec).Message, "relation does not exist")

	prod := newTestAPI(t, "production")
	rec = httptest.NewRecorder()
	prod.writeError(rec, err)
	require.NotContains(t, decodeError(t, rec).Message, "relation does not exist")
}
