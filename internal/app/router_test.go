package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/doj-records/records/internal/observability"
	"github.com/doj-records/records/internal/rbac"
	"github.com/doj-records/records/internal/storage/policy"
)

func newTestServer(t *testing.T) (http.Handler, *Runtime) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "roles.json"), []byte(`[
		{"id": "clerk", "name": "Clerk", "permissions": {"cases": ["view", "edit"], "roles": ["view"]}}
	]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.json"), []byte(`[
		{"id": "u1", "username": "clerk", "role_id": "clerk"},
		{"id": "admin", "username": "OConnor", "role": "Administrator", "is_admin": true}
	]`), 0o644))

	cfg := &Config{
		AppEnv:             "development",
		DataDir:            dir,
		RateLimitPerMinute: 1000,
		DatabaseURL:        "postgres://unused@127.0.0.1:1/none",
	}
	rt, err := Open(context.Background(), cfg, nil, observability.NewMetrics())
	require.NoError(t, err)
	t.Cleanup(rt.Close)
	return NewHandler(cfg, rt), rt
}

func request(t *testing.T, h http.Handler, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		req.Header.Set(rbac.UserIDHeader, userID)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestOpenInTestModeUsesFileStoreOnly(t *testing.T) {
	_, rt := newTestServer(t)
	b, err := rt.Store.Backend(context.Background(), "cases")
	require.NoError(t, err)
	require.Equal(t, policy.BackendFile, b)
	require.Nil(t, rt.Redis)
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	h, _ := newTestServer(t)
	rr := request(t, h, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestDecisionAPI(t *testing.T) {
	h, _ := newTestServer(t)

	rr := request(t, h, http.MethodGet, "/v1/authz/users/u1/permissions/cases/show", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, true, body["allowed"])

	rr = request(t, h, http.MethodGet, "/v1/authz/users/admin/modules", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body["modules"], 30)
}

func TestRoleRoutesAreGuarded(t *testing.T) {
	h, _ := newTestServer(t)

	require.Equal(t, http.StatusUnauthorized, request(t, h, http.MethodGet, "/v1/roles/", "", "").Code)
	require.Equal(t, http.StatusOK, request(t, h, http.MethodGet, "/v1/roles/", "u1", "").Code)
	require.Equal(t, http.StatusForbidden, request(t, h, http.MethodPut, "/v1/roles/judge", "u1", `{"name":"Judge"}`).Code)
	require.Equal(t, http.StatusCreated, request(t, h, http.MethodPut, "/v1/roles/judge", "admin", `{"name":"Judge","permissions":{"hearings":["show"]}}`).Code)
	require.Equal(t, http.StatusForbidden, request(t, h, http.MethodGet, "/v1/users/", "u1", "").Code)
	require.Equal(t, http.StatusOK, request(t, h, http.MethodGet, "/v1/users/", "admin", "").Code)
}

func TestMetricsEndpointCountsDecisions(t *testing.T) {
	h, _ := newTestServer(t)
	request(t, h, http.MethodGet, "/v1/authz/users/u1/permissions/cases/view", "", "")

	rr := request(t, h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `records_access_decisions_total{module="cases",result="allow"} 1`)
	require.Contains(t, rr.Body.String(), `records_storage_operations_total{backend="file",collection="users",op="find"}`)
}

func TestMigrationEndpointRequiresAdmin(t *testing.T) {
	h, _ := newTestServer(t)
	require.Equal(t, http.StatusForbidden, request(t, h, http.MethodPost, "/v1/jobs/migrations/normalize_roles", "u1", "").Code)
	require.Equal(t, http.StatusServiceUnavailable, request(t, h, http.MethodPost, "/v1/jobs/migrations/normalize_roles", "admin", "").Code)
}
