package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-auth/internal/api/http/handlers"
	"github.com/spec-kit/marketplace-auth/internal/auth"
	"github.com/spec-kit/marketplace-auth/internal/config"
	"github.com/spec-kit/marketplace-auth/internal/events"
	"github.com/spec-kit/marketplace-auth/internal/observability"
	"github.com/spec-kit/marketplace-auth/internal/repository"
	"github.com/spec-kit/marketplace-auth/internal/service"
)

const (
	rootEmail    = "root@market.test"
	rootPassword = "root-secret"
)

func newTestServer(t *testing.T, rateLimit config.RateLimitConfig) *fiber.App {
	t.Helper()
	cfg := config.Config{
		App: config.AppConfig{Name: "marketplace-auth-test"},
		Auth: config.AuthConfig{
			JWTSecret:             "router-test-secret",
			AccessTokenTTLMinutes: 60,
			RefreshTokenTTLHours:  168,
			BcryptCost:            auth.MinBcryptCost,
		},
	}
	logger := zap.NewNop()
	metrics := observability.NewMetrics("router_test")

	accounts := repository.NewMemoryAccountRepository()
	refresh := repository.NewMemoryRefreshTokenRepository(time.Now)
	audit := service.NewAuditService(repository.NewMemoryAuditRepository(), time.Now)
	dispatcher := events.NewInMemoryDispatcher(logger)

	authService := service.NewAuthService(cfg, service.AuthDependencies{
		AccountRepo:      accounts,
		RefreshTokenRepo: refresh,
		Audit:            audit,
		Dispatcher:       dispatcher,
		Metrics:          metrics,
		Logger:           logger,
	})
	adminService := service.NewAdminService(service.AdminDependencies{
		AccountRepo:      accounts,
		RefreshTokenRepo: refresh,
		Audit:            audit,
		Auth:             authService,
		Dispatcher:       dispatcher,
		Logger:           logger,
	})
	_, _, err := adminService.EnsureSuperadmin(t.Context(), service.BootstrapAccount{
		Name:     "Root",
		Email:    rootEmail,
		Password: rootPassword,
	})
	require.NoError(t, err)

	app := NewApp(cfg.App, logger, metrics)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, "test", nil, nil),
		Auth:           handlers.NewAuthHandler(authService),
		Admin:          handlers.NewAdminHandler(adminService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), accounts),
		RateLimiter:    NewIPRateLimiter(rateLimit),
		Metrics:        metrics,
	})
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func errorDetails(body map[string]any) map[string]any {
	errBody, _ := body["error"].(map[string]any)
	details, _ := errBody["details"].(map[string]any)
	return details
}

func dataField(body map[string]any, key string) map[string]any {
	data, _ := body["data"].(map[string]any)
	value, _ := data[key].(map[string]any)
	return value
}

func accessToken(body map[string]any) string {
	token, _ := dataField(body, "tokens")["accessToken"].(string)
	return token
}

func login(t *testing.T, app *fiber.App, email, password, role string) string {
	t.Helper()
	status, body := doJSON(t, app, http.MethodPost, "/auth/login", "", fiber.Map{"email": email, "password": password, "role": role})
	require.Equal(t, http.StatusOK, status, body)
	return accessToken(body)
}

func TestVendorApprovalFlow(t *testing.T) {
	app := newTestServer(t, config.RateLimitConfig{})

	status, body := doJSON(t, app, http.MethodPost, "/auth/register", "", fiber.Map{
		"name":     "Acme Pharmacy",
		"email":    "acme@x.com",
		"password": "secret1",
		"role":     "vendor",
		"storeDetails": fiber.Map{
			"storeName":   "Acme",
			"description": "Neighbourhood pharmacy",
			"address":     "1 Main St",
			"phone":       "+1-555-0100",
		},
	})
	require.Equal(t, http.StatusCreated, status, body)
	user := dataField(body, "user")
	require.Equal(t, "pending", user["status"])
	require.NotContains(t, user, "password")
	require.NotContains(t, user, "password_hash")
	require.NotEmpty(t, accessToken(body))
	vendorID := user["id"].(string)

	status, body = doJSON(t, app, http.MethodPost, "/auth/login", "", fiber.Map{"email": "acme@x.com", "password": "secret1", "role": "vendor"})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "VENDOR_PENDING_APPROVAL", errorCode(body))
	require.Equal(t, "pending", errorDetails(body)["status"])

	rootToken := login(t, app, rootEmail, rootPassword, "admin")
	status, body = doJSON(t, app, http.MethodPut, "/admin/users/"+vendorID, rootToken, fiber.Map{"status": "active", "reason": "verified"})
	require.Equal(t, http.StatusOK, status, body)
	updated := dataField(body, "user")
	require.Equal(t, "active", updated["status"])
	store := updated["store"].(map[string]any)
	require.Equal(t, true, store["active"])

	vendorToken := login(t, app, "acme@x.com", "secret1", "vendor")
	status, body = doJSON(t, app, http.MethodGet, "/auth/profile", vendorToken, nil)
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, "acme@x.com", dataField(body, "user")["email"])
}

func TestAuthenticationErrors(t *testing.T) {
	app := newTestServer(t, config.RateLimitConfig{})

	status, body := doJSON(t, app, http.MethodGet, "/auth/profile", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "UNAUTHENTICATED", errorCode(body))
	require.Equal(t, false, errorDetails(body)["refreshable"])

	status, body = doJSON(t, app, http.MethodGet, "/auth/profile", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "TOKEN_INVALID", errorCode(body))

	status, body = doJSON(t, app, http.MethodPost, "/auth/login", "", fiber.Map{"email": "ghost@x.com", "password": "secret1"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "INVALID_CREDENTIALS", errorCode(body))

	status, body = doJSON(t, app, http.MethodPost, "/auth/register", "", fiber.Map{"name": "X", "email": "bad", "password": "1", "role": "customer"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "VALIDATION_FAILED", errorCode(body))
	require.Contains(t, errorDetails(body), "email")

	status, body = doJSON(t, app, http.MethodGet, "/does-not-exist", "", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestAdminRoutesEnforcePermissions(t *testing.T) {
	app := newTestServer(t, config.RateLimitConfig{})

	status, body := doJSON(t, app, http.MethodPost, "/auth/register", "", fiber.Map{
		"name": "Cathy", "email": "cathy@x.com", "password": "secret1", "role": "customer",
	})
	require.Equal(t, http.StatusCreated, status, body)
	customerToken := accessToken(body)
	customerID := dataField(body, "user")["id"].(string)

	status, body = doJSON(t, app, http.MethodPut, "/admin/users/"+customerID, customerToken, fiber.Map{"status": "suspended"})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "manage-users", errorDetails(body)["missing_permission"])

	status, body = doJSON(t, app, http.MethodDelete, "/auth/users/"+customerID, customerToken, nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, []any{"superadmin"}, errorDetails(body)["required_roles"])

	rootToken := login(t, app, rootEmail, rootPassword, "")
	status, body = doJSON(t, app, http.MethodGet, "/auth/profile", rootToken, nil)
	require.Equal(t, http.StatusOK, status)
	rootID := dataField(body, "user")["id"].(string)

	status, body = doJSON(t, app, http.MethodDelete, "/auth/users/"+rootID, rootToken, nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "FORBIDDEN", errorCode(body))

	status, body = doJSON(t, app, http.MethodPut, "/admin/promote/"+customerID, rootToken, fiber.Map{"role": "admin"})
	require.Equal(t, http.StatusOK, status, body)
	perms := dataField(body, "user")["permissions"].(map[string]any)
	require.Equal(t, true, perms["manageUsers"])
	require.Equal(t, false, perms["promoteUsers"])

	status, body = doJSON(t, app, http.MethodPut, "/admin/users/not-a-uuid", rootToken, fiber.Map{"status": "active"})
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "NOT_FOUND", errorCode(body))
	status, _ = doJSON(t, app, http.MethodDelete, "/auth/users/not-a-uuid", rootToken, nil)
	require.Equal(t, http.StatusNotFound, status)

	status, _ = doJSON(t, app, http.MethodGet, "/admin/users?role=admin", rootToken, nil)
	require.Equal(t, http.StatusOK, status)

	status, body = doJSON(t, app, http.MethodGet, "/admin/audit-logs", rootToken, nil)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, body["data"].(map[string]any)["entries"])

	status, _ = doJSON(t, app, http.MethodDelete, "/auth/users/"+customerID, rootToken, nil)
	require.Equal(t, http.StatusNoContent, status)
}

func TestRefreshEndpointRotates(t *testing.T) {
	app := newTestServer(t, config.RateLimitConfig{})

	status, body := doJSON(t, app, http.MethodPost, "/auth/login", "", fiber.Map{"email": rootEmail, "password": rootPassword})
	require.Equal(t, http.StatusOK, status)
	refreshToken := dataField(body, "tokens")["refreshToken"].(string)

	status, body = doJSON(t, app, http.MethodPost, "/auth/refresh-token", "", fiber.Map{"refreshToken": refreshToken})
	require.Equal(t, http.StatusOK, status, body)
	require.NotEmpty(t, accessToken(body))

	status, body = doJSON(t, app, http.MethodPost, "/auth/refresh-token", "", fiber.Map{"refreshToken": refreshToken})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "TOKEN_INVALID", errorCode(body))
}

func TestAdminPromotesOverHTTP(t *testing.T) {
	app := newTestServer(t, config.RateLimitConfig{})
	rootToken := login(t, app, rootEmail, rootPassword, "")

	status, body := doJSON(t, app, http.MethodPost, "/auth/register", "", fiber.Map{
		"name": "Dana", "email": "dana@x.com", "password": "secret1", "role": "customer",
	})
	require.Equal(t, http.StatusCreated, status, body)
	danaID := dataField(body, "user")["id"].(string)
	status, body = doJSON(t, app, http.MethodPost, "/auth/register", "", fiber.Map{
		"name": "Evan", "email": "evan@x.com", "password": "secret1", "role": "customer",
	})
	require.Equal(t, http.StatusCreated, status, body)
	evanID := dataField(body, "user")["id"].(string)

	status, body = doJSON(t, app, http.MethodPut, "/admin/promote/"+danaID, rootToken, fiber.Map{"role": "admin"})
	require.Equal(t, http.StatusOK, status, body)

	adminToken := login(t, app, "dana@x.com", "secret1", "admin")
	status, body = doJSON(t, app, http.MethodPut, "/admin/promote/"+evanID, adminToken, fiber.Map{"role": "superadmin"})
	require.Equal(t, http.StatusForbidden, status, body)

	status, body = doJSON(t, app, http.MethodPut, "/admin/promote/"+evanID, adminToken, fiber.Map{"role": "admin", "reason": "team lead"})
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, "admin", dataField(body, "user")["role"])
}

func TestProfilePasswordChange(t *testing.T) {
	app := newTestServer(t, config.RateLimitConfig{})

	status, body := doJSON(t, app, http.MethodPost, "/auth/register", "", fiber.Map{
		"name": "Fay", "email": "fay@x.com", "password": "secret1", "role": "customer",
	})
	require.Equal(t, http.StatusCreated, status, body)
	token := accessToken(body)

	status, body = doJSON(t, app, http.MethodPut, "/auth/profile", token, fiber.Map{
		"currentPassword": "wrong-one", "newPassword": "secret2",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, errorDetails(body), "currentPassword")

	status, body = doJSON(t, app, http.MethodPut, "/auth/profile", token, fiber.Map{
		"currentPassword": "secret1", "newPassword": "secret2", "statusReason": "rotating",
	})
	require.Equal(t, http.StatusOK, status, body)

	status, _ = doJSON(t, app, http.MethodPost, "/auth/login", "", fiber.Map{"email": "fay@x.com", "password": "secret1"})
	require.Equal(t, http.StatusBadRequest, status)
	require.NotEmpty(t, login(t, app, "fay@x.com", "secret2", "customer"))
}

func TestLoginRateLimited(t *testing.T) {
	app := newTestServer(t, config.RateLimitConfig{PerSecond: 0.001, Burst: 1})

	status, _ := doJSON(t, app, http.MethodPost, "/auth/login", "", fiber.Map{"email": rootEmail, "password": rootPassword})
	require.Equal(t, http.StatusOK, status)

	status, body := doJSON(t, app, http.MethodPost, "/auth/login", "", fiber.Map{"email": rootEmail, "password": rootPassword})
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Equal(t, "RATE_LIMITED", errorCode(body))
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestServer(t, config.RateLimitConfig{})

	status, body := doJSON(t, app, http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "alive", body["status"])

	status, body = doJSON(t, app, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ready", body["status"])

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(raw), "router_test_http_requests_total")
}
