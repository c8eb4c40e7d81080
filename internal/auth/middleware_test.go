package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/marketplace-auth/internal/domain"
	apperrors "github.com/spec-kit/marketplace-auth/pkg/util/errorutil"
)

type stubLookup struct {
	accounts map[string]*domain.Account
	err      error
}

func (s *stubLookup) GetByID(_ context.Context, id string) (*domain.Account, error) {
	if s.err != nil {
		return nil, s.err
	}
	acct, ok := s.accounts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return acct, nil
}

type errorBody struct {
	Code    string         `json:"code"`
	Details map[string]any `json:"details"`
}

func newTestApp(mw *AuthMiddleware, gates ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).JSON(errorBody{Code: domainErr.Code, Details: domainErr.Details})
		},
	})
	handlers := append([]fiber.Handler{mw.Handle}, gates...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		principal, ok := PrincipalFrom(c.UserContext())
		if !ok {
			return errors.New("principal missing from user context")
		}
		return c.SendString(string(principal.Role()))
	})
	app.Get("/protected", handlers...)
	return app
}

func doRequest(t *testing.T, app *fiber.App, header string) (int, errorBody, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body errorBody
	if resp.StatusCode >= 400 {
		require.NoError(t, json.Unmarshal(raw, &body))
	}
	return resp.StatusCode, body, string(raw)
}

func fixture(t *testing.T) (*fakeClock, *TokenManager, *stubLookup) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	lookup := &stubLookup{accounts: map[string]*domain.Account{
		"cust":  {ID: "cust", Email: "c@x.com", Role: domain.RoleCustomer, Status: domain.AccountStatusActive},
		"admin": {ID: "admin", Email: "a@x.com", Role: domain.RoleAdmin, Status: domain.AccountStatusActive},
		"root":  {ID: "root", Email: "r@x.com", Role: domain.RoleSuperadmin, Status: domain.AccountStatusActive},
	}}
	return clock, newTestTokens(clock), lookup
}

func bearer(t *testing.T, tm *TokenManager, id string, role domain.Role) string {
	t.Helper()
	pair, err := tm.Issue(id, id+"@x.com", role)
	require.NoError(t, err)
	return "Bearer " + pair.AccessToken
}

func TestAuthMiddleware(t *testing.T) {
	clock, tm, lookup := fixture(t)
	app := newTestApp(NewAuthMiddleware(tm, lookup))

	t.Run("Should reject a missing header", func(t *testing.T) {
		status, body, _ := doRequest(t, app, "")
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, apperrors.CodeUnauthenticated, body.Code)
		assert.Equal(t, false, body.Details["refreshable"])
	})

	t.Run("Should reject a malformed header", func(t *testing.T) {
		status, body, _ := doRequest(t, app, "Token abc")
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, apperrors.CodeUnauthenticated, body.Code)
	})

	t.Run("Should reject an invalid token", func(t *testing.T) {
		status, body, _ := doRequest(t, app, "Bearer nope")
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, apperrors.CodeTokenInvalid, body.Code)
	})

	t.Run("Should report expiry as refreshable", func(t *testing.T) {
		header := bearer(t, tm, "cust", domain.RoleCustomer)
		saved := clock.now
		clock.now = clock.now.Add(time.Hour + time.Second)
		defer func() { clock.now = saved }()

		status, body, _ := doRequest(t, app, header)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, apperrors.CodeTokenExpired, body.Code)
		assert.Equal(t, true, body.Details["refreshable"])
	})

	t.Run("Should reject tokens for deleted accounts", func(t *testing.T) {
		status, body, _ := doRequest(t, app, bearer(t, tm, "ghost", domain.RoleCustomer))
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, apperrors.CodeUnauthenticated, body.Code)
	})

	t.Run("Should use the stored role over the token role", func(t *testing.T) {
		status, _, raw := doRequest(t, app, bearer(t, tm, "cust", domain.RoleAdmin))
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "customer", raw)
	})

	t.Run("Should surface lookup failures as internal errors", func(t *testing.T) {
		failing := newTestApp(NewAuthMiddleware(tm, &stubLookup{err: errors.New("db down")}))
		status, body, _ := doRequest(t, failing, bearer(t, tm, "cust", domain.RoleCustomer))
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, apperrors.CodeInternal, body.Code)
	})
}

func TestRequirePermission(t *testing.T) {
	_, tm, lookup := fixture(t)
	app := newTestApp(NewAuthMiddleware(tm, lookup), RequirePermission(domain.PermManageUsers))

	t.Run("Should pass for superadmin", func(t *testing.T) {
		status, _, _ := doRequest(t, app, bearer(t, tm, "root", domain.RoleSuperadmin))
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("Should pass for superadmin even with a restrictive override", func(t *testing.T) {
		lookup.accounts["root"].PermissionOverride = &domain.PermissionOverride{SetBy: "root"}
		defer func() { lookup.accounts["root"].PermissionOverride = nil }()
		status, _, _ := doRequest(t, app, bearer(t, tm, "root", domain.RoleSuperadmin))
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("Should pass for admin", func(t *testing.T) {
		status, _, _ := doRequest(t, app, bearer(t, tm, "admin", domain.RoleAdmin))
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("Should fail for customer with the missing permission", func(t *testing.T) {
		status, body, _ := doRequest(t, app, bearer(t, tm, "cust", domain.RoleCustomer))
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, apperrors.CodeForbidden, body.Code)
		assert.Equal(t, "manage-users", body.Details["missing_permission"])
	})
}

func TestRequireRole(t *testing.T) {
	_, tm, lookup := fixture(t)
	app := newTestApp(NewAuthMiddleware(tm, lookup), RequireRole(domain.RoleAdmin, domain.RoleSuperadmin))

	status, _, _ := doRequest(t, app, bearer(t, tm, "admin", domain.RoleAdmin))
	assert.Equal(t, http.StatusOK, status)

	status, body, _ := doRequest(t, app, bearer(t, tm, "cust", domain.RoleCustomer))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, []any{"admin", "superadmin"}, body.Details["required_roles"])
}
