package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-auth/internal/domain"
	apperrors "github.com/spec-kit/marketplace-auth/pkg/util/errorutil"
)

// RequireRole ensures the caller currently holds one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	names := make([]string, 0, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
		names = append(names, string(role))
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthenticated("authentication required", false)
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Role()]; !exists {
			return apperrors.NewMissingRole(names)
		}
		return c.Next()
	}
}

// RequirePermission ensures the caller holds perm. Superadmins always pass.
func RequirePermission(perm domain.Permission) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthenticated("authentication required", false)
		}
		if !HasPermission(principal.Account, perm) {
			return apperrors.NewMissingPermission(string(perm))
		}
		return c.Next()
	}
}

// HasPermission reports whether account may use perm.
func HasPermission(account *domain.Account, perm domain.Permission) bool {
	if account == nil {
		return false
	}
	if account.IsSuperadmin() {
		return true
	}
	return account.Permissions().Has(perm)
}
