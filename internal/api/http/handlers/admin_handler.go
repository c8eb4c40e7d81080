package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-auth/internal/api/dto"
	"github.com/spec-kit/marketplace-auth/internal/auth"
	"github.com/spec-kit/marketplace-auth/internal/domain"
	"github.com/spec-kit/marketplace-auth/internal/repository"
	"github.com/spec-kit/marketplace-auth/internal/service"
	apperrors "github.com/spec-kit/marketplace-auth/pkg/util/errorutil"
)

// AdminHandler exposes account administration endpoints.
type AdminHandler struct {
	admin *service.AdminService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(adminService *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: adminService}
}

// UpdateAccount handles PUT /admin/users/:id.
func (h *AdminHandler) UpdateAccount(c *fiber.Ctx) error {
	actor, err := currentAccount(c)
	if err != nil {
		return err
	}
	var req dto.AccountUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}

	upd := service.AccountUpdate{Reason: req.Reason, StoreActive: req.StoreActive}
	if req.Status != nil {
		status := domain.AccountStatus(*req.Status)
		upd.Status = &status
	}
	if req.Role != nil {
		role := domain.Role(*req.Role)
		upd.Role = &role
	}

	account, err := h.admin.UpdateAccount(c.UserContext(), actor, c.Params("id"), upd)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"user": dto.NewAccountResponse(account)}})
}

// Promote handles PUT /admin/promote/:id.
func (h *AdminHandler) Promote(c *fiber.Ctx) error {
	actor, err := currentAccount(c)
	if err != nil {
		return err
	}
	var req dto.PromoteRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}

	account, err := h.admin.Promote(c.UserContext(), actor, c.Params("id"), domain.Role(req.Role), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"user": dto.NewAccountResponse(account)}})
}

// DeleteAccount handles DELETE /auth/users/:id.
func (h *AdminHandler) DeleteAccount(c *fiber.Ctx) error {
	actor, err := currentAccount(c)
	if err != nil {
		return err
	}
	if err := h.admin.DeleteAccount(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// OverridePermissions handles PUT /admin/users/:id/permissions.
func (h *AdminHandler) OverridePermissions(c *fiber.Ctx) error {
	actor, err := currentAccount(c)
	if err != nil {
		return err
	}
	var req dto.PermissionOverrideRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}

	account, err := h.admin.OverridePermissions(c.UserContext(), actor, c.Params("id"), req.Permissions, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"user": dto.NewAccountResponse(account)}})
}

// ListAccounts handles GET /admin/users.
func (h *AdminHandler) ListAccounts(c *fiber.Ctx) error {
	actor, err := currentAccount(c)
	if err != nil {
		return err
	}
	filter := repository.AccountFilter{
		Limit:  c.QueryInt("limit", 0),
		Offset: c.QueryInt("offset", 0),
	}
	if role := c.Query("role"); role != "" {
		r := domain.Role(role)
		if !r.Valid() {
			return apperrors.NewValidationError("request validation failed", map[string]any{"role": "unknown role"})
		}
		filter.Role = &r
	}
	if status := c.Query("status"); status != "" {
		s := domain.AccountStatus(status)
		if !s.Valid() {
			return apperrors.NewValidationError("request validation failed", map[string]any{"status": "unknown status"})
		}
		filter.Status = &s
	}

	accounts, err := h.admin.ListAccounts(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{"users": dto.NewAccountResponses(accounts)},
		"meta": fiber.Map{"limit": filter.Limit, "offset": filter.Offset, "count": len(accounts)},
	})
}

// ListAuditLogs handles GET /admin/audit-logs.
func (h *AdminHandler) ListAuditLogs(c *fiber.Ctx) error {
	actor, err := currentAccount(c)
	if err != nil {
		return err
	}
	filter := repository.AuditFilter{
		Limit:  c.QueryInt("limit", 0),
		Offset: c.QueryInt("offset", 0),
	}
	if level := c.Query("level"); level != "" {
		l := domain.AuditLevel(level)
		filter.Level = &l
	}
	if actorID := c.Query("actorId"); actorID != "" {
		filter.ActorID = &actorID
	}
	if action := c.Query("action"); action != "" {
		a := domain.AuditAction(action)
		filter.Action = &a
	}

	entries, err := h.admin.ListAuditLogs(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"entries": dto.NewAuditEntryResponses(entries)}})
}

func currentAccount(c *fiber.Ctx) (*domain.Account, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Account == nil {
		return nil, apperrors.NewUnauthenticated("authentication required", false)
	}
	return principal.Account, nil
}
