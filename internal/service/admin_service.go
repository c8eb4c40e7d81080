package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-auth/internal/auth"
	"github.com/spec-kit/marketplace-auth/internal/domain"
	"github.com/spec-kit/marketplace-auth/internal/events"
	"github.com/spec-kit/marketplace-auth/internal/repository"
	apperrors "github.com/spec-kit/marketplace-auth/pkg/util/errorutil"
)

// AccountUpdate is an administrative change request. Nil fields are left as is.
type AccountUpdate struct {
	Status      *domain.AccountStatus
	Role        *domain.Role
	Reason      *string
	StoreActive *bool
}

// BootstrapAccount describes the superadmin seeded on startup.
type BootstrapAccount struct {
	Name         string
	Email        string
	Password     string
	PasswordHash string
}

// AdminService manages other accounts' roles, statuses and permissions.
type AdminService struct {
	accounts   repository.AccountRepository
	refresh    repository.RefreshTokenRepository
	audit      *AuditService
	creator    *AuthService
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// AdminDependencies encapsulates collaborators for the admin service.
type AdminDependencies struct {
	AccountRepo      repository.AccountRepository
	RefreshTokenRepo repository.RefreshTokenRepository
	Audit            *AuditService
	Auth             *AuthService
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
	Clock            func() time.Time
}

// NewAdminService constructs the service.
func NewAdminService(deps AdminDependencies) *AdminService {
	s := &AdminService{
		accounts:   deps.AccountRepo,
		refresh:    deps.RefreshTokenRepo,
		audit:      deps.Audit,
		creator:    deps.Auth,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        deps.Clock,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func requirePermission(actor *domain.Account, perm domain.Permission) error {
	if actor == nil {
		return apperrors.NewUnauthenticated("authentication required", false)
	}
	if !auth.HasPermission(actor, perm) {
		return apperrors.NewMissingPermission(string(perm))
	}
	return nil
}

// UpdateAccount changes another account's status and/or role.
func (s *AdminService) UpdateAccount(ctx context.Context, actor *domain.Account, targetID string, upd AccountUpdate) (*domain.Account, error) {
	if err := requirePermission(actor, domain.PermManageUsers); err != nil {
		return nil, err
	}
	return s.applyUpdate(ctx, actor, targetID, upd)
}

// Promote moves an account to admin or superadmin.
func (s *AdminService) Promote(ctx context.Context, actor *domain.Account, targetID string, role domain.Role, reason *string) (*domain.Account, error) {
	if err := requirePermission(actor, domain.PermManageUsers); err != nil {
		return nil, err
	}
	if role != domain.RoleAdmin && role != domain.RoleSuperadmin {
		return nil, fieldError("role", "must be one of: admin, superadmin")
	}
	return s.applyUpdate(ctx, actor, targetID, AccountUpdate{Role: &role, Reason: reason})
}

func (s *AdminService) applyUpdate(ctx context.Context, actor *domain.Account, targetID string, upd AccountUpdate) (*domain.Account, error) {
	if upd.Status == nil && upd.Role == nil && upd.StoreActive == nil {
		return nil, apperrors.NewValidationError("no changes requested", map[string]any{"status": "status, role or storeActive is required"})
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, fieldError("status", "must be one of: active, inactive, suspended, pending")
	}
	if upd.Role != nil && !upd.Role.Valid() {
		return nil, fieldError("role", "must be one of: customer, vendor, admin, superadmin")
	}

	target, err := s.loadTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target.IsSuperadmin() && !actor.IsSuperadmin() {
		return nil, apperrors.NewForbidden("only a superadmin may modify a superadmin account")
	}
	if upd.Role != nil && *upd.Role == domain.RoleSuperadmin && !actor.IsSuperadmin() {
		return nil, apperrors.NewForbidden("only a superadmin may grant the superadmin role")
	}

	now := s.now().UTC()
	next := *target.Clone()
	delta := map[string]any{}
	var roleEvent *events.AccountRoleChangedPayload
	var statusEvent *events.AccountStatusChangedPayload

	if upd.Role != nil && *upd.Role != next.Role {
		oldRole := next.Role
		changed, err := domain.ChangeRole(next, *upd.Role, now)
		if err != nil {
			return nil, domainValidationError(err)
		}
		next = changed
		delta["role"] = map[string]any{"from": string(oldRole), "to": string(next.Role)}
		roleEvent = &events.AccountRoleChangedPayload{OldRole: oldRole, NewRole: next.Role}
	}

	if upd.Status != nil {
		if *upd.Status != next.Status {
			oldStatus := next.Status
			next, _ = domain.ApplyStatusChange(next, *upd.Status, upd.Reason, &actor.ID, now)
			delta["status"] = map[string]any{"from": string(oldStatus), "to": string(next.Status)}
			statusEvent = &events.AccountStatusChangedPayload{
				Role:      next.Role,
				OldStatus: oldStatus,
				NewStatus: next.Status,
				Reason:    upd.Reason,
			}
		}
		if *upd.Status == domain.AccountStatusActive && next.Role == domain.RoleVendor && next.Store != nil && !next.Store.Active {
			next.Store.Active = true
			delta["store_active"] = true
		}
	}

	if upd.StoreActive != nil {
		if next.Role != domain.RoleVendor || next.Store == nil {
			return nil, fieldError("storeActive", "only vendor accounts have a store")
		}
		if next.Store.Active != *upd.StoreActive {
			next.Store.Active = *upd.StoreActive
			delta["store_active"] = *upd.StoreActive
		}
	}

	if len(delta) > 0 {
		next.UpdatedAt = now
		if err := s.accounts.Update(ctx, &next); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("account", map[string]any{"id": targetID})
			}
			return nil, apperrors.MapError(err)
		}
	}

	details := map[string]any{"target_id": target.ID, "changes": delta}
	if upd.Reason != nil {
		details["reason"] = *upd.Reason
	}
	if err := s.record(ctx, AuditRecord{
		Level:   domain.AuditLevelInfo,
		Message: "account updated by administrator",
		ActorID: &actor.ID,
		Action:  domain.AuditActionAdminUpdate,
		Details: details,
	}); err != nil {
		return nil, err
	}

	if roleEvent != nil || statusEvent != nil {
		if err := s.refresh.RevokeAll(ctx, target.ID); err != nil {
			return nil, apperrors.MapError(err)
		}
	}
	if roleEvent != nil {
		s.publish(ctx, actor, &next, events.EventAccountRoleChanged, *roleEvent)
	}
	if statusEvent != nil {
		s.publish(ctx, actor, &next, events.EventAccountStatusChanged, *statusEvent)
	}
	return &next, nil
}

// DeleteAccount permanently removes a non-superadmin account. Superadmin only.
func (s *AdminService) DeleteAccount(ctx context.Context, actor *domain.Account, targetID string) error {
	if actor == nil {
		return apperrors.NewUnauthenticated("authentication required", false)
	}
	if !actor.IsSuperadmin() {
		return apperrors.NewMissingRole([]string{string(domain.RoleSuperadmin)})
	}
	target, err := s.loadTarget(ctx, targetID)
	if err != nil {
		return err
	}
	if target.IsSuperadmin() {
		return apperrors.NewForbidden("superadmin accounts cannot be deleted")
	}

	if err := s.record(ctx, AuditRecord{
		Level:   domain.AuditLevelWarning,
		Message: "account deleted",
		ActorID: &actor.ID,
		Action:  domain.AuditActionAdminDelete,
		Details: map[string]any{"target_id": target.ID, "email": target.Email, "role": string(target.Role)},
	}); err != nil {
		return err
	}

	if err := s.accounts.Delete(ctx, target.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("account", map[string]any{"id": targetID})
		}
		return apperrors.MapError(err)
	}
	if err := s.refresh.RevokeAll(ctx, target.ID); err != nil {
		s.logger.Warn("refresh token revocation failed", zap.String("account_id", target.ID), zap.Error(err))
	}
	s.publish(ctx, actor, target, events.EventAccountDeleted, events.AccountDeletedPayload{Role: target.Role})
	return nil
}

// OverridePermissions records an explicit permission table for an account.
// A nil table clears the override. Superadmin only.
func (s *AdminService) OverridePermissions(ctx context.Context, actor *domain.Account, targetID string, perms *domain.Permissions, reason *string) (*domain.Account, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthenticated("authentication required", false)
	}
	if !actor.IsSuperadmin() {
		return nil, apperrors.NewMissingRole([]string{string(domain.RoleSuperadmin)})
	}
	target, err := s.loadTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	next := *target.Clone()
	if perms == nil {
		next.PermissionOverride = nil
	} else {
		next.PermissionOverride = &domain.PermissionOverride{
			Permissions: *perms,
			SetBy:       actor.ID,
			SetAt:       now,
			Reason:      reason,
		}
	}
	next.UpdatedAt = now

	if err := s.accounts.Update(ctx, &next); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("account", map[string]any{"id": targetID})
		}
		return nil, apperrors.MapError(err)
	}

	granted := make([]string, 0, len(domain.AllPermissions))
	for _, perm := range next.Permissions().Granted() {
		granted = append(granted, string(perm))
	}
	details := map[string]any{"target_id": target.ID, "cleared": perms == nil, "granted": granted}
	if reason != nil {
		details["reason"] = *reason
	}
	if err := s.record(ctx, AuditRecord{
		Level:   domain.AuditLevelWarning,
		Message: "permission override changed",
		ActorID: &actor.ID,
		Action:  domain.AuditActionPermissionOverride,
		Details: details,
	}); err != nil {
		return nil, err
	}
	return &next, nil
}

// ListAccounts pages through accounts for administrators.
func (s *AdminService) ListAccounts(ctx context.Context, actor *domain.Account, filter repository.AccountFilter) ([]domain.Account, error) {
	if err := requirePermission(actor, domain.PermManageUsers); err != nil {
		return nil, err
	}
	accounts, err := s.accounts.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return accounts, nil
}

// ListAuditLogs returns audit entries newest-first.
func (s *AdminService) ListAuditLogs(ctx context.Context, actor *domain.Account, filter repository.AuditFilter) ([]domain.AuditEntry, error) {
	if err := requirePermission(actor, domain.PermViewAnalytics); err != nil {
		return nil, err
	}
	if err := requirePermission(actor, domain.PermManageUsers); err != nil {
		return nil, err
	}
	entries, err := s.audit.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// EnsureSuperadmin seeds the bootstrap superadmin when it does not exist yet.
// It reports whether an account was created.
func (s *AdminService) EnsureSuperadmin(ctx context.Context, seed BootstrapAccount) (*domain.Account, bool, error) {
	email := domain.NormalizeEmail(seed.Email)
	existing, err := s.accounts.GetByEmail(ctx, email)
	if err == nil {
		if !existing.IsSuperadmin() {
			return nil, false, apperrors.NewConflict("bootstrap email belongs to a non-superadmin account",
				map[string]any{"email": email, "role": string(existing.Role)})
		}
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, apperrors.MapError(err)
	}

	params := domain.NewAccountParams{
		Name:  seed.Name,
		Email: email,
		Role:  domain.RoleSuperadmin,
	}
	var account *domain.Account
	if seed.PasswordHash != "" {
		account, err = s.creator.createAccountWithPrehashedCredential(ctx, params, seed.PasswordHash)
	} else {
		account, err = s.creator.createAccountWithPlaintext(ctx, params, seed.Password)
	}
	if err != nil {
		return nil, false, err
	}

	if err := s.record(ctx, AuditRecord{
		Level:   domain.AuditLevelInfo,
		Message: "bootstrap superadmin created",
		Action:  domain.AuditActionBootstrap,
		Details: map[string]any{"account_id": account.ID, "email": account.Email},
	}); err != nil {
		s.logger.Warn("audit write failed", zap.String("action", string(domain.AuditActionBootstrap)), zap.Error(err))
	}
	return account, true, nil
}

func (s *AdminService) loadTarget(ctx context.Context, targetID string) (*domain.Account, error) {
	target, err := s.accounts.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("account", map[string]any{"id": targetID})
		}
		return nil, apperrors.MapError(err)
	}
	return target, nil
}

// record writes an audit entry whose failure fails the calling operation.
func (s *AdminService) record(ctx context.Context, rec AuditRecord) error {
	if s.audit == nil {
		return apperrors.NewInternalError(errors.New("audit sink not configured"))
	}
	if err := s.audit.Record(ctx, rec); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

func (s *AdminService) publish(ctx context.Context, actor, account *domain.Account, eventType events.EventType, payload interface{}) {
	publishEvent(ctx, s.dispatcher, s.logger, s.now, events.Event{
		Type:      eventType,
		AccountID: account.ID,
		Email:     account.Email,
		ActorID:   &actor.ID,
		Payload:   payload,
	})
}
