package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-auth/internal/auth"
	"github.com/spec-kit/marketplace-auth/internal/config"
	"github.com/spec-kit/marketplace-auth/internal/domain"
	"github.com/spec-kit/marketplace-auth/internal/events"
	"github.com/spec-kit/marketplace-auth/internal/observability"
	"github.com/spec-kit/marketplace-auth/internal/repository"
	apperrors "github.com/spec-kit/marketplace-auth/pkg/util/errorutil"
)

var (
	// ErrAccountNotFound is the internal cause of a login for an unknown email.
	ErrAccountNotFound = errors.New("account not found")
	// ErrPasswordMismatch is the internal cause of a login with a wrong password.
	ErrPasswordMismatch = errors.New("password mismatch")
)

// StoreDetailsInput carries the vendor store profile at registration.
type StoreDetailsInput struct {
	StoreName   string `json:"storeName" validate:"required"`
	Description string `json:"description" validate:"required"`
	Address     string `json:"address" validate:"required"`
	Phone       string `json:"phone" validate:"required"`
	Logo        string `json:"logo"`
}

// RegisterInput is the self-service registration payload.
type RegisterInput struct {
	Name         string             `json:"name" validate:"required,min=2"`
	Email        string             `json:"email" validate:"required,email"`
	Password     string             `json:"password" validate:"required,min=6"`
	Role         string             `json:"role" validate:"required,oneof=customer vendor"`
	StoreDetails *StoreDetailsInput `json:"storeDetails"`
}

// LoginInput carries credentials and an optional expected role.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=customer vendor admin superadmin"`
}

// ProfileUpdate is a partial self-service update.
type ProfileUpdate struct {
	Name            *string               `json:"name" validate:"omitempty,min=2"`
	Email           *string               `json:"email" validate:"omitempty,email"`
	CurrentPassword *string               `json:"currentPassword"`
	NewPassword     *string               `json:"newPassword" validate:"omitempty,min=6"`
	Status          *domain.AccountStatus `json:"status"`
	StatusReason    *string               `json:"statusReason"`
}

// AuthResult is returned by successful registration and login.
type AuthResult struct {
	Account *domain.Account
	Tokens  auth.TokenPair
}

// AuthService coordinates registration, login, refresh and profile flows.
type AuthService struct {
	accounts   repository.AccountRepository
	refresh    repository.RefreshTokenRepository
	audit      *AuditService
	tokenMgr   *auth.TokenManager
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	bcryptCost int
	now        func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	AccountRepo      repository.AccountRepository
	RefreshTokenRepo repository.RefreshTokenRepository
	Audit            *AuditService
	Tokens           *auth.TokenManager
	Dispatcher       events.Dispatcher
	Metrics          *observability.Metrics
	Logger           *zap.Logger
	Clock            func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	s := &AuthService{
		accounts:   deps.AccountRepo,
		refresh:    deps.RefreshTokenRepo,
		audit:      deps.Audit,
		tokenMgr:   deps.Tokens,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		bcryptCost: cfg.Auth.BcryptCost,
		now:        deps.Clock,
	}
	if s.tokenMgr == nil {
		s.tokenMgr = auth.NewTokenManager(cfg.Auth.JWTSecret,
			auth.WithAccessTTL(cfg.Auth.AccessTTL()),
			auth.WithRefreshTTL(cfg.Auth.RefreshTTL()))
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Register creates a customer or vendor account and signs it in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = domain.NormalizeEmail(input.Email)
	input.Role = strings.ToLower(strings.TrimSpace(input.Role))
	if input.Role != string(domain.RoleVendor) {
		input.StoreDetails = nil
	}

	if err := validateStruct(input); err != nil {
		if input.Role == string(domain.RoleVendor) && input.StoreDetails == nil {
			addDetail(err, "storeDetails", "is required for vendor accounts")
		}
		return nil, err
	}
	if input.Role == string(domain.RoleVendor) && input.StoreDetails == nil {
		return nil, fieldError("storeDetails", "is required for vendor accounts")
	}

	if _, err := s.accounts.GetByEmail(ctx, input.Email); err == nil {
		return nil, apperrors.NewDuplicateEmail(input.Email)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	params := domain.NewAccountParams{
		Name:  input.Name,
		Email: input.Email,
		Role:  domain.Role(input.Role),
	}
	if store := input.StoreDetails; store != nil {
		params.Store = &domain.StoreProfile{
			StoreName:   strings.TrimSpace(store.StoreName),
			Description: strings.TrimSpace(store.Description),
			Address:     strings.TrimSpace(store.Address),
			Phone:       strings.TrimSpace(store.Phone),
			Logo:        strings.TrimSpace(store.Logo),
		}
	}

	account, err := s.createAccountWithPlaintext(ctx, params, input.Password)
	if err != nil {
		return nil, err
	}

	s.recordBestEffort(ctx, AuditRecord{
		Level:   domain.AuditLevelInfo,
		Message: "account registered",
		ActorID: &account.ID,
		Action:  domain.AuditActionRegister,
		Details: map[string]any{"role": string(account.Role), "status": string(account.Status)},
	})

	tokens, err := s.issueSession(ctx, account)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordRegistration(string(account.Role))
	s.publish(ctx, events.Event{
		Type:      events.EventAccountRegistered,
		AccountID: account.ID,
		Email:     account.Email,
		Payload:   events.AccountRegisteredPayload{Role: account.Role, Status: account.Status},
	})
	return &AuthResult{Account: account, Tokens: tokens}, nil
}

// Login authenticates credentials, applies role and vendor gates and issues tokens.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	input.Email = domain.NormalizeEmail(input.Email)
	input.Role = strings.ToLower(strings.TrimSpace(input.Role))
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByEmail(ctx, input.Email)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.MapError(err)
		}
		auth.EqualizeTiming(input.Password)
		s.recordBestEffort(ctx, AuditRecord{
			Level:   domain.AuditLevelWarning,
			Message: "login failed: unknown email",
			Action:  domain.AuditActionLoginFailed,
			Details: map[string]any{"email": input.Email},
		})
		s.metrics.RecordLogin(observability.LoginRejected)
		return nil, apperrors.NewInvalidCredentials(ErrAccountNotFound)
	}

	if input.Role != "" && !roleMatches(domain.Role(input.Role), account.Role) {
		s.metrics.RecordLogin(observability.LoginGated)
		return nil, apperrors.NewRoleMismatch(input.Role)
	}

	if !auth.VerifyPassword(input.Password, account.PasswordHash) {
		s.recordBestEffort(ctx, AuditRecord{
			Level:   domain.AuditLevelWarning,
			Message: "login failed: wrong password",
			ActorID: &account.ID,
			Action:  domain.AuditActionLoginFailed,
			Details: map[string]any{"email": account.Email},
		})
		s.metrics.RecordLogin(observability.LoginRejected)
		return nil, apperrors.NewInvalidCredentials(ErrPasswordMismatch)
	}

	if account.Role == domain.RoleVendor {
		if account.Status != domain.AccountStatusActive {
			s.metrics.RecordLogin(observability.LoginGated)
			return nil, apperrors.NewVendorPendingApproval(string(account.Status))
		}
		if account.Store == nil || !account.Store.Active {
			s.metrics.RecordLogin(observability.LoginGated)
			return nil, apperrors.NewVendorStoreInactive()
		}
	}

	loginAt := s.now().UTC()
	if err := s.accounts.TouchLastLogin(ctx, account.ID, loginAt); err != nil {
		return nil, apperrors.MapError(err)
	}
	account.LastLoginAt = &loginAt

	tokens, err := s.issueSession(ctx, account)
	if err != nil {
		return nil, err
	}

	s.recordBestEffort(ctx, AuditRecord{
		Level:   domain.AuditLevelInfo,
		Message: "login succeeded",
		ActorID: &account.ID,
		Action:  domain.AuditActionLogin,
		Details: map[string]any{"role": string(account.Role)},
	})
	s.metrics.RecordLogin(observability.LoginSucceeded)
	return &AuthResult{Account: account, Tokens: tokens}, nil
}

// Refresh exchanges a single-use refresh token for a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	claims, err := s.tokenMgr.ParseRefreshToken(refreshToken)
	if err != nil {
		return auth.TokenPair{}, apperrors.NewTokenInvalid()
	}

	account, err := s.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.TokenPair{}, apperrors.NewTokenInvalid()
		}
		return auth.TokenPair{}, apperrors.MapError(err)
	}

	ok, err := s.refresh.Consume(ctx, account.ID, claims.Version)
	if err != nil {
		return auth.TokenPair{}, apperrors.MapError(err)
	}
	if !ok {
		return auth.TokenPair{}, apperrors.NewTokenInvalid()
	}

	return s.issueSession(ctx, account)
}

// GetProfile returns the current state of the caller's account.
func (s *AuthService) GetProfile(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("account", map[string]any{"id": accountID})
		}
		return nil, apperrors.MapError(err)
	}
	return account, nil
}

// UpdateProfile applies a partial self-service update.
func (s *AuthService) UpdateProfile(ctx context.Context, accountID string, upd ProfileUpdate) (*domain.Account, error) {
	if upd.Name != nil {
		trimmed := strings.TrimSpace(*upd.Name)
		upd.Name = &trimmed
	}
	if upd.Email != nil {
		normalized := domain.NormalizeEmail(*upd.Email)
		upd.Email = &normalized
	}
	if err := validateStruct(upd); err != nil {
		return nil, err
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, fieldError("status", "must be one of: active, inactive, suspended, pending")
	}

	account, err := s.GetProfile(ctx, accountID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	changed := make([]string, 0, 4)

	if upd.Name != nil && *upd.Name != account.Name {
		account.Name = *upd.Name
		changed = append(changed, "name")
	}

	if upd.Email != nil && *upd.Email != account.Email {
		if _, err := s.accounts.GetByEmail(ctx, *upd.Email); err == nil {
			return nil, apperrors.NewDuplicateEmail(*upd.Email)
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.MapError(err)
		}
		account.Email = *upd.Email
		changed = append(changed, "email")
	}

	if upd.NewPassword != nil {
		if upd.CurrentPassword == nil || !auth.VerifyPassword(*upd.CurrentPassword, account.PasswordHash) {
			return nil, fieldError("currentPassword", "is incorrect")
		}
		hash, err := auth.HashPlaintext(*upd.NewPassword, s.bcryptCost)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		account.PasswordHash = hash
		changed = append(changed, "password")
	}

	var statusChange *events.AccountStatusChangedPayload
	if upd.Status != nil && *upd.Status != account.Status {
		if !selfServiceStatus(account.Status) || !selfServiceStatus(*upd.Status) {
			return nil, apperrors.NewForbidden("status can only be toggled between active and inactive")
		}
		statusChange = &events.AccountStatusChangedPayload{
			Role:      account.Role,
			OldStatus: account.Status,
			NewStatus: *upd.Status,
			Reason:    upd.StatusReason,
		}
		next, _ := domain.ApplyStatusChange(*account, *upd.Status, upd.StatusReason, &account.ID, now)
		account = &next
		changed = append(changed, "status")
	}

	if len(changed) == 0 {
		return account, nil
	}
	account.UpdatedAt = now

	if err := s.saveAccount(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.NewDuplicateEmail(account.Email)
		}
		return nil, apperrors.MapError(err)
	}

	s.recordBestEffort(ctx, AuditRecord{
		Level:   domain.AuditLevelInfo,
		Message: "profile updated",
		ActorID: &account.ID,
		Action:  domain.AuditActionProfileUpdate,
		Details: map[string]any{"fields": changed},
	})
	if statusChange != nil {
		s.publish(ctx, events.Event{
			Type:      events.EventAccountStatusChanged,
			AccountID: account.ID,
			Email:     account.Email,
			ActorID:   &account.ID,
			Payload:   *statusChange,
		})
	}
	return account, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) createAccountWithPlaintext(ctx context.Context, params domain.NewAccountParams, plaintext string) (*domain.Account, error) {
	hash, err := auth.HashPlaintext(plaintext, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	params.PasswordHash = hash
	return s.createAccount(ctx, params)
}

func (s *AuthService) createAccountWithPrehashedCredential(ctx context.Context, params domain.NewAccountParams, credential string) (*domain.Account, error) {
	if !auth.IsHashed(credential) {
		return nil, fieldError("password_hash", "must be a bcrypt hash")
	}
	params.PasswordHash = credential
	return s.createAccount(ctx, params)
}

func (s *AuthService) createAccount(ctx context.Context, params domain.NewAccountParams) (*domain.Account, error) {
	params.ID = uuid.NewString()
	params.Now = s.now().UTC()
	account, err := domain.NewAccount(params)
	if err != nil {
		return nil, domainValidationError(err)
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.NewDuplicateEmail(account.Email)
		}
		return nil, apperrors.MapError(err)
	}
	return account, nil
}

// saveAccount persists a partially updated account. The stored credential
// goes through HashPassword, which leaves bcrypt values as they are.
func (s *AuthService) saveAccount(ctx context.Context, account *domain.Account) error {
	hash, err := auth.HashPassword(account.PasswordHash, s.bcryptCost)
	if err != nil {
		return err
	}
	account.PasswordHash = hash
	return s.accounts.Update(ctx, account)
}

func (s *AuthService) issueSession(ctx context.Context, account *domain.Account) (auth.TokenPair, error) {
	tokens, err := s.tokenMgr.Issue(account.ID, account.Email, account.Role)
	if err != nil {
		return auth.TokenPair{}, apperrors.NewInternalError(err)
	}
	if err := s.refresh.Store(ctx, account.ID, tokens.RefreshVersion, s.tokenMgr.RefreshTTL()); err != nil {
		return auth.TokenPair{}, apperrors.NewInternalError(err)
	}
	return tokens, nil
}

func (s *AuthService) recordBestEffort(ctx context.Context, rec AuditRecord) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, rec); err != nil {
		s.logger.Warn("audit write failed",
			zap.String("action", string(rec.Action)),
			zap.Error(err))
	}
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	publishEvent(ctx, s.dispatcher, s.logger, s.now, event)
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, now func() time.Time, event events.Event) {
	if dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = now().UTC()
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event publish failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

// roleMatches applies the login role gate: an expected admin accepts
// superadmins, every other role must match exactly.
func roleMatches(expected, actual domain.Role) bool {
	if expected == domain.RoleAdmin {
		return actual == domain.RoleAdmin || actual == domain.RoleSuperadmin
	}
	return expected == actual
}

func selfServiceStatus(status domain.AccountStatus) bool {
	return status == domain.AccountStatusActive || status == domain.AccountStatusInactive
}

func domainValidationError(err error) error {
	switch {
	case errors.Is(err, domain.ErrStoreProfileRequired):
		return fieldError("storeDetails", err.Error())
	case errors.Is(err, domain.ErrStoreProfileNotAllowed):
		return fieldError("storeDetails", err.Error())
	case errors.Is(err, domain.ErrInvalidRole):
		return fieldError("role", err.Error())
	case errors.Is(err, domain.ErrInvalidStatus):
		return fieldError("status", err.Error())
	default:
		return apperrors.NewValidationError(err.Error(), nil)
	}
}

func addDetail(err error, field, message string) {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) && domainErr.Details != nil {
		domainErr.Details[field] = message
	}
}
