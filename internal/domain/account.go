package domain

import (
	"errors"
	"strings"
	"time"
)

// Role is the actor class an account belongs to.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleVendor     Role = "vendor"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleVendor, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

// AccountStatus represents lifecycle states of an account.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusInactive  AccountStatus = "inactive"
	AccountStatusSuspended AccountStatus = "suspended"
	AccountStatusPending   AccountStatus = "pending"
)

// Valid reports whether s is a known status.
func (s AccountStatus) Valid() bool {
	switch s {
	case AccountStatusActive, AccountStatusInactive, AccountStatusSuspended, AccountStatusPending:
		return true
	}
	return false
}

// DefaultStatusForRole returns the status a freshly created account starts in.
func DefaultStatusForRole(role Role) AccountStatus {
	if role == RoleVendor {
		return AccountStatusPending
	}
	return AccountStatusActive
}

var (
	ErrStoreProfileRequired   = errors.New("vendor accounts require a complete store profile")
	ErrStoreProfileNotAllowed = errors.New("store profile is only allowed for vendor accounts")
	ErrInvalidRole            = errors.New("invalid role")
	ErrInvalidStatus          = errors.New("invalid status")
)

// StoreProfile holds vendor business details.
type StoreProfile struct {
	StoreName   string `json:"storeName"`
	Description string `json:"description"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	Logo        string `json:"logo,omitempty"`
	Active      bool   `json:"active"`
}

// Complete reports whether every required store field is non-empty.
func (p *StoreProfile) Complete() bool {
	if p == nil {
		return false
	}
	return strings.TrimSpace(p.StoreName) != "" &&
		strings.TrimSpace(p.Description) != "" &&
		strings.TrimSpace(p.Address) != "" &&
		strings.TrimSpace(p.Phone) != ""
}

// StatusChange is one entry of an account's status history.
type StatusChange struct {
	Status  AccountStatus `json:"status"`
	At      time.Time     `json:"at"`
	Reason  *string       `json:"reason,omitempty"`
	ActorID *string       `json:"actorId,omitempty"`
}

// Account is the identity record shared by every actor class.
type Account struct {
	ID                 string
	Name               string
	Email              string
	PasswordHash       string
	Role               Role
	Status             AccountStatus
	PermissionOverride *PermissionOverride
	Store              *StoreProfile
	StatusHistory      []StatusChange
	LastLoginAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewAccountParams carries the inputs for NewAccount.
type NewAccountParams struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Store        *StoreProfile
	Now          time.Time
}

// NewAccount builds an account with role-derived defaults and an initial
// history entry for its starting status.
func NewAccount(p NewAccountParams) (*Account, error) {
	if !p.Role.Valid() {
		return nil, ErrInvalidRole
	}
	acct := &Account{
		ID:           p.ID,
		Name:         strings.TrimSpace(p.Name),
		Email:        NormalizeEmail(p.Email),
		PasswordHash: p.PasswordHash,
		Role:         p.Role,
		CreatedAt:    p.Now,
		UpdatedAt:    p.Now,
	}
	if p.Role == RoleVendor && p.Store != nil {
		store := *p.Store
		acct.Store = &store
	}
	if err := acct.CheckInvariants(); err != nil {
		return nil, err
	}
	next, _ := ApplyStatusChange(*acct, DefaultStatusForRole(p.Role), nil, nil, p.Now)
	return &next, nil
}

// CheckInvariants validates the role/store profile relationship.
func (a *Account) CheckInvariants() error {
	if !a.Role.Valid() {
		return ErrInvalidRole
	}
	if a.Status != "" && !a.Status.Valid() {
		return ErrInvalidStatus
	}
	if a.Role == RoleVendor && !a.Store.Complete() {
		return ErrStoreProfileRequired
	}
	if a.Role != RoleVendor && a.Store != nil {
		return ErrStoreProfileNotAllowed
	}
	return nil
}

// Permissions returns the effective permission set. Role-derived unless a
// superadmin override has been recorded.
func (a *Account) Permissions() Permissions {
	if a.PermissionOverride != nil {
		return a.PermissionOverride.Permissions
	}
	return PermissionsForRole(a.Role)
}

// IsSuperadmin reports whether the account holds the superadmin role.
func (a *Account) IsSuperadmin() bool {
	return a != nil && a.Role == RoleSuperadmin
}

// ApplyStatusChange returns a copy of acct moved to status, with exactly one
// history entry prepended. acct itself is left untouched.
func ApplyStatusChange(acct Account, status AccountStatus, reason, actorID *string, at time.Time) (Account, StatusChange) {
	entry := StatusChange{
		Status:  status,
		At:      at,
		Reason:  cloneString(reason),
		ActorID: cloneString(actorID),
	}
	history := make([]StatusChange, 0, len(acct.StatusHistory)+1)
	history = append(history, entry)
	history = append(history, acct.StatusHistory...)

	acct.Status = status
	acct.StatusHistory = history
	acct.UpdatedAt = at
	return acct, entry
}

// ChangeRole returns a copy of acct moved to role. Any permission override
// is cleared and a store profile is dropped when leaving the vendor role.
func ChangeRole(acct Account, role Role, at time.Time) (Account, error) {
	if !role.Valid() {
		return acct, ErrInvalidRole
	}
	acct.Role = role
	acct.PermissionOverride = nil
	if role != RoleVendor {
		acct.Store = nil
	} else if !acct.Store.Complete() {
		return acct, ErrStoreProfileRequired
	}
	acct.UpdatedAt = at
	return acct, nil
}

// Clone returns a deep copy safe to mutate independently.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	if a.Store != nil {
		store := *a.Store
		out.Store = &store
	}
	if a.PermissionOverride != nil {
		override := *a.PermissionOverride
		out.PermissionOverride = &override
	}
	if a.LastLoginAt != nil {
		at := *a.LastLoginAt
		out.LastLoginAt = &at
	}
	out.StatusHistory = append([]StatusChange(nil), a.StatusHistory...)
	return &out
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
