package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validStore() *StoreProfile {
	return &StoreProfile{
		StoreName:   "Acme",
		Description: "Neighbourhood pharmacy",
		Address:     "1 Main St",
		Phone:       "+1-555-0100",
	}
}

func TestPermissionsForRole(t *testing.T) {
	t.Run("Should grant nothing to customers", func(t *testing.T) {
		assert.Equal(t, Permissions{}, PermissionsForRole(RoleCustomer))
	})
	t.Run("Should grant catalog and order capabilities to vendors", func(t *testing.T) {
		assert.Equal(t, Permissions{
			ManageProducts: true,
			ManageOrders:   true,
			ViewAnalytics:  true,
		}, PermissionsForRole(RoleVendor))
	})
	t.Run("Should grant everything except promote and permissions to admins", func(t *testing.T) {
		perms := PermissionsForRole(RoleAdmin)
		assert.Equal(t, Permissions{
			ManageUsers:    true,
			ManageProducts: true,
			ManageOrders:   true,
			ManageSettings: true,
			ViewAnalytics:  true,
		}, perms)
		assert.False(t, perms.Has(PermPromoteUsers))
		assert.False(t, perms.Has(PermManagePermissions))
	})
	t.Run("Should grant every capability to superadmins", func(t *testing.T) {
		perms := PermissionsForRole(RoleSuperadmin)
		assert.Equal(t, AllPermissions, perms.Granted())
	})
	t.Run("Should grant nothing to unknown roles", func(t *testing.T) {
		assert.Empty(t, PermissionsForRole(Role("root")).Granted())
	})
}

func TestNewAccount(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("Should default vendors to pending with a history entry", func(t *testing.T) {
		acct, err := NewAccount(NewAccountParams{
			ID:    "v1",
			Name:  " Acme Pharmacy ",
			Email: " ACME@X.com",
			Role:  RoleVendor,
			Store: validStore(),
			Now:   now,
		})
		require.NoError(t, err)
		assert.Equal(t, "Acme Pharmacy", acct.Name)
		assert.Equal(t, "acme@x.com", acct.Email)
		assert.Equal(t, AccountStatusPending, acct.Status)
		require.Len(t, acct.StatusHistory, 1)
		assert.Equal(t, AccountStatusPending, acct.StatusHistory[0].Status)
		assert.False(t, acct.Store.Active)
	})
	t.Run("Should default customers to active and drop store details", func(t *testing.T) {
		acct, err := NewAccount(NewAccountParams{ID: "c1", Name: "Cus", Email: "c@x.com", Role: RoleCustomer, Store: validStore(), Now: now})
		require.NoError(t, err)
		assert.Equal(t, AccountStatusActive, acct.Status)
		assert.Nil(t, acct.Store)
	})
	t.Run("Should reject vendors without a complete store profile", func(t *testing.T) {
		store := validStore()
		store.Phone = "  "
		_, err := NewAccount(NewAccountParams{ID: "v2", Name: "Vee", Email: "v@x.com", Role: RoleVendor, Store: store, Now: now})
		assert.ErrorIs(t, err, ErrStoreProfileRequired)

		_, err = NewAccount(NewAccountParams{ID: "v3", Name: "Vee", Email: "v@x.com", Role: RoleVendor, Now: now})
		assert.ErrorIs(t, err, ErrStoreProfileRequired)
	})
	t.Run("Should reject unknown roles", func(t *testing.T) {
		_, err := NewAccount(NewAccountParams{ID: "x", Role: Role("owner"), Now: now})
		assert.ErrorIs(t, err, ErrInvalidRole)
	})
}

func TestApplyStatusChange(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	acct, err := NewAccount(NewAccountParams{ID: "v1", Name: "Acme", Email: "a@x.com", Role: RoleVendor, Store: validStore(), Now: t0})
	require.NoError(t, err)

	reason := "documents verified"
	actor := "admin-1"
	t1 := t0.Add(time.Hour)
	next, entry := ApplyStatusChange(*acct, AccountStatusActive, &reason, &actor, t1)

	t.Run("Should prepend exactly one entry", func(t *testing.T) {
		require.Len(t, next.StatusHistory, 2)
		assert.Equal(t, entry, next.StatusHistory[0])
		assert.Equal(t, AccountStatusActive, next.StatusHistory[0].Status)
		assert.Equal(t, AccountStatusPending, next.StatusHistory[1].Status)
		assert.Equal(t, "documents verified", *entry.Reason)
		assert.Equal(t, "admin-1", *entry.ActorID)
		assert.Equal(t, t1, next.UpdatedAt)
	})
	t.Run("Should leave the input untouched", func(t *testing.T) {
		assert.Equal(t, AccountStatusPending, acct.Status)
		assert.Len(t, acct.StatusHistory, 1)
	})
	t.Run("Should copy reason and actor", func(t *testing.T) {
		reason = "changed"
		assert.Equal(t, "documents verified", *next.StatusHistory[0].Reason)
	})
}

func TestChangeRole(t *testing.T) {
	now := time.Now()
	vendor, err := NewAccount(NewAccountParams{ID: "v1", Name: "Acme", Email: "a@x.com", Role: RoleVendor, Store: validStore(), Now: now})
	require.NoError(t, err)
	vendor.PermissionOverride = &PermissionOverride{Permissions: Permissions{ManageUsers: true}, SetBy: "root"}

	t.Run("Should drop the store profile and override when promoted", func(t *testing.T) {
		next, err := ChangeRole(*vendor, RoleAdmin, now)
		require.NoError(t, err)
		assert.Nil(t, next.Store)
		assert.Nil(t, next.PermissionOverride)
		assert.Equal(t, PermissionsForRole(RoleAdmin), next.Permissions())
		assert.NotNil(t, vendor.Store)
	})
	t.Run("Should require a store profile to become a vendor", func(t *testing.T) {
		customer, err := NewAccount(NewAccountParams{ID: "c1", Name: "Cus", Email: "c@x.com", Role: RoleCustomer, Now: now})
		require.NoError(t, err)
		_, err = ChangeRole(*customer, RoleVendor, now)
		assert.ErrorIs(t, err, ErrStoreProfileRequired)
	})
}

func TestAccountPermissions(t *testing.T) {
	acct := &Account{Role: RoleCustomer}
	assert.False(t, acct.Permissions().Has(PermManageUsers))

	acct.PermissionOverride = &PermissionOverride{Permissions: Permissions{ViewAnalytics: true}, SetBy: "root"}
	assert.True(t, acct.Permissions().Has(PermViewAnalytics))
	assert.Equal(t, []Permission{PermViewAnalytics}, acct.Permissions().Granted())
}

func TestAccountClone(t *testing.T) {
	at := time.Now()
	acct := &Account{ID: "v1", Role: RoleVendor, Store: validStore(), LastLoginAt: &at,
		StatusHistory: []StatusChange{{Status: AccountStatusPending, At: at}}}
	clone := acct.Clone()
	clone.Store.Active = true
	clone.StatusHistory[0].Status = AccountStatusActive

	assert.False(t, acct.Store.Active)
	assert.Equal(t, AccountStatusPending, acct.StatusHistory[0].Status)
	assert.Nil(t, (*Account)(nil).Clone())
}

func TestValidPermission(t *testing.T) {
	assert.True(t, ValidPermission("manage-users"))
	assert.False(t, ValidPermission("manage-everything"))
}
