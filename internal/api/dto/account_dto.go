package dto

import (
	"time"

	"github.com/spec-kit/marketplace-auth/internal/auth"
	"github.com/spec-kit/marketplace-auth/internal/domain"
)

// RegisterRequest payload for self-service registration.
type RegisterRequest struct {
	Name         string               `json:"name"`
	Email        string               `json:"email"`
	Password     string               `json:"password"`
	Role         string               `json:"role"`
	StoreDetails *StoreDetailsRequest `json:"storeDetails"`
}

// StoreDetailsRequest is the vendor store profile.
type StoreDetailsRequest struct {
	StoreName   string `json:"storeName"`
	Description string `json:"description"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	Logo        string `json:"logo"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// RefreshRequest payload for token rotation.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ProfileUpdateRequest is a partial profile change.
type ProfileUpdateRequest struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	CurrentPassword *string `json:"currentPassword"`
	NewPassword     *string `json:"newPassword"`
	Status          *string `json:"status"`
	StatusReason    *string `json:"statusReason"`
}

// TokenResponse is the token bundle returned to clients.
type TokenResponse struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	TokenType        string    `json:"tokenType"`
	ExpiresAt        time.Time `json:"expiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// StoreResponse is the public view of a vendor store.
type StoreResponse struct {
	StoreName   string `json:"storeName"`
	Description string `json:"description"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	Logo        string `json:"logo,omitempty"`
	Active      bool   `json:"active"`
}

// StatusChangeResponse is one status history entry.
type StatusChangeResponse struct {
	Status  string    `json:"status"`
	At      time.Time `json:"at"`
	Reason  *string   `json:"reason,omitempty"`
	ActorID *string   `json:"actorId,omitempty"`
}

// AccountResponse is the public view of an account. It never carries the
// password credential.
type AccountResponse struct {
	ID                 string                 `json:"id"`
	Name               string                 `json:"name"`
	Email              string                 `json:"email"`
	Role               string                 `json:"role"`
	Status             string                 `json:"status"`
	Permissions        domain.Permissions     `json:"permissions"`
	PermissionOverride bool                   `json:"permissionOverride"`
	Store              *StoreResponse         `json:"store,omitempty"`
	StatusHistory      []StatusChangeResponse `json:"statusHistory,omitempty"`
	LastLoginAt        *time.Time             `json:"lastLoginAt,omitempty"`
	CreatedAt          time.Time              `json:"createdAt"`
	UpdatedAt          time.Time              `json:"updatedAt"`
}

// NewTokenResponse maps an issued pair.
func NewTokenResponse(pair auth.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        "Bearer",
		ExpiresAt:        pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
}

// NewAccountResponse maps a domain account.
func NewAccountResponse(account *domain.Account) AccountResponse {
	resp := AccountResponse{
		ID:                 account.ID,
		Name:               account.Name,
		Email:              account.Email,
		Role:               string(account.Role),
		Status:             string(account.Status),
		Permissions:        account.Permissions(),
		PermissionOverride: account.PermissionOverride != nil,
		LastLoginAt:        account.LastLoginAt,
		CreatedAt:          account.CreatedAt,
		UpdatedAt:          account.UpdatedAt,
	}
	if store := account.Store; store != nil {
		resp.Store = &StoreResponse{
			StoreName:   store.StoreName,
			Description: store.Description,
			Address:     store.Address,
			Phone:       store.Phone,
			Logo:        store.Logo,
			Active:      store.Active,
		}
	}
	for _, change := range account.StatusHistory {
		resp.StatusHistory = append(resp.StatusHistory, StatusChangeResponse{
			Status:  string(change.Status),
			At:      change.At,
			Reason:  change.Reason,
			ActorID: change.ActorID,
		})
	}
	return resp
}

// NewAccountResponses maps a page of accounts.
func NewAccountResponses(accounts []domain.Account) []AccountResponse {
	out := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		out = append(out, NewAccountResponse(&accounts[i]))
	}
	return out
}
