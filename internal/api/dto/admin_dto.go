package dto

import (
	"time"

	"github.com/spec-kit/marketplace-auth/internal/domain"
)

// AccountUpdateRequest is an administrative status/role change.
type AccountUpdateRequest struct {
	Status      *string `json:"status"`
	Role        *string `json:"role"`
	Reason      *string `json:"reason"`
	StoreActive *bool   `json:"storeActive"`
}

// PromoteRequest payload for PUT /admin/promote/:id.
type PromoteRequest struct {
	Role   string  `json:"role"`
	Reason *string `json:"reason"`
}

// PermissionOverrideRequest sets or clears an explicit permission table.
type PermissionOverrideRequest struct {
	Permissions *domain.Permissions `json:"permissions"`
	Reason      *string             `json:"reason"`
}

// AuditEntryResponse is one audit log row.
type AuditEntryResponse struct {
	ID        string         `json:"id"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	ActorID   *string        `json:"actorId,omitempty"`
	Action    *string        `json:"action,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// NewAuditEntryResponses maps audit entries.
func NewAuditEntryResponses(entries []domain.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp := AuditEntryResponse{
			ID:        entry.ID,
			Level:     string(entry.Level),
			Message:   entry.Message,
			ActorID:   entry.ActorID,
			Details:   entry.Details,
			CreatedAt: entry.CreatedAt,
		}
		if entry.Action != nil {
			action := string(*entry.Action)
			resp.Action = &action
		}
		out = append(out, resp)
	}
	return out
}
