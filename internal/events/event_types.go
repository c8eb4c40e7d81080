package events

import (
	"time"

	"github.com/spec-kit/marketplace-auth/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAccountRegistered    EventType = "account.registered"
	EventAccountStatusChanged EventType = "account.status_changed"
	EventAccountRoleChanged   EventType = "account.role_changed"
	EventAccountDeleted       EventType = "account.deleted"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	AccountID string      `json:"account_id"`
	Email     string      `json:"email"`
	ActorID   *string     `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// AccountRegisteredPayload payload.
type AccountRegisteredPayload struct {
	Role   domain.Role          `json:"role"`
	Status domain.AccountStatus `json:"status"`
}

// AccountStatusChangedPayload payload.
type AccountStatusChangedPayload struct {
	Role      domain.Role          `json:"role"`
	OldStatus domain.AccountStatus `json:"old_status"`
	NewStatus domain.AccountStatus `json:"new_status"`
	Reason    *string              `json:"reason,omitempty"`
}

// AccountRoleChangedPayload payload.
type AccountRoleChangedPayload struct {
	OldRole domain.Role `json:"old_role"`
	NewRole domain.Role `json:"new_role"`
}

// AccountDeletedPayload payload.
type AccountDeletedPayload struct {
	Role domain.Role `json:"role"`
}
