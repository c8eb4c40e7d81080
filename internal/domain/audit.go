package domain

import "time"

// AuditLevel is the severity of an audit entry.
type AuditLevel string

const (
	AuditLevelInfo    AuditLevel = "info"
	AuditLevelWarning AuditLevel = "warning"
	AuditLevelError   AuditLevel = "error"
)

// AuditAction tags the kind of security event recorded.
type AuditAction string

const (
	AuditActionRegister           AuditAction = "account.register"
	AuditActionLogin              AuditAction = "account.login"
	AuditActionLoginFailed        AuditAction = "account.login_failed"
	AuditActionProfileUpdate      AuditAction = "account.profile_update"
	AuditActionAdminUpdate        AuditAction = "admin.account_update"
	AuditActionAdminDelete        AuditAction = "admin.account_delete"
	AuditActionPermissionOverride AuditAction = "admin.permission_override"
	AuditActionBootstrap          AuditAction = "system.bootstrap_superadmin"
)

// AuditEntry is an immutable, append-only record of a security-relevant event.
type AuditEntry struct {
	ID        string
	Level     AuditLevel
	Message   string
	ActorID   *string
	Action    *AuditAction
	Details   map[string]any
	CreatedAt time.Time
}
