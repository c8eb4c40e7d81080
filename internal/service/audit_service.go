package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/marketplace-auth/internal/domain"
	"github.com/spec-kit/marketplace-auth/internal/repository"
)

// AuditRecord describes an entry to append.
type AuditRecord struct {
	Level   domain.AuditLevel
	Message string
	ActorID *string
	Action  domain.AuditAction
	Details map[string]any
}

// AuditService appends and queries the security audit log.
type AuditService struct {
	repo repository.AuditRepository
	now  func() time.Time
}

// NewAuditService constructs the service.
func NewAuditService(repo repository.AuditRepository, now func() time.Time) *AuditService {
	if now == nil {
		now = time.Now
	}
	return &AuditService{repo: repo, now: now}
}

// Record appends one entry stamped with the current time.
func (s *AuditService) Record(ctx context.Context, rec AuditRecord) error {
	entry := &domain.AuditEntry{
		ID:        uuid.NewString(),
		Level:     rec.Level,
		Message:   rec.Message,
		ActorID:   rec.ActorID,
		Details:   rec.Details,
		CreatedAt: s.now().UTC(),
	}
	if entry.Level == "" {
		entry.Level = domain.AuditLevelInfo
	}
	if rec.Action != "" {
		action := rec.Action
		entry.Action = &action
	}
	return s.repo.Append(ctx, entry)
}

// List returns entries newest-first.
func (s *AuditService) List(ctx context.Context, filter repository.AuditFilter) ([]domain.AuditEntry, error) {
	return s.repo.List(ctx, filter)
}
