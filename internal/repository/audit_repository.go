package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/spec-kit/marketplace-auth/internal/domain"
)

// AuditFilter narrows audit log queries.
type AuditFilter struct {
	Level   *domain.AuditLevel
	ActorID *string
	Action  *domain.AuditAction
	Limit   int
	Offset  int
}

// AuditRepository stores append-only audit entries.
type AuditRepository interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	List(ctx context.Context, filter AuditFilter) ([]domain.AuditEntry, error)
}

type auditRow struct {
	ID        string    `db:"id"`
	Level     string    `db:"level"`
	Message   string    `db:"message"`
	ActorID   *string   `db:"actor_id"`
	Action    *string   `db:"action"`
	Details   []byte    `db:"details"`
	CreatedAt time.Time `db:"created_at"`
}

type auditRepository struct {
	db DBTX
}

// NewAuditRepository builds repository.
func NewAuditRepository(db DBTX) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	const query = `
        INSERT INTO audit_logs (id, level, message, actor_id, action, details, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`

	var details []byte
	if len(entry.Details) > 0 {
		var err error
		if details, err = json.Marshal(entry.Details); err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
	}
	var action *string
	if entry.Action != nil {
		tag := string(*entry.Action)
		action = &tag
	}
	_, err := r.db.Exec(ctx, query,
		entry.ID,
		string(entry.Level),
		entry.Message,
		entry.ActorID,
		action,
		details,
		entry.CreatedAt,
	)
	return err
}

func (r *auditRepository) List(ctx context.Context, filter AuditFilter) ([]domain.AuditEntry, error) {
	limit, offset := normalizePage(filter.Limit, filter.Offset)
	builder := sq.Select("id", "level", "message", "actor_id", "action", "details", "created_at").
		From("audit_logs").
		OrderBy("created_at DESC", "id DESC").
		Limit(limit).
		Offset(offset).
		PlaceholderFormat(sq.Dollar)
	if filter.Level != nil {
		builder = builder.Where(sq.Eq{"level": string(*filter.Level)})
	}
	if filter.ActorID != nil {
		builder = builder.Where(sq.Eq{"actor_id": *filter.ActorID})
	}
	if filter.Action != nil {
		builder = builder.Where(sq.Eq{"action": string(*filter.Action)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audit list query: %w", err)
	}

	var rows []auditRow
	if err := pgxscan.Select(ctx, r.db, &rows, query, args...); err != nil {
		return nil, err
	}
	result := make([]domain.AuditEntry, 0, len(rows))
	for _, row := range rows {
		entry := domain.AuditEntry{
			ID:        row.ID,
			Level:     domain.AuditLevel(row.Level),
			Message:   row.Message,
			ActorID:   row.ActorID,
			CreatedAt: row.CreatedAt,
		}
		if row.Action != nil {
			action := domain.AuditAction(*row.Action)
			entry.Action = &action
		}
		if len(row.Details) > 0 {
			if err := json.Unmarshal(row.Details, &entry.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		result = append(result, entry)
	}
	return result, nil
}

type memoryAuditRepository struct {
	mu      sync.RWMutex
	entries []domain.AuditEntry
}

// NewMemoryAuditRepository returns a process-local audit sink.
func NewMemoryAuditRepository() AuditRepository {
	return &memoryAuditRepository{}
}

func (r *memoryAuditRepository) Append(_ context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memoryAuditRepository) List(_ context.Context, filter AuditFilter) ([]domain.AuditEntry, error) {
	r.mu.RLock()
	matched := make([]domain.AuditEntry, 0, len(r.entries))
	for i := len(r.entries) - 1; i >= 0; i-- {
		entry := r.entries[i]
		if filter.Level != nil && entry.Level != *filter.Level {
			continue
		}
		if filter.ActorID != nil && (entry.ActorID == nil || *entry.ActorID != *filter.ActorID) {
			continue
		}
		if filter.Action != nil && (entry.Action == nil || *entry.Action != *filter.Action) {
			continue
		}
		matched = append(matched, entry)
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, filter.Limit, filter.Offset), nil
}
