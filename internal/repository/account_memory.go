package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/marketplace-auth/internal/domain"
)

type memoryAccountRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.Account
	byEmail map[string]string
}

// NewMemoryAccountRepository returns a process-local implementation used when
// no database is configured.
func NewMemoryAccountRepository() AccountRepository {
	return &memoryAccountRepository{
		byID:    make(map[string]*domain.Account),
		byEmail: make(map[string]string),
	}
}

func (r *memoryAccountRepository) Create(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := domain.NormalizeEmail(account.Email)
	if _, exists := r.byEmail[email]; exists {
		return ErrDuplicateEmail
	}
	r.byID[account.ID] = account.Clone()
	r.byEmail[email] = account.ID
	return nil
}

func (r *memoryAccountRepository) Update(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[account.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	oldEmail := domain.NormalizeEmail(current.Email)
	newEmail := domain.NormalizeEmail(account.Email)
	if oldEmail != newEmail {
		if _, exists := r.byEmail[newEmail]; exists {
			return ErrDuplicateEmail
		}
		delete(r.byEmail, oldEmail)
		r.byEmail[newEmail] = account.ID
	}
	next := account.Clone()
	next.LastLoginAt = current.LastLoginAt
	next.CreatedAt = current.CreatedAt
	r.byID[account.ID] = next
	return nil
}

func (r *memoryAccountRepository) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return account.Clone(), nil
}

func (r *memoryAccountRepository) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return r.byID[id].Clone(), nil
}

func (r *memoryAccountRepository) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	account.LastLoginAt = &at
	return nil
}

func (r *memoryAccountRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	delete(r.byEmail, domain.NormalizeEmail(account.Email))
	delete(r.byID, id)
	return nil
}

func (r *memoryAccountRepository) List(_ context.Context, filter AccountFilter) ([]domain.Account, error) {
	r.mu.RLock()
	matched := make([]domain.Account, 0, len(r.byID))
	for _, account := range r.byID {
		if filter.Role != nil && account.Role != *filter.Role {
			continue
		}
		if filter.Status != nil && account.Status != *filter.Status {
			continue
		}
		matched = append(matched, *account.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, filter.Limit, filter.Offset), nil
}

func paginate[T any](items []T, limit, offset int) []T {
	l, o := normalizePage(limit, offset)
	if o >= uint64(len(items)) {
		return []T{}
	}
	end := o + l
	if end > uint64(len(items)) {
		end = uint64(len(items))
	}
	return items[o:end]
}
