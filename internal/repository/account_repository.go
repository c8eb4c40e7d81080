package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/marketplace-auth/internal/domain"
)

// AccountFilter narrows account listings.
type AccountFilter struct {
	Role   *domain.Role
	Status *domain.AccountStatus
	Limit  int
	Offset int
}

// AccountRepository defines persistence access for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	Update(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter AccountFilter) ([]domain.Account, error)
}

const accountColumns = `id, name, email, password_hash, role, status, permission_override, store_profile, status_history, last_login_at, created_at, updated_at`

type accountRow struct {
	ID                 string     `db:"id"`
	Name               string     `db:"name"`
	Email              string     `db:"email"`
	PasswordHash       string     `db:"password_hash"`
	Role               string     `db:"role"`
	Status             string     `db:"status"`
	PermissionOverride []byte     `db:"permission_override"`
	StoreProfile       []byte     `db:"store_profile"`
	StatusHistory      []byte     `db:"status_history"`
	LastLoginAt        *time.Time `db:"last_login_at"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

type accountRepository struct {
	db DBTX
}

// NewAccountRepository returns a Postgres-backed implementation.
func NewAccountRepository(db DBTX) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	const query = `
        INSERT INTO accounts (id, name, email, password_hash, role, status, permission_override,
            store_profile, status_history, last_login_at, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	override, store, history, err := encodeAccountDocs(account)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, query,
		account.ID,
		account.Name,
		account.Email,
		account.PasswordHash,
		string(account.Role),
		string(account.Status),
		override,
		store,
		history,
		account.LastLoginAt,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *accountRepository) Update(ctx context.Context, account *domain.Account) error {
	const query = `
        UPDATE accounts SET name=$1, email=$2, password_hash=$3, role=$4, status=$5,
            permission_override=$6, store_profile=$7, status_history=$8, updated_at=$9
        WHERE id=$10`

	override, store, history, err := encodeAccountDocs(account)
	if err != nil {
		return err
	}
	cmd, err := r.db.Exec(ctx, query,
		account.Name,
		account.Email,
		account.PasswordHash,
		string(account.Role),
		string(account.Status),
		override,
		store,
		history,
		account.UpdatedAt,
		account.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	// the id column is uuid; anything else would surface as a cast error
	if uuid.Validate(id) != nil {
		return nil, pgx.ErrNoRows
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id=$1`
	return r.getOne(ctx, query, id)
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email)=lower($1)`
	return r.getOne(ctx, query, domain.NormalizeEmail(email))
}

func (r *accountRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE accounts SET last_login_at=$1 WHERE id=$2`
	cmd, err := r.db.Exec(ctx, query, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *accountRepository) Delete(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return pgx.ErrNoRows
	}
	const query = `DELETE FROM accounts WHERE id=$1`
	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *accountRepository) List(ctx context.Context, filter AccountFilter) ([]domain.Account, error) {
	limit, offset := normalizePage(filter.Limit, filter.Offset)
	builder := sq.Select(
		"id", "name", "email", "password_hash", "role", "status", "permission_override",
		"store_profile", "status_history", "last_login_at", "created_at", "updated_at",
	).
		From("accounts").
		OrderBy("created_at DESC", "id DESC").
		Limit(limit).
		Offset(offset).
		PlaceholderFormat(sq.Dollar)
	if filter.Role != nil {
		builder = builder.Where(sq.Eq{"role": string(*filter.Role)})
	}
	if filter.Status != nil {
		builder = builder.Where(sq.Eq{"status": string(*filter.Status)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build account list query: %w", err)
	}

	var rows []accountRow
	if err := pgxscan.Select(ctx, r.db, &rows, query, args...); err != nil {
		return nil, err
	}
	result := make([]domain.Account, 0, len(rows))
	for _, row := range rows {
		account, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, *account)
	}
	return result, nil
}

func (r *accountRepository) getOne(ctx context.Context, query string, arg string) (*domain.Account, error) {
	var row accountRow
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&row.ID,
		&row.Name,
		&row.Email,
		&row.PasswordHash,
		&row.Role,
		&row.Status,
		&row.PermissionOverride,
		&row.StoreProfile,
		&row.StatusHistory,
		&row.LastLoginAt,
		&row.CreatedAt,
		&row.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return row.toDomain()
}

func (row accountRow) toDomain() (*domain.Account, error) {
	account := &domain.Account{
		ID:           row.ID,
		Name:         row.Name,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		Role:         domain.Role(row.Role),
		Status:       domain.AccountStatus(row.Status),
		LastLoginAt:  row.LastLoginAt,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if len(row.PermissionOverride) > 0 {
		var override domain.PermissionOverride
		if err := json.Unmarshal(row.PermissionOverride, &override); err != nil {
			return nil, fmt.Errorf("decode permission override: %w", err)
		}
		account.PermissionOverride = &override
	}
	if len(row.StoreProfile) > 0 {
		var store domain.StoreProfile
		if err := json.Unmarshal(row.StoreProfile, &store); err != nil {
			return nil, fmt.Errorf("decode store profile: %w", err)
		}
		account.Store = &store
	}
	if len(row.StatusHistory) > 0 {
		if err := json.Unmarshal(row.StatusHistory, &account.StatusHistory); err != nil {
			return nil, fmt.Errorf("decode status history: %w", err)
		}
	}
	return account, nil
}

func encodeAccountDocs(account *domain.Account) (override, store, history []byte, err error) {
	if account.PermissionOverride != nil {
		if override, err = json.Marshal(account.PermissionOverride); err != nil {
			return nil, nil, nil, fmt.Errorf("encode permission override: %w", err)
		}
	}
	if account.Store != nil {
		if store, err = json.Marshal(account.Store); err != nil {
			return nil, nil, nil, fmt.Errorf("encode store profile: %w", err)
		}
	}
	entries := account.StatusHistory
	if entries == nil {
		entries = []domain.StatusChange{}
	}
	if history, err = json.Marshal(entries); err != nil {
		return nil, nil, nil, fmt.Errorf("encode status history: %w", err)
	}
	return override, store, history, nil
}
