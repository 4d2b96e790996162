package repo

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hushbox/service-api/internal/account/entity"
)

// ErrDuplicate reports a unique-constraint violation on username or
// email. The service layer maps it to its Conflict sentinel.
var ErrDuplicate = errors.New("duplicate username or email")

// AccountRepo provides data access for the accounts table using sqlx.
type AccountRepo struct {
	db *sqlx.DB
}

func NewAccountRepo(db *sqlx.DB) *AccountRepo { return &AccountRepo{db: db} }

// EnsureTable creates the accounts table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *AccountRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE EXTENSION IF NOT EXISTS citext;
CREATE TABLE IF NOT EXISTS accounts (
  id BIGSERIAL PRIMARY KEY,
  username TEXT UNIQUE NOT NULL,
  email CITEXT UNIQUE NOT NULL,
  password_hash TEXT NOT NULL,
  verify_code TEXT NOT NULL,
  verify_code_expiry TIMESTAMPTZ NOT NULL,
  verified BOOLEAN NOT NULL DEFAULT false,
  accepting_messages BOOLEAN NOT NULL DEFAULT true,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_accounts_email ON accounts(email);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new account row and returns its id. A unique
// violation on username or email comes back as ErrDuplicate.
func (r *AccountRepo) Create(ctx context.Context, a *entity.Account) (int64, error) {
	const q = `INSERT INTO accounts (username,email,password_hash,verify_code,verify_code_expiry,verified,accepting_messages)
		VALUES (:username,:email,:password_hash,:verify_code,:verify_code_expiry,:verified,:accepting_messages) RETURNING id`
	stmt, err := r.db.NamedQueryContext(ctx, q, a)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	defer stmt.Close()
	if stmt.Next() {
		if err := stmt.Scan(&a.ID); err != nil {
			return 0, err
		}
		return a.ID, nil
	}
	return 0, errors.New("no id returned")
}

const accountColumns = `id, username, email, password_hash, verify_code, verify_code_expiry,
	verified, accepting_messages, created_at, updated_at`

// GetByUsername fetches by username or sql.ErrNoRows.
func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (*entity.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE username=$1`
	var row entity.Account
	if err := r.db.GetContext(ctx, &row, q, username); err != nil {
		return nil, err
	}
	return &row, nil
}

// GetByEmail fetches by email (case-insensitive due to citext) or sql.ErrNoRows.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*entity.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE email=$1`
	var row entity.Account
	if err := r.db.GetContext(ctx, &row, q, email); err != nil {
		return nil, err
	}
	return &row, nil
}

// GetByID fetches by id or sql.ErrNoRows.
func (r *AccountRepo) GetByID(ctx context.Context, id int64) (*entity.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE id=$1`
	var row entity.Account
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		return nil, err
	}
	return &row, nil
}

// SetVerified marks the account verified. Idempotent.
func (r *AccountRepo) SetVerified(ctx context.Context, id int64) error {
	const q = `UPDATE accounts SET verified=true, updated_at=NOW() WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// SetAcceptingMessages sets the acceptance flag. Idempotent.
func (r *AccountRepo) SetAcceptingMessages(ctx context.Context, id int64, value bool) error {
	const q = `UPDATE accounts SET accepting_messages=$2, updated_at=NOW() WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id, value)
	return err
}
