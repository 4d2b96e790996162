package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/hushbox/service-api/internal/mailbox/entity"
)

// MessageRepo provides data access for the messages table using sqlx.
type MessageRepo struct {
	db *sqlx.DB
}

func NewMessageRepo(db *sqlx.DB) *MessageRepo { return &MessageRepo{db: db} }

// EnsureTable creates the messages table if not exists (idempotent).
func (r *MessageRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS messages (
  id TEXT PRIMARY KEY,
  owner_id BIGINT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
  content TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_messages_owner_created ON messages(owner_id, created_at DESC);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Append inserts one message. A plain INSERT is the whole write path,
// so concurrent sends to the same mailbox cannot lose each other.
func (r *MessageRepo) Append(ctx context.Context, m *entity.Message) error {
	const q = `INSERT INTO messages (id, owner_id, content, created_at)
		VALUES (:id, :owner_id, :content, :created_at)`
	_, err := r.db.NamedExecContext(ctx, q, m)
	return err
}

// ListByOwner returns the owner's messages newest-first.
func (r *MessageRepo) ListByOwner(ctx context.Context, ownerID int64) ([]entity.Message, error) {
	const q = `SELECT id, owner_id, content, created_at FROM messages
		WHERE owner_id=$1 ORDER BY created_at DESC, id DESC`
	msgs := []entity.Message{}
	if err := r.db.SelectContext(ctx, &msgs, q, ownerID); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Delete removes one message scoped by owner and returns the number of
// rows removed. Zero rows means absent or already deleted.
func (r *MessageRepo) Delete(ctx context.Context, ownerID int64, messageID string) (int64, error) {
	const q = `DELETE FROM messages WHERE id=$1 AND owner_id=$2`
	res, err := r.db.ExecContext(ctx, q, messageID, ownerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
