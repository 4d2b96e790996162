package entity

import "time"

// Message is one anonymous message in an account's mailbox. The sender
// is never recorded. Rows are append-only: inserted once, removed
// wholesale, never updated.
type Message struct {
	ID        string    `db:"id" json:"id"`
	OwnerID   int64     `db:"owner_id" json:"-"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
