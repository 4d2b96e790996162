package mailbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	accountentity "github.com/hushbox/service-api/internal/account/entity"
	"github.com/hushbox/service-api/internal/mailbox/entity"
	"github.com/hushbox/service-api/pkg/utilities"
)

// Store is the persistence surface the service needs. *repo.MessageRepo
// satisfies it; tests substitute an in-memory implementation.
type Store interface {
	Append(ctx context.Context, m *entity.Message) error
	ListByOwner(ctx context.Context, ownerID int64) ([]entity.Message, error)
	Delete(ctx context.Context, ownerID int64, messageID string) (int64, error)
}

// AccountDirectory resolves a public username to the target account.
// The account repo satisfies it.
type AccountDirectory interface {
	GetByUsername(ctx context.Context, username string) (*accountentity.Account, error)
}

var (
	ErrTargetNotFound  = errors.New("target account not found")
	ErrNotAccepting    = errors.New("target is not accepting messages")
	ErrMessageNotFound = errors.New("message not found")
	ErrValidation      = errors.New("invalid input")
)

// Service implements the anonymous send path and the owner-only
// list/delete path.
type Service struct {
	store    Store
	accounts AccountDirectory
	logger   *zap.SugaredLogger

	// MaxContentLength bounds message content in runes.
	MaxContentLength int
}

func NewService(store Store, accounts AccountDirectory, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{store: store, accounts: accounts, logger: logger, MaxContentLength: maxLengthFromEnv()}
}

func maxLengthFromEnv() int {
	if v := os.Getenv("MAX_MESSAGE_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}

// Send appends an anonymous message to the target's mailbox. No
// authentication is involved and the sender is never recorded. The
// acceptance flag is read live from the store, so a toggled-off mailbox
// rejects sends even while old session tokens still claim otherwise.
func (s *Service) Send(ctx context.Context, targetUsername, content string) (*entity.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: message content is required", ErrValidation)
	}
	if utf8.RuneCountInString(content) > s.MaxContentLength {
		return nil, fmt.Errorf("%w: message exceeds %d characters", ErrValidation, s.MaxContentLength)
	}
	target, err := s.accounts.GetByUsername(ctx, strings.TrimSpace(targetUsername))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTargetNotFound
		}
		return nil, err
	}
	if !target.AcceptingMessages {
		return nil, ErrNotAccepting
	}
	m := &entity.Message{
		ID:        utilities.NewMessageID(),
		OwnerID:   target.ID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := s.store.Append(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// List returns the owner's messages newest-first. The owner id comes
// from the session token; there is no way to address another mailbox.
func (s *Service) List(ctx context.Context, ownerID int64) ([]entity.Message, error) {
	return s.store.ListByOwner(ctx, ownerID)
}

// Delete removes one message from the owner's mailbox. Removal is
// idempotent in effect: deleting an id that is absent or already gone
// yields ErrMessageNotFound, never a crash.
func (s *Service) Delete(ctx context.Context, ownerID int64, messageID string) error {
	n, err := s.store.Delete(ctx, ownerID, messageID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrMessageNotFound
	}
	return nil
}
