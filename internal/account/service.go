package account

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hushbox/service-api/internal/account/entity"
	accountrepo "github.com/hushbox/service-api/internal/account/repo"
)

// PasswordHasher defines minimal hashing interface (abstract so we can swap to argon2 later).
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// Store is the persistence surface the service needs. *repo.AccountRepo
// satisfies it; tests substitute an in-memory implementation.
type Store interface {
	Create(ctx context.Context, a *entity.Account) (int64, error)
	GetByUsername(ctx context.Context, username string) (*entity.Account, error)
	GetByEmail(ctx context.Context, email string) (*entity.Account, error)
	GetByID(ctx context.Context, id int64) (*entity.Account, error)
	SetVerified(ctx context.Context, id int64) error
	SetAcceptingMessages(ctx context.Context, id int64, value bool) error
}

// VerificationMailer delivers the verification code after registration.
type VerificationMailer interface {
	SendVerifyCode(ctx context.Context, to, username, code string) error
}

var (
	ErrConflict           = errors.New("username or email already taken")
	ErrNotFound           = errors.New("account not found")
	ErrCodeExpired        = errors.New("verification code expired")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrUnverified         = errors.New("account not verified")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrValidation         = errors.New("invalid input")
)

var (
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{2,20}$`)
	emailRe    = regexp.MustCompile(`^.+@.+\..+$`)
)

// Service orchestrates registration, verification, authentication and
// the acceptance flag.
type Service struct {
	store  Store
	hasher PasswordHasher
	mailer VerificationMailer
	logger *zap.SugaredLogger

	// configuration knobs
	CodeTTL time.Duration
}

// NewService constructs a Service. The mailer may be nil; registration
// then skips email delivery.
func NewService(store Store, hasher PasswordHasher, mailer VerificationMailer, logger *zap.SugaredLogger) *Service {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{store: store, hasher: hasher, mailer: mailer, logger: logger, CodeTTL: codeTTLFromEnv()}
}

func codeTTLFromEnv() time.Duration {
	if v := os.Getenv("VERIFY_CODE_TTL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Minute
		}
	}
	return time.Hour
}

// newVerifyCode returns a 6-digit numeric code without a leading zero.
func newVerifyCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+100000), nil
}

// Register creates an unverified account with a fresh verification code
// and emails the code best-effort. Duplicate username or email yields
// ErrConflict; malformed input yields ErrValidation.
func (s *Service) Register(ctx context.Context, username, email, password string) error {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if !usernameRe.MatchString(username) {
		return fmt.Errorf("%w: username must be 2-20 letters, digits or underscores", ErrValidation)
	}
	if !emailRe.MatchString(email) {
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if len(password) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	code, err := newVerifyCode()
	if err != nil {
		return err
	}
	a := &entity.Account{
		Username:          username,
		Email:             email,
		PasswordHash:      hash,
		VerifyCode:        code,
		VerifyCodeExpiry:  time.Now().Add(s.CodeTTL),
		Verified:          false,
		AcceptingMessages: true,
	}
	if _, err := s.store.Create(ctx, a); err != nil {
		if errors.Is(err, accountrepo.ErrDuplicate) {
			return ErrConflict
		}
		return err
	}
	s.logger.Debugw("account registered", "username", username, "code", code)

	if s.mailer != nil {
		// delivery is best-effort: a down relay must not undo the registration
		if err := s.mailer.SendVerifyCode(ctx, email, username, code); err != nil {
			s.logger.Warnw("verification mail failed", "username", username, "err", err)
		}
	}
	return nil
}

// Available reports whether the identifier (username or email) is free.
func (s *Service) Available(ctx context.Context, identifier string) (bool, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return false, fmt.Errorf("%w: identifier required", ErrValidation)
	}
	_, err := s.findByIdentifier(ctx, identifier)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

func (s *Service) findByIdentifier(ctx context.Context, identifier string) (*entity.Account, error) {
	if strings.Contains(identifier, "@") {
		return s.store.GetByEmail(ctx, strings.ToLower(identifier))
	}
	return s.store.GetByUsername(ctx, identifier)
}

// Verify checks the code for the named account and flips it to
// verified. Re-verifying an already verified account is a no-op
// success.
func (s *Service) Verify(ctx context.Context, username, code string) error {
	a, err := s.store.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if a.Verified {
		return nil
	}
	if time.Now().After(a.VerifyCodeExpiry) {
		return ErrCodeExpired
	}
	if a.VerifyCode != code {
		return ErrInvalidCode
	}
	return s.store.SetVerified(ctx, a.ID)
}

// Authenticate validates an identifier/password pair and returns the
// Principal snapshot for session issuance. The password is only ever
// compared through the hasher, never by plaintext equality.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (*entity.Principal, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	a, err := s.findByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !a.Verified {
		return nil, ErrUnverified
	}
	if !s.hasher.Verify(a.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return &entity.Principal{
		ID:                a.ID,
		Username:          a.Username,
		Verified:          a.Verified,
		AcceptingMessages: a.AcceptingMessages,
	}, nil
}

// AcceptingMessages reads the live acceptance flag, not the session
// snapshot.
func (s *Service) AcceptingMessages(ctx context.Context, id int64) (bool, error) {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, err
	}
	return a.AcceptingMessages, nil
}

// SetAcceptingMessages toggles the acceptance flag. Idempotent.
func (s *Service) SetAcceptingMessages(ctx context.Context, id int64, value bool) error {
	return s.store.SetAcceptingMessages(ctx, id, value)
}
