package router

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hushbox/service-api/internal/account"
	accountentity "github.com/hushbox/service-api/internal/account/entity"
	accountrepo "github.com/hushbox/service-api/internal/account/repo"
	"github.com/hushbox/service-api/internal/mailbox"
	mailboxentity "github.com/hushbox/service-api/internal/mailbox/entity"
	"github.com/hushbox/service-api/internal/session"
)

// in-memory account store

type memAccounts struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*accountentity.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: map[int64]*accountentity.Account{}}
}

func (s *memAccounts) Create(ctx context.Context, a *accountentity.Account) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.byID {
		if e.Username == a.Username || strings.EqualFold(e.Email, a.Email) {
			return 0, accountrepo.ErrDuplicate
		}
	}
	s.nextID++
	cp := *a
	cp.ID = s.nextID
	s.byID[cp.ID] = &cp
	a.ID = cp.ID
	return cp.ID, nil
}

func (s *memAccounts) GetByUsername(ctx context.Context, username string) (*accountentity.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.byID {
		if a.Username == username {
			cp := *a
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memAccounts) GetByEmail(ctx context.Context, email string) (*accountentity.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.byID {
		if strings.EqualFold(a.Email, email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memAccounts) GetByID(ctx context.Context, id int64) (*accountentity.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.byID[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *memAccounts) SetVerified(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.byID[id]; ok {
		a.Verified = true
	}
	return nil
}

func (s *memAccounts) SetAcceptingMessages(ctx context.Context, id int64, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.byID[id]; ok {
		a.AcceptingMessages = value
	}
	return nil
}

// in-memory message store

type memMessages struct {
	mu   sync.Mutex
	msgs []mailboxentity.Message
}

func (s *memMessages) Append(ctx context.Context, m *mailboxentity.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, *m)
	return nil
}

func (s *memMessages) ListByOwner(ctx context.Context, ownerID int64) ([]mailboxentity.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []mailboxentity.Message{}
	for _, m := range s.msgs {
		if m.OwnerID == ownerID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *memMessages) Delete(ctx context.Context, ownerID int64, messageID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.msgs {
		if m.ID == messageID && m.OwnerID == ownerID {
			s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

// capturingMailer records issued verification codes by recipient.
type capturingMailer struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *capturingMailer) SendVerifyCode(ctx context.Context, to, username, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[to] = code
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testAPI struct {
	t       *testing.T
	handler http.Handler
	mail    *capturingMailer
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := zap.NewNop().Sugar()
	accountStore := newMemAccounts()
	messageStore := &memMessages{}
	mail := &capturingMailer{codes: map[string]string{}}

	sessions, err := session.NewManager(session.Config{Secret: []byte("test-secret"), TTL: time.Hour})
	require.NoError(t, err)

	accountSvc := account.NewService(accountStore, account.BcryptHasher{Cost: 4}, mail, logger)
	mailboxSvc := mailbox.NewService(messageStore, accountStore, logger)

	handler := RegisterRoutes(logger,
		account.NewHandler(accountSvc, sessions, logger),
		mailbox.NewHandler(mailboxSvc, logger),
		sessions)
	return &testAPI{t: t, handler: handler, mail: mail}
}

func (a *testAPI) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestFullScenario(t *testing.T) {
	api := newTestAPI(t)

	// register
	rec, env := api.do("POST", "/accounts", "", map[string]string{
		"username": "alice", "email": "a@x.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	// availability flips after registration
	rec, env = api.do("GET", "/accounts/availability?identifier=alice", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var avail struct {
		Available bool `json:"available"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &avail))
	require.False(t, avail.Available)

	// cannot log in before verification
	rec, _ = api.do("POST", "/sessions", "", map[string]string{
		"identifier": "alice", "password": "secret123",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// verify with the emailed code
	code := api.mail.codes["a@x.com"]
	require.NotEmpty(t, code)
	rec, _ = api.do("POST", "/accounts/alice/verify", "", map[string]string{"code": code})
	require.Equal(t, http.StatusOK, rec.Code)

	// login
	rec, env = api.do("POST", "/sessions", "", map[string]string{
		"identifier": "alice", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	require.NotEmpty(t, login.Token)

	// anonymous send needs no token
	rec, _ = api.do("POST", "/accounts/alice/messages", "", map[string]string{"content": "hello"})
	require.Equal(t, http.StatusOK, rec.Code)

	// list as alice
	rec, env = api.do("GET", "/me/messages", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Messages []struct {
			ID      string `json:"id"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	require.Len(t, listed.Messages, 1)
	require.Equal(t, "hello", listed.Messages[0].Content)

	// delete, then idempotent second delete yields 404
	msgID := listed.Messages[0].ID
	rec, _ = api.do("DELETE", "/me/messages/"+msgID, login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = api.do("DELETE", "/me/messages/"+msgID, login.Token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// mailbox is empty again
	rec, env = api.do("GET", "/me/messages", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	require.Len(t, listed.Messages, 0)
}

func TestRouteGuard(t *testing.T) {
	api := newTestAPI(t)

	// no token
	rec, env := api.do("GET", "/me/messages", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.False(t, env.Success)
	require.NotEmpty(t, env.Message)

	// garbage token
	rec, _ = api.do("GET", "/me/messages", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// token signed by another secret
	other, err := session.NewManager(session.Config{Secret: []byte("wrong"), TTL: time.Hour})
	require.NoError(t, err)
	forged, err := other.Issue(&accountentity.Principal{ID: 1, Username: "alice"})
	require.NoError(t, err)
	rec, _ = api.do("GET", "/me/messages", forged, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAcceptanceToggleRejectsSends(t *testing.T) {
	api := newTestAPI(t)

	_, _ = api.do("POST", "/accounts", "", map[string]string{
		"username": "alice", "email": "a@x.com", "password": "secret123",
	})
	_, _ = api.do("POST", "/accounts/alice/verify", "", map[string]string{"code": api.mail.codes["a@x.com"]})
	_, env := api.do("POST", "/sessions", "", map[string]string{
		"identifier": "alice", "password": "secret123",
	})
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))

	rec, _ := api.do("POST", "/me/acceptance", login.Token, map[string]bool{"acceptingMessages": false})
	require.Equal(t, http.StatusOK, rec.Code)

	// the old token still claims accepting=true; the live flag wins
	rec, _ = api.do("POST", "/accounts/alice/messages", "", map[string]string{"content": "hello"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = api.do("GET", "/me/acceptance", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var acc struct {
		AcceptingMessages bool `json:"acceptingMessages"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &acc))
	require.False(t, acc.AcceptingMessages)

	rec, _ = api.do("POST", "/me/acceptance", login.Token, map[string]bool{"acceptingMessages": true})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = api.do("POST", "/accounts/alice/messages", "", map[string]string{"content": "hello"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteInvalidID(t *testing.T) {
	api := newTestAPI(t)

	_, _ = api.do("POST", "/accounts", "", map[string]string{
		"username": "alice", "email": "a@x.com", "password": "secret123",
	})
	_, _ = api.do("POST", "/accounts/alice/verify", "", map[string]string{"code": api.mail.codes["a@x.com"]})
	_, env := api.do("POST", "/sessions", "", map[string]string{
		"identifier": "alice", "password": "secret123",
	})
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))

	rec, env := api.do("DELETE", "/me/messages/not%20a%20valid%20id!", login.Token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, env.Success)
}

func TestSendToUnknownAndConflicts(t *testing.T) {
	api := newTestAPI(t)

	rec, env := api.do("POST", "/accounts/nobody/messages", "", map[string]string{"content": "hello"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.NotEmpty(t, env.Message)

	rec, _ = api.do("POST", "/accounts", "", map[string]string{
		"username": "alice", "email": "a@x.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = api.do("POST", "/accounts", "", map[string]string{
		"username": "alice", "email": "other@x.com", "password": "secret123",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, env.Success)
}
