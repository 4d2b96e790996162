package session

import (
	"context"
	"net/http"
	"strings"

	"github.com/hushbox/service-api/internal/account/entity"
	"github.com/hushbox/service-api/pkg/utilities"
)

// CookieName is the cookie the token may be carried in as an
// alternative to the Authorization header.
const CookieName = "hushbox_session"

type ctxKey struct{}

// FromContext returns the Principal the guard stored for this request.
func FromContext(ctx context.Context) (*entity.Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(*entity.Principal)
	return p, ok
}

// tokenFromRequest extracts the bearer token from the Authorization
// header or the session cookie.
func tokenFromRequest(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// Require guards a handler: requests without a valid session token get
// a 401 envelope, valid ones proceed with the Principal in the request
// context.
func (m *Manager) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := tokenFromRequest(r)
		if tok == "" {
			utilities.WriteError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		p, err := m.Validate(tok)
		if err != nil {
			utilities.WriteError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, p)))
	})
}
