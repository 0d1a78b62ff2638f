package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/hupe1980/agencyhub/core"
)

// ErrUnauthenticated is returned for missing or unknown bearer tokens.
var ErrUnauthenticated = errors.New("not authenticated")

// Authenticator resolves a bearer token to a user.
type Authenticator interface {
	Authenticate(token string) (core.User, error)
}

// Token binds a static bearer token to a user.
type Token struct {
	Token string
	User  core.User
}

type authEntry struct {
	token []byte
	user  core.User
}

// StaticTokenAuth authenticates against a static token list using
// constant-time comparison.
type StaticTokenAuth struct {
	entries []authEntry
}

// NewStaticTokenAuth builds an authenticator from tokens. Empty tokens are ignored.
func NewStaticTokenAuth(tokens ...Token) *StaticTokenAuth {
	a := &StaticTokenAuth{entries: make([]authEntry, 0, len(tokens))}
	for _, t := range tokens {
		if t.Token == "" {
			continue
		}
		a.entries = append(a.entries, authEntry{token: []byte(t.Token), user: t.User})
	}
	return a
}

// Authenticate returns the user bound to token.
func (s *StaticTokenAuth) Authenticate(token string) (core.User, error) {
	tokenBytes := []byte(token)
	for _, e := range s.entries {
		if subtle.ConstantTimeCompare(tokenBytes, e.token) == 1 {
			return e.user, nil
		}
	}
	return core.User{}, ErrUnauthenticated
}

type userKey struct{}

// UserFromContext returns the authenticated user stored by the auth middleware.
func UserFromContext(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(userKey{}).(core.User)
	return u, ok
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// requireUser rejects unauthenticated requests and disabled users.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.auth.Authenticate(bearerToken(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if user.Disabled {
			s.writeError(w, r, core.ErrInactiveUser)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	}
}
