package httpadapter

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

const (
	sessionName      = "pollen_session"
	sessionUserIDKey = "user_id"
)

type identityContextKey struct{}

func identityFromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(domain.Identity)
	return identity, ok
}

// NewSessionStore derives the cookie keys from secret. An empty secret yields a
// random key, so sessions do not survive a restart.
func NewSessionStore(secret string, maxAge time.Duration, secure bool) *sessions.CookieStore {
	var key []byte
	if secret == "" {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
	} else {
		sum := sha256.Sum256([]byte(secret))
		key = sum[:]
	}
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// sessionMiddleware resolves the session cookie to a live account. Disabled or
// deleted accounts are treated as anonymous.
func (rt *Router) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := rt.sessions.Get(r, sessionName)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		userID, ok := session.Values[sessionUserIDKey].(int64)
		if !ok || userID <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := rt.accounts.Lookup(r.Context(), userID)
		if err != nil {
			if !domain.IsKind(err, domain.ErrNotFound) && !domain.IsKind(err, domain.ErrForbidden) {
				writeError(w, r, rt.logger, err)
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), identityContextKey{}, *identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole rejects anonymous callers with 401 and under-privileged ones with 403.
func requireRole(role domain.Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := identityFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "login required"})
			return
		}
		if !identity.Role.Allows(role) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "requires role " + string(role)})
			return
		}
		next(w, r)
	}
}

func (rt *Router) register(w http.ResponseWriter, r *http.Request) {
	var reg domain.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	user, err := rt.accounts.Register(r.Context(), reg)
	if err != nil {
		writeError(w, r, rt.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (rt *Router) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	identity, err := rt.accounts.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		writeError(w, r, rt.logger, err)
		return
	}

	session, _ := rt.sessions.New(r, sessionName)
	session.Values[sessionUserIDKey] = identity.UserID
	if err := session.Save(r, w); err != nil {
		writeError(w, r, rt.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func (rt *Router) logout(w http.ResponseWriter, r *http.Request) {
	session, _ := rt.sessions.Get(r, sessionName)
	session.Options.MaxAge = -1
	delete(session.Values, sessionUserIDKey)
	if err := session.Save(r, w); err != nil {
		writeError(w, r, rt.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) me(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, r, rt.logger, domain.WrapError(domain.ErrUnauthorized, "me", errors.New("login required")))
		return
	}
	writeJSON(w, http.StatusOK, identity)
}
