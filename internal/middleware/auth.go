// Package middleware содержит HTTP middleware кафетерия льгот.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/mvoronov/cafeteria-system/internal/model"
)

type contextKey string

const actorKey contextKey = "actor"

// SessionCookieName — имя cookie с токеном сессии.
const SessionCookieName = "session_id"

const sessionCookieTTL = 30 * 24 * time.Hour

// UserProvider возвращает пользователя по токену действующей сессии.
type UserProvider interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// AuthMiddleware выполняет проверку аутентификации пользователя по cookie сессии.
type AuthMiddleware struct {
	users UserProvider
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware.
func NewAuthMiddleware(users UserProvider) *AuthMiddleware {
	return &AuthMiddleware{users: users}
}

// Middleware проверяет cookie сессии и добавляет действующего пользователя
// в контекст запроса в виде model.Actor.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		user, err := a.users.Authenticate(r.Context(), cookie.Value)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		actor := model.Actor{
			ID:            user.ID,
			Role:          user.Role,
			LegalEntityID: user.LegalEntityID,
		}

		ctx := context.WithValue(r.Context(), actorKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetSessionCookie устанавливает cookie сессии с указанным токеном.
func SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(sessionCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie удаляет cookie сессии.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetActorFromContext извлекает действующего пользователя из контекста запроса.
func GetActorFromContext(ctx context.Context) (model.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(model.Actor)
	return actor, ok
}
