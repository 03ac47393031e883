package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mvoronov/cafeteria-system/internal/model"
	"github.com/mvoronov/cafeteria-system/internal/repository"
)

type stubProvider struct {
	user      *model.User
	lastToken string
}

func (p *stubProvider) Authenticate(ctx context.Context, token string) (*model.User, error) {
	p.lastToken = token
	if p.user == nil {
		return nil, repository.ErrSessionNotFound
	}
	return p.user, nil
}

func TestAuthMiddleware_WithValidCookie(t *testing.T) {
	legalEntity := int64(10)
	provider := &stubProvider{
		user: &model.User{ID: 42, Role: model.RoleHR, LegalEntityID: &legalEntity},
	}
	m := NewAuthMiddleware(provider)

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		actor, ok := GetActorFromContext(r.Context())
		if !ok {
			t.Fatalf("actor not in context")
		}
		if actor.ID != 42 || actor.Role != model.RoleHR {
			t.Fatalf("actor from context = %+v", actor)
		}
		if actor.LegalEntityID == nil || *actor.LegalEntityID != 10 {
			t.Fatalf("actor legal entity = %v, want 10", actor.LegalEntityID)
		}
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "session-token"})

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
	if provider.lastToken != "session-token" {
		t.Fatalf("provider got token %q, want session-token", provider.lastToken)
	}
}

func TestAuthMiddleware_WithoutCookie(t *testing.T) {
	m := NewAuthMiddleware(&stubProvider{})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/protected", nil)

	m.Middleware(next).ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_ExpiredSession(t *testing.T) {
	m := NewAuthMiddleware(&stubProvider{user: nil})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "stale-token"})

	m.Middleware(next).ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestSessionCookieHelpers(t *testing.T) {
	w := httptest.NewRecorder()
	SetSessionCookie(w, "token-abc")

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != "token-abc" {
		t.Fatalf("unexpected cookies: %+v", cookies)
	}
	if !cookies[0].HttpOnly {
		t.Fatalf("session cookie must be http-only")
	}

	w = httptest.NewRecorder()
	ClearSessionCookie(w)

	cookies = w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge != -1 {
		t.Fatalf("clear must expire the cookie, got %+v", cookies)
	}
}
