package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/unclebandit/dripleopard-backend/internal/middleware"
)

const secret = "test-secret"

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func authedHandler() (http.Handler, *string) {
	var actor string
	h := middleware.Auth(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor = middleware.ActorID(r)
		w.WriteHeader(http.StatusOK)
	}))
	return h, &actor
}

func TestAuthPropagatesActor(t *testing.T) {
	h, actor := authedHandler()

	req := httptest.NewRequest("GET", "/campaigns", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{"sub": "agent-1"}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if *actor != "agent-1" {
		t.Errorf("actor = %q, want agent-1", *actor)
	}
}

func TestAuthRejectsMissingToken(t *testing.T) {
	h, _ := authedHandler()

	req := httptest.NewRequest("GET", "/campaigns", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthRejectsBadSignature(t *testing.T) {
	h, _ := authedHandler()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "agent-1"})
	s, err := token.SignedString([]byte("wrong-secret"))
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("GET", "/campaigns", nil)
	req.Header.Set("Authorization", "Bearer "+s)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthRejectsMissingSubject(t *testing.T) {
	h, _ := authedHandler()

	req := httptest.NewRequest("GET", "/campaigns", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
