package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lawsonsstudio/storefront/internal/identity"
)

const (
	testIdentitySecret = "test-identity-secret-0123456789abcdef"
	testIdentityIssuer = "https://id.lawsons.example"
)

func newIdentityHandlers(t *testing.T) *Handlers {
	t.Helper()

	verifier, err := identity.NewVerifier(testIdentitySecret, testIdentityIssuer)
	if err != nil {
		t.Fatalf("failed to create verifier: %v", err)
	}
	return &Handlers{
		identityVerifier: verifier,
		logger:           discardLogger(),
	}
}

func signTestToken(t *testing.T, roles []string) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":   "user-42",
		"iss":   testIdentityIssuer,
		"email": "ops@lawsons.example",
		"roles": roles,
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testIdentitySecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestRequireIdentity(t *testing.T) {
	t.Parallel()

	h := newIdentityHandlers(t)

	var seen *identity.Identity
	protected := h.RequireIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("rejects missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("rejects token signed with the wrong key", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "user-42",
			"iss": testIdentityIssuer,
			"exp": time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte("some-other-secret-0123456789abcdef"))
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("accepts a valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
		req.Header.Set("Authorization", "Bearer "+signTestToken(t, []string{"admin"}))
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", rec.Code)
		}
		if seen == nil || seen.Subject != "user-42" {
			t.Fatalf("identity not found in context: %+v", seen)
		}
	})
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	h := newIdentityHandlers(t)
	protected := h.RequireIdentity(h.RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	t.Run("forbids a caller without the role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/orders/1/ship", nil)
		req.Header.Set("Authorization", "Bearer "+signTestToken(t, []string{"viewer"}))
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("allows a caller with the role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/orders/1/ship", nil)
		req.Header.Set("Authorization", "Bearer "+signTestToken(t, []string{"admin"}))
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", rec.Code)
		}
	})
}
