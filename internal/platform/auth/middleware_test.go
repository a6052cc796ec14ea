package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only-0123456789")

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	ti, err := NewTokenIssuer(testSigningKey, "blister-test", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	return ti
}

func issueTestToken(t *testing.T, ti *TokenIssuer, role string) (string, *Session) {
	t.Helper()
	tok, sess, err := ti.Issue(Identity{UserID: uuid.New(), Username: "pharm", FullName: "Pat Pharm", Role: role})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok, sess
}

func runJWT(t *testing.T, cfg JWTConfig, path, header string) (*Session, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(path)

	var got *Session
	err := JWTMiddleware(cfg)(func(c echo.Context) error {
		got = SessionFromContext(c.Request().Context())
		return c.String(http.StatusOK, "ok")
	})(c)
	return got, err
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected HTTP %d, got nil error", code)
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, err := runJWT(t, JWTConfig{Tokens: newTestIssuer(t)}, "/api/v1/patients", "")
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runJWT(t, JWTConfig{Tokens: newTestIssuer(t)}, "/api/v1/patients", tt.header)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	ti := newTestIssuer(t)
	tok, issued := issueTestToken(t, ti, RoleUser)

	sess, err := runJWT(t, JWTConfig{Tokens: ti}, "/api/v1/patients", "Bearer "+tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess == nil {
		t.Fatal("expected session in request context")
	}
	if sess.UserID != issued.UserID {
		t.Errorf("expected user %s, got %s", issued.UserID, sess.UserID)
	}
	if sess.Username != "pharm" || sess.Role != RoleUser {
		t.Errorf("unexpected session: %+v", sess)
	}
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	other, err := NewTokenIssuer([]byte("another-signing-key-of-sufficient-length!!"), "blister-test", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	tok, _ := issueTestToken(t, other, RoleAdmin)

	_, err = runJWT(t, JWTConfig{Tokens: newTestIssuer(t)}, "/api/v1/patients", "Bearer "+tok)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	ti := newTestIssuer(t)
	ti.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, _ := issueTestToken(t, ti, RoleUser)
	ti.now = time.Now

	_, err := runJWT(t, JWTConfig{Tokens: ti}, "/api/v1/patients", "Bearer "+tok)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_RejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "x",
			Subject:   uuid.NewString(),
			Issuer:    "blister-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: RoleAdmin,
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	_, err = runJWT(t, JWTConfig{Tokens: newTestIssuer(t)}, "/api/v1/patients", "Bearer "+tok)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_RevokedToken(t *testing.T) {
	ti := newTestIssuer(t)
	store := newRevocationStore(time.Hour, time.Now)
	tok, sess := issueTestToken(t, ti, RoleUser)
	store.Revoke(sess.TokenID, sess.ExpiresAt)

	_, err := runJWT(t, JWTConfig{Tokens: ti, Revocations: store}, "/api/v1/patients", "Bearer "+tok)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_SkipsPublicPaths(t *testing.T) {
	sess, err := runJWT(t, JWTConfig{Tokens: newTestIssuer(t)}, "/health", "")
	if err != nil {
		t.Fatalf("expected public path to pass, got %v", err)
	}
	if sess != nil {
		t.Error("expected no session on public path")
	}
}

func TestNewTokenIssuer_RejectsShortKey(t *testing.T) {
	if _, err := NewTokenIssuer([]byte("short"), "x", time.Hour); err == nil {
		t.Error("expected error for short key")
	}
	if _, err := NewTokenIssuer(testSigningKey, "x", 0); err == nil {
		t.Error("expected error for zero ttl")
	}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	ti := newTestIssuer(t)
	fixed := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	ti.now = func() time.Time { return fixed }

	tok, issued := issueTestToken(t, ti, RoleAdmin)
	if !issued.ExpiresAt.Equal(fixed.Add(time.Hour)) {
		t.Errorf("expected expiry %v, got %v", fixed.Add(time.Hour), issued.ExpiresAt)
	}

	parsed, err := ti.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.TokenID == "" || parsed.TokenID != issued.TokenID {
		t.Errorf("expected token id %q, got %q", issued.TokenID, parsed.TokenID)
	}
	if !parsed.IsAdmin() {
		t.Error("expected admin session")
	}
	if parsed.FullName != "Pat Pharm" {
		t.Errorf("expected full name, got %q", parsed.FullName)
	}
}
