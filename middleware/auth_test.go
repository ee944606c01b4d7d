package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const testSecret = "test-secret"

func mintToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":  "user-1",
		"name": "Alice",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
}

func authRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWTAuth(testSecret))
	router.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"userID":   c.MustGet("userID"),
			"userName": c.MustGet("userName"),
		})
	})
	return router
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	router := authRouter()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testSecret, validClaims()))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestJWTAuthRejects(t *testing.T) {
	router := authRouter()

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc123",
		"wrong secret":   "Bearer " + mintToken(t, "other-secret", validClaims()),
		"garbage token":  "Bearer not.a.token",
	}

	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, w.Code)
		}
	}
}

func TestParseToken(t *testing.T) {
	userID, userName, err := ParseToken(mintToken(t, testSecret, validClaims()), testSecret)
	if err != nil {
		t.Fatal(err)
	}
	if userID != "user-1" || userName != "Alice" {
		t.Fatalf("unexpected identity %q/%q", userID, userName)
	}
}

func TestParseTokenRequiresSubject(t *testing.T) {
	claims := jwt.MapClaims{"name": "Alice", "exp": time.Now().Add(time.Hour).Unix()}
	if _, _, err := ParseToken(mintToken(t, testSecret, claims), testSecret); err == nil {
		t.Fatal("expected error for token without sub claim")
	}
}

func TestParseTokenDefaultsNameToSubject(t *testing.T) {
	claims := jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix()}
	_, userName, err := ParseToken(mintToken(t, testSecret, claims), testSecret)
	if err != nil {
		t.Fatal(err)
	}
	if userName != "user-1" {
		t.Fatalf("expected name to fall back to subject, got %q", userName)
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if BearerToken(req) != "" {
		t.Fatal("expected empty token without header")
	}

	req.Header.Set("Authorization", "Bearer abc")
	if BearerToken(req) != "abc" {
		t.Fatalf("expected abc, got %q", BearerToken(req))
	}

	req.Header.Set("Authorization", "bearer xyz")
	if BearerToken(req) != "xyz" {
		t.Fatal("scheme match must be case-insensitive")
	}
}
