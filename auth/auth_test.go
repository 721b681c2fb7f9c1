package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func testAuthenticator() *Authenticator {
	return NewAuthenticator("test_secret", "chat-relay", time.Hour)
}

func Test_Token_Roundtrip(t *testing.T) {
	req := require.New(t)
	authenticator := testAuthenticator()

	token, err := authenticator.GenerateToken("alice", []string{"member"})
	req.NoError(err)

	claims, err := authenticator.ValidateToken(token)
	req.NoError(err)
	req.Equal("alice", claims.UserID)
	req.Equal([]string{"member"}, claims.Roles)
	req.Equal("chat-relay", claims.Issuer)
}

func Test_Token_Wrong_Secret(t *testing.T) {
	req := require.New(t)

	token, err := testAuthenticator().GenerateToken("alice", nil)
	req.NoError(err)

	_, err = NewAuthenticator("other_secret", "chat-relay", time.Hour).ValidateToken(token)
	req.Error(err)
}

func Test_Token_Expired(t *testing.T) {
	req := require.New(t)

	expired := NewAuthenticator("test_secret", "chat-relay", -time.Minute)
	token, err := expired.GenerateToken("alice", nil)
	req.NoError(err)

	_, err = testAuthenticator().ValidateToken(token)
	req.Error(err)
}

func middlewareRouter(authenticator *Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(authenticator))
	r.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, PrincipalFrom(c).UserID)
	})
	return r
}

func Test_Middleware_Rejects_Missing_And_Bad_Tokens(t *testing.T) {
	req := require.New(t)
	router := middlewareRouter(testAuthenticator())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	req.Equal(http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	r.Header.Set("Authorization", "Bearer not-a-token")
	router.ServeHTTP(w, r)
	req.Equal(http.StatusUnauthorized, w.Code)
}

func Test_Middleware_Injects_Principal(t *testing.T) {
	req := require.New(t)
	authenticator := testAuthenticator()
	router := middlewareRouter(authenticator)

	token, err := authenticator.GenerateToken("alice", nil)
	req.NoError(err)

	// Bearer header.
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, r)
	req.Equal(http.StatusOK, w.Code)
	req.Equal("alice", w.Body.String())

	// Query parameter fallback used by websocket clients.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami?token="+token, nil))
	req.Equal(http.StatusOK, w.Code)
	req.Equal("alice", w.Body.String())
}
