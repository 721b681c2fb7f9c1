// Package auth verifies the identity claim attached to requests and
// connections. Token issuance lives with the external identity provider;
// the helpers here exist for local development and tests, and the
// verification path is what the core depends on.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// Authenticator signs and verifies principal tokens. The secret comes from
// configuration, never from source.
type Authenticator struct {
	secret   []byte
	issuer   string
	duration time.Duration
}

func NewAuthenticator(secret string, issuer string, duration time.Duration) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer, duration: duration}
}

// GenerateToken creates a signed JWT for a specific user.
func (a *Authenticator) GenerateToken(userID string, roles []string) (string, error) {
	claims := &CustomClaims{
		UserID: userID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    a.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken parses and validates the signature and expiration of a JWT
// string.
func (a *Authenticator) ValidateToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
