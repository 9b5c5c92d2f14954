// Package token mints and verifies the short-lived access tokens returned by
// login and refresh. Tokens carry identity only; role and approval status are
// resolved from the store on every request so approval decisions take effect
// without re-login.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Email  string `json:"email"`
}

type Manager struct {
	secret   []byte
	validity time.Duration
}

func NewManager(secret []byte, validity time.Duration) *Manager {
	return &Manager{secret: secret, validity: validity}
}

func (m *Manager) Generate(userID, email string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.validity)),
		},
		UserID: userID,
		Email:  email,
	})
	return token.SignedString(m.secret)
}

func (m *Manager) Parse(tokenString string) (Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	if !token.Valid || claims.UserID == "" {
		return Claims{}, ErrInvalidToken
	}
	return *claims, nil
}
