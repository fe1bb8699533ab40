package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Cookie names for the admin session. The refresh cookie is scoped to
// the admin API path so it only travels on refresh and logout calls.
const (
	AccessCookieName  = "ms_access"
	RefreshCookieName = "ms_refresh"
)

type Manager struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
}

// Claims carry the admin's identity and assigned branch. The branch is
// resolved once at login and every admin operation is scoped to it.
type Claims struct {
	Role   string `json:"role"`
	Branch string `json:"branch"`
	jwt.RegisteredClaims
}

func (m *Manager) newToken(userID, role, branch string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:   role,
		Branch: branch,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.Secret)
}

func (m *Manager) NewAccessToken(userID, role, branch string) (string, error) {
	return m.newToken(userID, role, branch, m.AccessTTL)
}

func (m *Manager) NewRefreshToken(userID, role, branch string) (string, error) {
	return m.newToken(userID, role, branch, m.RefreshTTL)
}

func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return m.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
