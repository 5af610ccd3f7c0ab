package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when the session token is malformed or forged.
	ErrInvalidToken = errors.New("auth: invalid session token")
	// ErrExpiredToken is returned when the session token has expired.
	ErrExpiredToken = errors.New("auth: session token has expired")
)

// SessionConfig holds the signing settings of user sessions.
type SessionConfig struct {
	SecretKey string
	TTL       time.Duration
	Issuer    string
}

// SessionClaims are the claims of a logged-in visitor's session token.
// The subject is the user id.
type SessionClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// UserID parses the subject back into a user id.
func (c *SessionClaims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// SessionManager issues and validates user session tokens and anonymous cart
// session keys.
type SessionManager struct {
	config SessionConfig
	now    func() time.Time
}

// NewSessionManager creates a SessionManager with the given configuration.
func NewSessionManager(config SessionConfig) *SessionManager {
	return &SessionManager{config: config, now: time.Now}
}

// TTL is how long an issued session stays valid.
func (m *SessionManager) TTL() time.Duration {
	return m.config.TTL
}

// Issue signs a session token for the user.
func (m *SessionManager) Issue(userID int64, username string) (string, error) {
	now := m.now()
	claims := SessionClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.SecretKey))
}

// Validate checks the signature, issuer and expiry of tokenString.
func (m *SessionManager) Validate(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(m.config.SecretKey), nil
	}, jwt.WithIssuer(m.config.Issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}

// NewCartSessionKey returns a fresh opaque key identifying an anonymous cart.
func NewCartSessionKey() string {
	return uuid.NewString()
}

// ValidCartSessionKey reports whether key looks like a key this service issued.
func ValidCartSessionKey(key string) bool {
	_, err := uuid.Parse(key)
	return err == nil && len(key) == 36
}
