package devbackend

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"
)

var ErrInvalidSession = errors.New("invalid session token")

// SessionIssuer mints HS256 session tokens for signed-in identities.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionIssuer(secret []byte, ttl time.Duration, now func() time.Time) *SessionIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &SessionIssuer{secret: secret, ttl: ttl, now: now}
}

func (s *SessionIssuer) Issue(userID, bapID string) (models.Session, error) {
	issued := s.now()
	expires := issued.Add(s.ttl)
	claims := jwt.MapClaims{
		"id":    userID,
		"bapId": bapID,
		"exp":   expires.Unix(),
		"iat":   issued.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return models.Session{}, err
	}
	return models.Session{Token: signed, IdentityKey: bapID, ExpiresAt: time.Unix(expires.Unix(), 0).UTC()}, nil
}

// Verify returns the identity key carried by a session token.
func (s *SessionIssuer) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", errors.Join(ErrInvalidSession, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidSession
	}
	bapID, ok := claims["bapId"].(string)
	if !ok || bapID == "" {
		return "", ErrInvalidSession
	}
	return bapID, nil
}
