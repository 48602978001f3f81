package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultLinkTTL = 24 * time.Hour

var ErrInvalidLink = errors.New("invalid or expired download link")

// LinkSigner issues tokens that grant download access to one stored run.
type LinkSigner struct {
	Key []byte
	TTL time.Duration
	now func() time.Time
}

func NewLinkSigner(key []byte, ttl time.Duration) *LinkSigner {
	if ttl <= 0 {
		ttl = DefaultLinkTTL
	}
	return &LinkSigner{Key: key, TTL: ttl, now: time.Now}
}

func (s *LinkSigner) Sign(runID int64) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(runID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.TTL)),
	})
	return token.SignedString(s.Key)
}

// Verify checks tokenString and returns the run it grants access to.
func (s *LinkSigner) Verify(tokenString string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.Key, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject", ErrInvalidLink)
	}
	return id, nil
}

// DownloadURL is the relative path serving run id with a fresh token.
func (s *LinkSigner) DownloadURL(runID int64, format string) (string, error) {
	token, err := s.Sign(runID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("/api/runs/%d/download?format=%s&token=%s", runID, format, token), nil
}
