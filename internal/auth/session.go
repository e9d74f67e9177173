package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	sessionIssuer   = "guildrunner"
	sessionAudience = "guildrunner-app"
	sessionTTL      = 7 * 24 * time.Hour
	sessionProvider = "kakao"
)

// SessionClaims is the first-party session token payload. Possession
// of a valid, unexpired, correctly-signed token is the sole
// authorization proof; there is no revocation.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Provider string `json:"provider"`
}

// IssueSession mints the compact HS256 session token for userID.
func IssueSession(secret, userID, email string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    sessionIssuer,
			Audience:  jwt.ClaimStrings{sessionAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
		Email:    email,
		Provider: sessionProvider,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifySession validates signature, issuer, audience and expiry.
// Any mismatch is invalid, not retryable.
func VerifySession(secret, token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithAudience(sessionAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
