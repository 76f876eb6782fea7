package middleware

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenMalformed        = errors.New("token is malformed")
	ErrTokenExpired          = errors.New("token has expired")
	ErrTokenInvalidSignature = errors.New("token signature is invalid")
)

// JWTAuth issues and verifies HS256 bearer tokens whose subject is the user's email.
type JWTAuth struct {
	Secret []byte
	now    func() time.Time
}

func NewJWTAuth(secret string) *JWTAuth {
	return &JWTAuth{Secret: []byte(secret), now: time.Now}
}

// IssueToken creates a JWT for subject expiring ttl from now.
func (j *JWTAuth) IssueToken(subject string, ttl time.Duration) (string, error) {
	now := j.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.Secret)
}

// VerifyToken checks signature and expiry and returns the subject claim.
func (j *JWTAuth) VerifyToken(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(token *jwt.Token) (interface{}, error) {
			return j.Secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return "", ErrTokenInvalidSignature
		default:
			return "", ErrTokenMalformed
		}
	}

	if claims.Subject == "" {
		return "", ErrTokenMalformed
	}
	return claims.Subject, nil
}
