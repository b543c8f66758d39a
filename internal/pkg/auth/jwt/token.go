/*
Package jwt verifies session tokens issued by the platform's identity provider.

The presence gateway only consumes these tokens: when verified binding is enabled,
an auth frame must carry a token whose subject matches the claimed user identifier.
GenerateToken exists for tooling and tests that need to mint compatible tokens.
*/
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	// SessionExpiration is the default lifetime of a minted session token.
	SessionExpiration = 24 * time.Hour

	// TokenIssuer identifies the issuer of the token.
	TokenIssuer = "SkillSwap-Identity"
)

// ErrSubjectMismatch is returned when a valid token belongs to a different user.
var ErrSubjectMismatch = errors.New("token subject does not match claimed user")

// Payload holds the claims of a session token.
type Payload struct {
	jwt.StandardClaims

	// ID is the platform user identifier the session was issued to.
	ID string `json:"id"`
}

// GenerateToken creates and signs a new HS256 token for the given payload.
func GenerateToken(payload *Payload, secretKey string, duration time.Duration) (string, error) {
	now := time.Now()

	payload.StandardClaims = jwt.StandardClaims{
		ExpiresAt: now.Add(duration).Unix(),
		IssuedAt:  now.Unix(),
		Issuer:    TokenIssuer,
		Subject:   payload.ID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)

	return token.SignedString([]byte(secretKey))
}

// ParseToken parses and validates the token string using the provided secretKey.
func ParseToken(tokenString string, secretKey string) (*Payload, error) {
	claims := &Payload{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secretKey), nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	return claims, nil
}

// VerifyUser checks that tokenString is valid and was issued to userID.
func VerifyUser(tokenString, userID, secretKey string) error {
	payload, err := ParseToken(tokenString, secretKey)
	if err != nil {
		return err
	}

	if payload.ID != userID {
		return ErrSubjectMismatch
	}

	return nil
}
