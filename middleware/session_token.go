// middleware/session_token.go
package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"
)

const sessionIssuer = "cards-against-animals"

var ErrInvalidSession = errors.New("invalid session token")

// SessionClaims identify a player across requests and the event stream.
type SessionClaims struct {
	UID  string
	Name string
}

// IssueSessionToken signs an HS256 token for uid valid for ttl.
func IssueSessionToken(secret, uid, name string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("session secret is required")
	}
	if uid == "" {
		return "", fmt.Errorf("uid is required")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":  sessionIssuer,
		"sub":  uid,
		"name": name,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseSessionToken verifies signature, expiry and issuer.
func ParseSessionToken(secret, tokenString string) (*SessionClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSession
	}
	if !claims.VerifyIssuer(sessionIssuer, true) {
		return nil, fmt.Errorf("%w: wrong issuer", ErrInvalidSession)
	}
	uid, _ := claims["sub"].(string)
	if uid == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidSession)
	}
	name, _ := claims["name"].(string)
	return &SessionClaims{UID: uid, Name: name}, nil
}
