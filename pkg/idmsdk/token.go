package idmsdk

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what can be read from a JWT-shaped bearer token without
// verifying it.
type TokenInfo struct {
	Subject   string
	Issuer    string
	SessionID string
	ExpiresAt time.Time
}

type bearerClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id,omitempty"`
}

// InspectToken decodes the claims of a bearer token WITHOUT checking its
// signature. It is for diagnostics only; the server remains the sole
// authority on the token. Opaque tokens return an error.
func InspectToken(token string) (*TokenInfo, error) {
	if token == "" {
		return nil, errors.New("empty token")
	}

	var claims bearerClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("token is not a JWT: %w", err)
	}

	info := &TokenInfo{
		Subject:   claims.Subject,
		Issuer:    claims.Issuer,
		SessionID: claims.SessionID,
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}
