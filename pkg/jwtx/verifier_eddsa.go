package jwtx

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrUnknownKID = errors.New("jwtx: unknown kid")
	ErrIssuer     = errors.New("jwtx: issuer mismatch")
	ErrNoSubject  = errors.New("jwtx: token has no subject")
)

// EdDSAVerifier validates session tokens signed by one EdDSASigner.
type EdDSAVerifier struct {
	kid    string
	pub    ed25519.PublicKey
	issuer string
}

// NewVerifierEdDSA accepts tokens from signer that carry issuer.
func NewVerifierEdDSA(signer *EdDSASigner, issuer string) *EdDSAVerifier {
	return &EdDSAVerifier{kid: signer.KID(), pub: signer.PublicKey(), issuer: issuer}
}

// Verify validates the JWT string and returns its claims. Expiry is
// required.
func (v *EdDSAVerifier) Verify(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithExpirationRequired(),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if kid, _ := t.Header["kid"].(string); kid != v.kid {
			return nil, fmt.Errorf("%w %q", ErrUnknownKID, kid)
		}
		return v.pub, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse or verify: %w", err)
	}

	if claims.Issuer != v.issuer {
		return nil, ErrIssuer
	}
	if claims.Subject == "" {
		return nil, ErrNoSubject
	}

	return claims, nil
}

// Subject verifies tokenStr and returns its subject.
func (v *EdDSAVerifier) Subject(tokenStr string) (string, error) {
	claims, err := v.Verify(tokenStr)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
