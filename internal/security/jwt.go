package security

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrInvalidIssuer   = errors.New("invalid token issuer")
	ErrInvalidAudience = errors.New("invalid token audience")
	ErrTokenExpired    = errors.New("token expired")
	ErrInvalidSubject  = errors.New("invalid token subject")
)

// tokenUse marks access tokens so a refresh token can never pass as one.
const tokenUse = "access"

type accessClaims struct {
	jwt.StandardClaims
	Use string `json:"use"`
}

// JWTSigner issues and verifies RS256 access tokens whose subject is the
// user id.
type JWTSigner struct {
	private   *rsa.PrivateKey
	public    *rsa.PublicKey
	issuer    string
	audience  string
	ttl       time.Duration
	clockSkew time.Duration
}

func NewJWTSigner(private *rsa.PrivateKey, public *rsa.PublicKey, issuer, audience string, ttl, clockSkew time.Duration) *JWTSigner {
	return &JWTSigner{
		private:   private,
		public:    public,
		issuer:    issuer,
		audience:  audience,
		ttl:       ttl,
		clockSkew: clockSkew,
	}
}

func (s *JWTSigner) TTL() time.Duration { return s.ttl }

func (s *JWTSigner) SignAccessToken(userID string, now time.Time) (string, error) {
	if userID == "" {
		return "", ErrInvalidSubject
	}
	claims := accessClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			Audience:  s.audience,
			IssuedAt:  now.Unix(),
			NotBefore: now.Unix(),
			ExpiresAt: now.Add(s.ttl).Unix(),
		},
		Use: tokenUse,
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.private)
}

// Verify checks signature, issuer, audience and lifetime, and returns the
// user id.
func (s *JWTSigner) Verify(token string) (string, error) {
	return s.verifyAt(token, time.Now())
}

func (s *JWTSigner) verifyAt(token string, now time.Time) (string, error) {
	var claims accessClaims
	// lifetime is checked below with clockSkew
	parser := jwt.Parser{SkipClaimsValidation: true, ValidMethods: []string{jwt.SigningMethodRS256.Alg()}}
	if _, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.public, nil
	}); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	switch {
	case claims.Use != tokenUse:
		return "", ErrInvalidToken
	case !claims.VerifyIssuer(s.issuer, true):
		return "", ErrInvalidIssuer
	case s.audience != "" && !claims.VerifyAudience(s.audience, true):
		return "", ErrInvalidAudience
	}

	notBefore := time.Unix(claims.NotBefore, 0).Add(-s.clockSkew)
	expires := time.Unix(claims.ExpiresAt, 0).Add(s.clockSkew)
	if now.Before(notBefore) || now.After(expires) {
		return "", ErrTokenExpired
	}
	if claims.Subject == "" {
		return "", ErrInvalidSubject
	}
	return claims.Subject, nil
}
