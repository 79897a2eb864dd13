package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Sentinel errors for token verification. The transport layer maps all of
// them to 401 with the matching response message.
var (
	ErrMalformedToken = errors.New("auth: invalid authorization header format")
	ErrInvalidToken   = errors.New("auth: invalid or expired token")
	ErrWrongTokenType = errors.New("auth: token is not an access token")
)

const (
	// RoleShopOwner is the role claim value required to create products.
	RoleShopOwner = "shop_owner"

	// TokenTypeAccess is the only token type accepted by this service.
	TokenTypeAccess = "access"
)

// Claims is the decoded identity assertion carried by a bearer token.
// Instances are only ever produced by Verifier.Verify; never build one from
// unverified input.
type Claims struct {
	UserID    int64   `json:"user_id"`
	Role      string  `json:"role"`
	ShopIDs   []int64 `json:"shop_ids,omitempty"`
	TokenType string  `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens issued by the auth service against a
// pre-shared secret and algorithm. Verification is purely local: no network
// calls, no mutation of the token payload.
type Verifier struct {
	secret    []byte
	algorithm string
}

// NewVerifier creates a Verifier for the given HMAC secret and signing
// algorithm name (e.g. "HS256"). Both must match the token issuer's.
func NewVerifier(secret, algorithm string) *Verifier {
	return &Verifier{secret: []byte(secret), algorithm: algorithm}
}

// Verify checks the token's signature, expiry and type claim and returns the
// claims exactly as encoded.
func (v *Verifier) Verify(rawToken string) (*Claims, error) {
	if rawToken == "" {
		return nil, ErrMalformedToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != v.algorithm {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	// An explicit non-access type claim is rejected; tokens without the
	// claim pass for compatibility with older issuers.
	if claims.TokenType != "" && claims.TokenType != TokenTypeAccess {
		return nil, ErrWrongTokenType
	}

	return claims, nil
}
