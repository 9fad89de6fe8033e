package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by identity tokens
type Claims struct {
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Role          string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 identity tokens
type JWTVerifier struct {
	secret []byte
	issuer string
}

// NewJWTVerifier creates a verifier; an empty issuer accepts any issuer
func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses token and returns the identity it names
func (v *JWTVerifier) Verify(token string) (*Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		code := "auth/invalid-credential"
		if errors.Is(err, jwt.ErrTokenExpired) {
			code = "auth/id-token-expired"
		}
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, NewProviderError(code, err))
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrUnauthenticated
	}

	role := claims.Role
	if role == "" {
		role = RoleUser
	}
	return &Identity{
		UID:           claims.Subject,
		Email:         claims.Email,
		DisplayName:   claims.Name,
		EmailVerified: claims.EmailVerified,
		Role:          role,
	}, nil
}

// Issue signs a token for id, valid for ttl
func (v *JWTVerifier) Issue(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:         id.Email,
		Name:          id.DisplayName,
		EmailVerified: id.EmailVerified,
		Role:          id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
