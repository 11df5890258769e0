package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/registration-service/internal/domain"
)

// ErrInvalidToken is returned for any decode failure: bad signature,
// malformed structure or expiry. Callers must not be able to tell these
// apart.
var ErrInvalidToken = errors.New("invalid token")

// TokenManager issues and validates signed JWT tokens. Signing uses the
// private key; validation needs only the public key.
type TokenManager struct {
	keys       *KeyPair
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenManager builds a manager for the given key pair and algorithm.
func NewTokenManager(keys *KeyPair, algorithm string, accessTTL, refreshTTL time.Duration) (*TokenManager, error) {
	if keys == nil || keys.Private == nil || keys.Public == nil {
		return nil, errors.New("token manager requires a complete key pair")
	}
	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown signing algorithm %q", algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("algorithm %q is not RSA-based", algorithm)
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &TokenManager{keys: keys, method: method, accessTTL: accessTTL, refreshTTL: refreshTTL}, nil
}

// Claims describes the JWT payload. The token type must be checked
// before trusting any other claim. Username and email are carried on
// access tokens only; refresh tokens stay minimal since they are
// longer-lived.
type Claims struct {
	TokenType domain.TokenType `json:"type"`
	Username  string           `json:"username,omitempty"`
	Email     string           `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// IssueAccessToken signs a short-lived token carrying identity and
// profile claims.
func (tm *TokenManager) IssueAccessToken(user *domain.User) (string, time.Time, error) {
	return tm.Issue(domain.TokenTypeAccess, user, 0)
}

// IssueRefreshToken signs a long-lived token carrying only the subject.
func (tm *TokenManager) IssueRefreshToken(user *domain.User) (string, time.Time, error) {
	return tm.Issue(domain.TokenTypeRefresh, user, 0)
}

// Issue builds and signs a token of the given type. A positive ttl
// overrides the type-specific default.
func (tm *TokenManager) Issue(tokenType domain.TokenType, user *domain.User, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		switch tokenType {
		case domain.TokenTypeRefresh:
			ttl = tm.refreshTTL
		default:
			ttl = tm.accessTTL
		}
	}

	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	if tokenType == domain.TokenTypeAccess {
		claims.Username = user.Username
		claims.Email = user.Email
	}

	token := jwt.NewWithClaims(tm.method, claims)
	tokenString, err := token.SignedString(tm.keys.Private)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Parse validates the signature and expiry, returning the claims. All
// failure modes collapse to ErrInvalidToken.
func (tm *TokenManager) Parse(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != tm.method.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return tm.keys.Public, nil
	}, jwt.WithValidMethods([]string{tm.method.Alg()}))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SubjectID parses the numeric user id out of the sub claim.
func (c *Claims) SubjectID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return id, nil
}
