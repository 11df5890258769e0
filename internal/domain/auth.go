package domain

// TokenType differentiates access vs refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// CookieName returns the HTTP cookie carrying tokens of this type.
func (t TokenType) CookieName() string {
	return string(t) + "_token"
}
