package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/registration-service/internal/domain"
	"github.com/spec-kit/registration-service/internal/repository"
	apperrors "github.com/spec-kit/registration-service/pkg/util"
)

const sessionUserKey = "session_user"

// SessionMiddleware resolves cookie-borne tokens to user identities.
type SessionMiddleware struct {
	tokens *TokenManager
	users  repository.UserRepository
}

// NewSessionMiddleware constructs middleware.
func NewSessionMiddleware(tokens *TokenManager, users repository.UserRepository) *SessionMiddleware {
	return &SessionMiddleware{tokens: tokens, users: users}
}

// RequireToken enforces a valid token of the expected type on the
// request: extract cookie, decode, check type, resolve the user by the
// sub claim. Each step fails terminally with an Unauthorized outcome.
func (m *SessionMiddleware) RequireToken(expected domain.TokenType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := c.Cookies(expected.CookieName())
		if tokenStr == "" {
			return apperrors.NewUnauthorized("authentication credentials were not provided")
		}

		claims, err := m.tokens.Parse(tokenStr)
		if err != nil {
			return apperrors.NewInvalidToken()
		}

		if claims.TokenType != expected {
			return apperrors.NewWrongTokenType(string(claims.TokenType), string(expected))
		}

		userID, err := claims.SubjectID()
		if err != nil {
			return apperrors.NewInvalidToken()
		}

		user, err := m.users.GetByID(c.Context(), userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewUserNotFound()
			}
			return apperrors.NewStorageUnavailable(err)
		}

		c.Locals(sessionUserKey, user)
		return c.Next()
	}
}

// RequireActive rejects sessions whose account has been deactivated.
// It must run after RequireToken.
func RequireActive() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := UserFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication credentials were not provided")
		}
		if !user.IsActive {
			return apperrors.NewInactiveAccount()
		}
		return c.Next()
	}
}

// UserFromContext retrieves the resolved session user.
func UserFromContext(c *fiber.Ctx) (*domain.User, bool) {
	val := c.Locals(sessionUserKey)
	if val == nil {
		return nil, false
	}
	user, ok := val.(*domain.User)
	return user, ok
}
