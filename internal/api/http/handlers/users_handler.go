package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/registration-service/internal/api/dto"
	"github.com/spec-kit/registration-service/internal/auth"
	"github.com/spec-kit/registration-service/internal/domain"
	"github.com/spec-kit/registration-service/internal/service"
	apperrors "github.com/spec-kit/registration-service/pkg/util"
)

// UsersHandler exposes registration and session endpoints.
type UsersHandler struct {
	auth *service.AuthService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService) *UsersHandler {
	return &UsersHandler{auth: authService}
}

// Register handles POST /api/v1/auth/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Username == "" || req.Password == "" || req.Email == "" {
		return apperrors.NewValidationError("username, password, email required", nil)
	}

	user, err := h.auth.Register(c.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(dto.UserOperationResponse{
		Msg:      "User created successfully!",
		Username: user.Username,
		Email:    user.Email,
	})
}

// Login handles POST /api/v1/auth/login. On success both tokens are
// set as http-only cookies and returned in the body.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Username == "" || req.Password == "" {
		return apperrors.NewValidationError("username and password required", nil)
	}

	_, pair, err := h.auth.Login(c.Context(), req.Username, req.Password)
	if err != nil {
		return err
	}

	setTokenCookie(c, domain.TokenTypeAccess, pair.AccessToken, pair.AccessExpiresAt)
	setTokenCookie(c, domain.TokenTypeRefresh, pair.RefreshToken, pair.RefreshExpiresAt)

	return c.JSON(dto.TokenInfo{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
	})
}

// Logout handles POST /api/v1/auth/logout by clearing both cookies.
// Issued tokens stay valid until their natural expiry.
func (h *UsersHandler) Logout(c *fiber.Ctx) error {
	clearTokenCookie(c, domain.TokenTypeAccess)
	clearTokenCookie(c, domain.TokenTypeRefresh)
	return c.JSON(dto.UserOperationResponse{Msg: "Logged out successfully!"})
}

// Refresh handles POST /api/v1/auth/refresh. Requires a valid refresh
// token cookie and mints a fresh access token.
func (h *UsersHandler) Refresh(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication credentials were not provided")
	}

	token, exp, err := h.auth.Refresh(user)
	if err != nil {
		return err
	}

	setTokenCookie(c, domain.TokenTypeAccess, token, exp)

	return c.JSON(dto.TokenInfo{
		AccessToken: token,
		TokenType:   "Bearer",
	})
}

// Me handles GET /api/v1/auth/users/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication credentials were not provided")
	}
	return c.JSON(fiber.Map{
		"username": user.Username,
		"email":    user.Email,
	})
}

// ChangePassword handles PATCH /api/v1/auth/change_password.
func (h *UsersHandler) ChangePassword(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication credentials were not provided")
	}

	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return apperrors.NewValidationError("current and new password required", nil)
	}

	if err := h.auth.ChangePassword(c.Context(), user, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}

	return c.JSON(dto.UserOperationResponse{
		Msg:      "Password updated successfully!",
		Username: user.Username,
		Email:    user.Email,
	})
}

// Deactivate handles DELETE /api/v1/auth/deactivate_user_account.
func (h *UsersHandler) Deactivate(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication credentials were not provided")
	}

	if err := h.auth.Deactivate(c.Context(), user); err != nil {
		return err
	}

	return c.JSON(dto.UserOperationResponse{
		Msg:      "User deactivated successfully!",
		Username: user.Username,
		Email:    user.Email,
	})
}

// RequestPasswordReset handles POST /api/v1/auth/password/reset/request.
// The response is uniform whether or not the account exists; the reset
// token is delivered out of band by the notification pipeline.
func (h *UsersHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Username == "" {
		return apperrors.NewValidationError("username required", nil)
	}

	if err := h.auth.RequestPasswordReset(c.Context(), req.Username); err != nil {
		return err
	}

	return c.Status(http.StatusAccepted).JSON(dto.UserOperationResponse{
		Msg: "If the account exists, a password reset email has been sent.",
	})
}

// ConfirmPasswordReset handles POST /api/v1/auth/password/reset/confirm.
func (h *UsersHandler) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Token == "" || req.NewPassword == "" {
		return apperrors.NewValidationError("token and new password required", nil)
	}

	if err := h.auth.ConfirmPasswordReset(c.Context(), req.Token, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(dto.UserOperationResponse{Msg: "Password updated successfully!"})
}

func setTokenCookie(c *fiber.Ctx, tokenType domain.TokenType, value string, expiresAt time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     tokenType.CookieName(),
		Value:    value,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteNoneMode,
	})
}

func clearTokenCookie(c *fiber.Ctx, tokenType domain.TokenType) {
	c.Cookie(&fiber.Cookie{
		Name:     tokenType.CookieName(),
		Value:    "",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteNoneMode,
	})
}
