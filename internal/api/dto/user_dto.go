package dto

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ChangePasswordRequest payload for password rotation.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// PasswordResetRequest payload to start a reset flow.
type PasswordResetRequest struct {
	Username string `json:"username"`
}

// PasswordResetConfirmRequest payload to finish a reset flow.
type PasswordResetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// TokenInfo is the body returned by login and refresh.
type TokenInfo struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
}

// UserOperationResponse echoes the account an operation applied to.
type UserOperationResponse struct {
	Msg      string `json:"msg"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}
