package services

import "time"

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	DeviceID string `json:"device_id" validate:"max=128"`
	OriginIP string `json:"origin_ip" validate:"omitempty,ip"`
}

type GoogleLoginRequest struct {
	IDToken  string `json:"id_token" validate:"required"`
	DeviceID string `json:"device_id" validate:"max=128"`
	OriginIP string `json:"origin_ip" validate:"omitempty,ip"`
}

type RegisterRequest struct {
	Email           string `json:"email" validate:"required,email,max=256"`
	Password        string `json:"password" validate:"required,strong_password"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	EmployeeCode    string `json:"employee_code" validate:"required,max=32"`
	FirstName       string `json:"first_name" validate:"required,max=100"`
	LastName        string `json:"last_name" validate:"required,max=100"`
	PhoneNumber     string `json:"phone_number" validate:"omitempty,max=20"`
}

type ForgotPasswordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	OriginIP string `json:"origin_ip" validate:"omitempty,ip"`
}

type ResetPasswordRequest struct {
	Token           string `json:"token" validate:"required,max=128"`
	Code            string `json:"code" validate:"required,numeric,max=12"`
	NewPassword     string `json:"new_password" validate:"required,strong_password"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required,max=128"`
	Code  string `json:"code" validate:"required,numeric,max=12"`
}

type RefreshTokenRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required,max=128"`
	DeviceID     string `json:"device_id" validate:"max=128"`
	OriginIP     string `json:"origin_ip" validate:"omitempty,ip"`
}

// ChangePasswordRequest.AccountID must come from a verified access token.
type ChangePasswordRequest struct {
	AccountID       string `json:"-" validate:"required"`
	OldPassword     string `json:"old_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,strong_password"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// AccountSummary is the caller-facing view of an account.
type AccountSummary struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	FullName      string   `json:"full_name"`
	AvatarURL     string   `json:"avatar_url,omitempty"`
	Department    string   `json:"department,omitempty"`
	Position      string   `json:"position,omitempty"`
	Roles         []string `json:"roles"`
	EmailVerified bool     `json:"email_verified"`
	Status        string   `json:"status"`
}

// TokenPair bundles a short-lived access token and an opaque refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type AuthResult struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	ExpiresAt    time.Time      `json:"expires_at"`
	Account      AccountSummary `json:"account"`
}

type MessageResult struct {
	Message string `json:"message"`
}

const (
	MsgRegistered     = "Registration successful. Please check your email to verify your account."
	MsgResetRequested = "If the email exists, password reset instructions have been sent."
	MsgPasswordReset  = "Your password has been reset. Please sign in again."
	MsgEmailVerified  = "Your email has been verified."
	MsgPasswordChange = "Your password has been changed."
	MsgLoggedOut      = "You have been signed out."
)
