package apiclient

import (
	"context"
	"net/http"

	"github.com/tajious/medsync/internal/models"
)

// LoginRequest carries either Email or Identifier, never both.
type LoginRequest struct {
	Email      string `json:"email,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	Password   string `json:"password"`
}

type LoginResponse struct {
	User  *models.UserPayload
	Token string
}

type loginBody struct {
	User        *models.UserPayload `json:"user"`
	Token       models.LooseString  `json:"token"`
	AccessToken models.LooseString  `json:"accessToken"`
	JWT         models.LooseString  `json:"jwt"`
}

type RegisterRequest struct {
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
}

type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

type MessageResponse struct {
	Message string              `json:"message"`
	User    *models.UserPayload `json:"user,omitempty"`
}

// Login posts credentials. The token may come back as token, accessToken or
// jwt; when the body has no user object the body itself is the user.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	raw, err := c.do(ctx, "login", http.MethodPost, "/api/auth/login", "", req, "Invalid credentials")
	if err != nil {
		return nil, err
	}

	var body loginBody
	if err := decodeInto(raw, &body); err != nil {
		return nil, err
	}
	if body.User == nil {
		body.User = &models.UserPayload{}
		if err := decodeInto(raw, body.User); err != nil {
			return nil, err
		}
	}

	tok := body.Token.String()
	if tok == "" {
		tok = body.AccessToken.String()
	}
	if tok == "" {
		tok = body.JWT.String()
	}
	return &LoginResponse{User: body.User, Token: tok}, nil
}

// Register submits a registration; the API answers by mailing an OTP.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*MessageResponse, error) {
	return c.message(ctx, "register", "/api/auth/register", req, "Registration failed")
}

func (c *Client) VerifyOTP(ctx context.Context, req VerifyOTPRequest) (*MessageResponse, error) {
	return c.message(ctx, "verify_otp", "/api/auth/verify-otp", req, "OTP verification failed")
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (*MessageResponse, error) {
	body := map[string]string{"email": email}
	return c.message(ctx, "forgot_password", "/api/auth/forgot-password", body, "Email not registered")
}

func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) (*MessageResponse, error) {
	return c.message(ctx, "reset_password", "/api/auth/reset-password", req, "Invalid OTP or server error")
}

func (c *Client) message(ctx context.Context, endpoint, path string, body any, fallback string) (*MessageResponse, error) {
	raw, err := c.do(ctx, endpoint, http.MethodPost, path, "", body, fallback)
	if err != nil {
		return nil, err
	}
	var out MessageResponse
	if err := decodeInto(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
