package auth

import (
	"strings"

	"github.com/tajious/medsync/internal/models"
)

type LoginForm struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// Normalize accepts the email field some clients send instead of
// identifier.
func (f *LoginForm) Normalize(email string) {
	f.Identifier = strings.TrimSpace(f.Identifier)
	if f.Identifier == "" {
		f.Identifier = strings.TrimSpace(email)
	}
}

type RegisterForm struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
	Password   string `json:"password" validate:"required,min=6"`
	Role       string `json:"role" validate:"required,oneof=patient doctor staff pharmacy"`
	Department string `json:"department" validate:"required_if=Role doctor"`
}

func (f *RegisterForm) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Role = strings.ToLower(strings.TrimSpace(f.Role))
	if f.Role == "" {
		f.Role = string(models.RolePatient)
	}
	f.Department = strings.TrimSpace(f.Department)
}

type VerifyOTPForm struct {
	OTP string `json:"otp" validate:"required"`
}

// ResendOTPForm needs the password again on the email path: the pending
// registration keeps only its hash.
type ResendOTPForm struct {
	Password string `json:"password"`
}

type ForgotPasswordForm struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordForm struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"otp"`
	NewPassword string `json:"new_password" validate:"strongpw"`
}

type ProfileForm struct {
	FullName   string `json:"full_name" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone" validate:"omitempty,max=20"`
	DOB        string `json:"dob" validate:"omitempty,datetime=2006-01-02"`
	Address    string `json:"address" validate:"omitempty,max=200"`
	Gender     string `json:"gender"`
	Department string `json:"department"`
}

func (f ProfileForm) Profile() models.Profile {
	return models.Profile{
		FullName:   strings.TrimSpace(f.FullName),
		Email:      strings.TrimSpace(f.Email),
		Phone:      strings.TrimSpace(f.Phone),
		DOB:        f.DOB,
		Address:    strings.TrimSpace(f.Address),
		Gender:     f.Gender,
		Department: f.Department,
	}
}
