package auth

import "errors"

var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrRejected              = errors.New("rejected by auth server")
	ErrNoPendingRegistration = errors.New("no pending registration")
	ErrOTPExpired            = errors.New("otp expired")
	ErrInvalidOTP            = errors.New("invalid otp")
)
