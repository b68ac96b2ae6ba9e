package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/tajious/medsync/internal/apiclient"
	"github.com/tajious/medsync/internal/models"
	"github.com/tajious/medsync/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

const (
	msgOTPSent           = "OTP sent (check your email)"
	msgOTPSimulated      = "No email provided; using a simulated OTP."
	msgNoPending         = "No OTP sent. Please register first."
	msgOTPExpired        = "OTP expired. Please resend."
	msgInvalidOTP        = "Invalid OTP"
	msgRegisterNetwork   = "Network error when sending OTP"
	msgVerifyNetwork     = "Network error when verifying OTP"
	msgResetNetwork      = "Network error. Try again."
	msgResetCodeSent     = "Check your inbox for the 6-digit OTP."
	msgPasswordUpdated   = "Password updated successfully. Redirecting to login..."
	msgVerifiedFallback  = "OTP verified successfully!"
	msgOfflineRegistered = "Registration successful! Your ID: %s. Redirecting..."
)

// Register starts a registration. With an email the API mails an OTP;
// without one (demo mode only) a simulated OTP is generated and logged.
func (s *Service) Register(ctx context.Context, sessionID string, form RegisterForm) (*Result, error) {
	form.Normalize()
	if err := validation.ValidateStruct(form); err != nil {
		return &Result{State: StateAnonymous, Message: "Please fix the highlighted fields"}, err
	}
	if form.Email == "" && s.demo == nil {
		return &Result{State: StateAnonymous, Message: "Please fix the highlighted fields"},
			validation.Errors{"email": "This field is required"}
	}

	role := models.ParseRole(form.Role)
	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	pending := &models.PendingRegistration{
		FullName:     form.Name,
		Email:        form.Email,
		Role:         role,
		Department:   form.Department,
		PasswordHash: string(hash),
		Simulated:    form.Email == "",
	}
	ctx = s.log.WithFields(ctx, map[string]any{"role": role.String(), "simulated": pending.Simulated})

	message := msgOTPSent
	if pending.Simulated {
		if err := s.issueSimulatedOTP(ctx, pending); err != nil {
			return nil, err
		}
		message = msgOTPSimulated
	} else {
		resp, res, err := s.postRegistration(ctx, pending, form.Password)
		if err != nil {
			return res, err
		}
		if resp.Message != "" {
			message = resp.Message
		}
	}

	pending.ExpiresAt = s.now().Add(s.otpTTL)
	if err := s.savePending(ctx, sessionID, pending); err != nil {
		return nil, err
	}
	s.log.Info(ctx, "registration.otp_issued")
	return &Result{State: StateAnonymous, Message: message}, nil
}

// VerifyOTP completes the pending registration.
func (s *Service) VerifyOTP(ctx context.Context, sessionID string, form VerifyOTPForm) (*Result, error) {
	form.OTP = strings.TrimSpace(form.OTP)
	if err := validation.ValidateStruct(form); err != nil {
		return &Result{State: StateAnonymous, Message: "Enter OTP"}, err
	}

	sess, pending, res, err := s.pending(ctx, sessionID)
	if err != nil {
		return res, err
	}
	if pending.Expired(s.now()) {
		return &Result{State: StateAnonymous, Message: msgOTPExpired}, ErrOTPExpired
	}

	if pending.Simulated {
		if s.demo == nil {
			return &Result{State: StateAnonymous, Message: msgNoPending}, ErrNoPendingRegistration
		}
		if form.OTP != pending.OTP {
			return &Result{State: StateAnonymous, Message: msgInvalidOTP}, ErrInvalidOTP
		}
		user, err := s.demo.Enroll(ctx, pending)
		if err != nil {
			s.log.Error(ctx, "registration.enroll_failed", err)
			return nil, err
		}
		if err := s.clearPending(ctx, sessionID, sess); err != nil {
			return nil, err
		}
		s.log.Info(s.log.WithFields(ctx, map[string]any{"code": user.Code, "role": user.Role.String()}), "registration.completed")
		return &Result{
			State:      StateAnonymous,
			Role:       user.Role,
			Identifier: user.Code,
			Message:    fmt.Sprintf(msgOfflineRegistered, user.Code),
			Redirect:   user.Role.LoginPath(),
		}, nil
	}

	resp, err := s.api.VerifyOTP(ctx, apiclient.VerifyOTPRequest{Email: pending.Email, OTP: form.OTP})
	if err != nil {
		return s.apiFailure(ctx, "registration.verify_failed", msgVerifyNetwork, err)
	}

	role := pending.Role
	var identifier string
	if resp.User != nil {
		if r := models.ParseRole(resp.User.RoleText()); r.Known() {
			role = r
		}
		identifier = resp.User.Record(role).ID
	}
	if err := s.clearPending(ctx, sessionID, sess); err != nil {
		return nil, err
	}

	message := resp.Message
	if message == "" {
		message = msgVerifiedFallback
	}
	s.log.Info(s.log.WithField(ctx, "role", role.String()), "registration.completed")
	return &Result{
		State:      StateAnonymous,
		Role:       role,
		Identifier: identifier,
		Message:    message,
		Redirect:   role.LoginPath(),
	}, nil
}

// ResendOTP re-issues the code for the pending registration and restarts its
// timer. The email path re-posts the registration, so the password is needed
// again and is checked against the stored hash.
func (s *Service) ResendOTP(ctx context.Context, sessionID string, form ResendOTPForm) (*Result, error) {
	sess, pending, res, err := s.pending(ctx, sessionID)
	if err != nil {
		return res, err
	}

	message := msgOTPSent
	if pending.Simulated {
		if err := s.issueSimulatedOTP(ctx, pending); err != nil {
			return nil, err
		}
		message = msgOTPSimulated
	} else {
		if form.Password == "" {
			return &Result{State: StateAnonymous, Message: "Enter your password to resend the OTP"},
				validation.Errors{"password": "This field is required"}
		}
		if bcrypt.CompareHashAndPassword([]byte(pending.PasswordHash), []byte(form.Password)) != nil {
			return &Result{State: StateAnonymous, Message: "Password does not match the registration"},
				validation.Errors{"password": "Password does not match the registration"}
		}
		resp, res, err := s.postRegistration(ctx, pending, form.Password)
		if err != nil {
			return res, err
		}
		if resp.Message != "" {
			message = resp.Message
		}
	}

	pending.ExpiresAt = s.now().Add(s.otpTTL)
	sess.Pending = pending
	if err := s.store.Set(ctx, sessionID, sess); err != nil {
		return nil, err
	}
	s.log.Info(ctx, "registration.otp_resent")
	return &Result{State: StateAnonymous, Message: message}, nil
}

func (s *Service) ForgotPassword(ctx context.Context, form ForgotPasswordForm) (*Result, error) {
	form.Email = strings.TrimSpace(form.Email)
	if err := validation.ValidateStruct(form); err != nil {
		return &Result{State: StateAnonymous, Message: "Please enter a valid email address"}, err
	}

	resp, err := s.api.ForgotPassword(ctx, form.Email)
	if err != nil {
		return s.apiFailure(ctx, "password.forgot_failed", msgResetNetwork, err)
	}
	message := resp.Message
	if message == "" {
		message = msgResetCodeSent
	}
	return &Result{State: StateAnonymous, Message: message}, nil
}

func (s *Service) ResetPassword(ctx context.Context, form ResetPasswordForm) (*Result, error) {
	form.Email = strings.TrimSpace(form.Email)
	form.OTP = strings.TrimSpace(form.OTP)
	if err := validation.ValidateStruct(form); err != nil {
		return &Result{State: StateAnonymous, Message: "Please fix the highlighted fields"}, err
	}

	_, err := s.api.ResetPassword(ctx, apiclient.ResetPasswordRequest{
		Email:       form.Email,
		OTP:         form.OTP,
		NewPassword: form.NewPassword,
	})
	if err != nil {
		return s.apiFailure(ctx, "password.reset_failed", msgResetNetwork, err)
	}
	s.log.Info(ctx, "password.reset")
	return &Result{State: StateAnonymous, Message: msgPasswordUpdated, Redirect: "/login"}, nil
}

func (s *Service) postRegistration(ctx context.Context, pending *models.PendingRegistration, password string) (*apiclient.MessageResponse, *Result, error) {
	resp, err := s.api.Register(ctx, apiclient.RegisterRequest{
		FullName:   pending.FullName,
		Email:      pending.Email,
		Password:   password,
		Role:       pending.Role.Title(),
		Department: pending.Department,
	})
	if err != nil {
		res, err := s.apiFailure(ctx, "registration.submit_failed", msgRegisterNetwork, err)
		return nil, res, err
	}
	return resp, nil, nil
}

// apiFailure turns an API client error into a result: the API's own message
// for rejections, networkMsg when the server could not be reached.
func (s *Service) apiFailure(ctx context.Context, event, networkMsg string, err error) (*Result, error) {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		s.log.Warn(s.log.WithField(ctx, "status", apiErr.Status), event)
		return &Result{State: StateAnonymous, Message: apiErr.Message}, fmt.Errorf("%w: %w", ErrRejected, apiErr)
	}
	s.log.Error(ctx, event, err)
	return &Result{State: StateAnonymous, Message: networkMsg}, err
}

func (s *Service) pending(ctx context.Context, sessionID string) (*models.Session, *models.PendingRegistration, *Result, error) {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return nil, nil, nil, err
	}
	if sess == nil || sess.Pending == nil {
		return nil, nil, &Result{State: StateAnonymous, Message: msgNoPending}, ErrNoPendingRegistration
	}
	return sess, sess.Pending, nil, nil
}

func (s *Service) savePending(ctx context.Context, sessionID string, pending *models.PendingRegistration) error {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		sess = &models.Session{}
	}
	sess.Pending = pending
	return s.store.Set(ctx, sessionID, sess)
}

func (s *Service) clearPending(ctx context.Context, sessionID string, sess *models.Session) error {
	sess.Pending = nil
	return s.store.Set(ctx, sessionID, sess)
}

func (s *Service) issueSimulatedOTP(ctx context.Context, pending *models.PendingRegistration) error {
	otp, err := generateOTP()
	if err != nil {
		return err
	}
	pending.OTP = otp
	s.log.Info(s.log.WithField(ctx, "otp", otp), "registration.simulated_otp")
	return nil
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generating otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
