// Package auth runs the login flow: credentials in, a persisted session and a
// dashboard redirect out. It also owns registration, OTP verification and
// password reset, which share the same API client and session store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tajious/medsync/internal/apiclient"
	"github.com/tajious/medsync/internal/logger"
	"github.com/tajious/medsync/internal/metrics"
	"github.com/tajious/medsync/internal/models"
	"github.com/tajious/medsync/internal/roles"
	"github.com/tajious/medsync/internal/session"
	"github.com/tajious/medsync/internal/token"
	"github.com/tajious/medsync/internal/validation"
)

type State string

const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
	StateActive         State = "active"
	StateLoggedOut      State = "logged_out"
	StateError          State = "error"
)

const (
	providerRemote = "remote"
	providerDemo   = "demo"

	msgInvalidCredentials = "Invalid credentials"
	msgInvalidLogin       = "Invalid user ID or password. Please try again."
	msgNetworkFallback    = "Network error contacting auth server. Trying local login..."
	msgNetwork            = "Network error contacting auth server."
	msgIndeterminateRole  = "Error: Could not determine user role for redirection"
	msgUnauthorized       = "Unauthorized - please login."
)

// Result is where the flow ended up and where the browser goes next.
type Result struct {
	State    State        `json:"state"`
	Role     models.Role  `json:"role,omitempty"`
	Redirect string       `json:"redirect,omitempty"`
	Message  string       `json:"message,omitempty"`
	Provider string       `json:"provider,omitempty"`
	User     *models.User `json:"user,omitempty"`
	// Speculative marks a redirect guessed from an identifier after an
	// access-denied answer. No session backs it.
	Speculative bool `json:"speculative,omitempty"`
	// Identifier is the code assigned by a simulated registration.
	Identifier string `json:"identifier,omitempty"`
	// SessionID is the id a successful login stored the session under. It
	// replaces the id the request arrived with.
	SessionID string `json:"-"`
}

type Options struct {
	Store session.Store
	API   *apiclient.Client
	// Remote defaults to a RemoteProvider over API.
	Remote Provider
	// Demo enables the offline fallback and simulated registration when set.
	Demo                 *DemoProvider
	Logger               *logger.Logger
	Metrics              *metrics.Metrics
	AccessDeniedRecovery bool
	OTPTTL               time.Duration
	Now                  func() time.Time
}

type Service struct {
	store                session.Store
	api                  *apiclient.Client
	remote               Provider
	demo                 *DemoProvider
	log                  *logger.Logger
	metrics              *metrics.Metrics
	accessDeniedRecovery bool
	otpTTL               time.Duration
	now                  func() time.Time
}

func NewService(opts Options) *Service {
	s := &Service{
		store:                opts.Store,
		api:                  opts.API,
		remote:               opts.Remote,
		demo:                 opts.Demo,
		log:                  opts.Logger,
		metrics:              opts.Metrics,
		accessDeniedRecovery: opts.AccessDeniedRecovery,
		otpTTL:               opts.OTPTTL,
		now:                  opts.Now,
	}
	if s.remote == nil {
		s.remote = NewRemoteProvider(opts.API)
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.otpTTL <= 0 {
		s.otpTTL = 120 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) DemoEnabled() bool {
	return s.demo != nil
}

// Login validates the form, authenticates against the API and, when the API
// cannot be reached, against the demo registry. On success the session is
// persisted and the result redirects to the role's dashboard.
func (s *Service) Login(ctx context.Context, sessionID string, form LoginForm) (*Result, error) {
	form.Normalize("")
	if err := validation.ValidateStruct(form); err != nil {
		return &Result{State: StateAnonymous, Message: "Please enter both ID and password"}, err
	}

	creds := Credentials{Identifier: form.Identifier, Password: form.Password}
	ctx = s.log.WithFields(ctx, map[string]any{"identifier": creds.Identifier, "state": StateAuthenticating})
	s.log.Debug(ctx, "login.start")

	grant, err := s.remote.Authenticate(ctx, creds)
	if err == nil {
		return s.establish(ctx, sessionID, grant, providerRemote)
	}

	var apiErr *apiclient.APIError
	switch {
	case errors.As(err, &apiErr):
		s.metrics.LoginAttempt(providerRemote, "rejected")
		res := &Result{State: StateAnonymous, Message: apiErr.Message}
		if res.Message == "" {
			res.Message = msgInvalidCredentials
		}
		if s.accessDeniedRecovery && strings.Contains(strings.ToLower(apiErr.Message), "access denied") {
			if speculative := s.speculativeRedirect(ctx, creds.Identifier, apiErr.GeneratedCode); speculative != nil {
				return speculative, nil
			}
		}
		return res, fmt.Errorf("%w: %w", ErrInvalidCredentials, apiErr)

	case errors.Is(err, apiclient.ErrUnreachable):
		s.log.Warn(ctx, "login.remote_unreachable")
		if s.demo == nil {
			s.metrics.LoginAttempt(providerRemote, "unreachable")
			return &Result{State: StateAnonymous, Message: msgNetwork}, err
		}
		s.log.Info(ctx, msgNetworkFallback)
		grant, err := s.demo.Authenticate(ctx, creds)
		if err != nil {
			s.metrics.LoginAttempt(providerDemo, "rejected")
			if !errors.Is(err, ErrInvalidCredentials) {
				s.log.Error(ctx, "login.demo_failed", err)
			}
			return &Result{State: StateAnonymous, Message: msgInvalidLogin}, err
		}
		return s.establish(ctx, sessionID, grant, providerDemo)

	default:
		s.metrics.LoginAttempt(providerRemote, "error")
		s.log.Error(ctx, "login.failed", err)
		return &Result{State: StateAnonymous, Message: "Login failed. Please try again."}, err
	}
}

// establish infers the role from a grant and persists the session. An
// indeterminate role persists nothing.
func (s *Service) establish(ctx context.Context, sessionID string, grant *Grant, provider string) (*Result, error) {
	if grant.User == nil {
		grant.User = &models.UserPayload{}
	}
	claims := token.Decode(grant.Token)
	match, err := roles.FromUser(grant.User, claims)
	if err != nil {
		s.metrics.LoginAttempt(provider, "indeterminate_role")
		ctx = s.log.WithFields(ctx, map[string]any{
			"provider":       provider,
			"claims_role":    claims.Role(),
			"user_code":      grant.User.UserCode.String(),
			"user_id_field":  grant.User.Identifier(),
			"user_role_text": grant.User.RoleText(),
		})
		s.log.Error(ctx, "login.indeterminate_role", err)
		return &Result{State: StateError, Message: msgIndeterminateRole, Provider: provider}, err
	}

	// An authenticated session never lives under the pre-login id.
	if err := s.store.Clear(ctx, sessionID); err != nil {
		s.metrics.LoginAttempt(provider, "error")
		s.log.Error(ctx, "login.session_clear_failed", err)
		return &Result{State: StateAnonymous, Message: "Login failed. Please try again."}, err
	}
	rotated := uuid.NewString()
	user := grant.User.Record(match.Role)
	if err := s.store.Set(ctx, rotated, &models.Session{User: user, Token: grant.Token}); err != nil {
		s.metrics.LoginAttempt(provider, "error")
		s.log.Error(ctx, "login.session_store_failed", err)
		return &Result{State: StateAnonymous, Message: "Login failed. Please try again."}, err
	}

	s.metrics.LoginAttempt(provider, "success")
	ctx = s.log.WithFields(ctx, map[string]any{
		"provider":    provider,
		"role":        match.Role.String(),
		"role_source": string(match.Source),
	})
	s.log.Info(ctx, "login.success")

	return &Result{
		State:     StateAuthenticated,
		Role:      match.Role,
		Redirect:  match.Role.DashboardPath(),
		Provider:  provider,
		User:      user,
		SessionID: rotated,
	}, nil
}

func (s *Service) speculativeRedirect(ctx context.Context, identifier, generatedCode string) *Result {
	candidate := identifier
	if candidate == "" || strings.Contains(candidate, "@") {
		candidate = generatedCode
	}
	role := roles.FromIdentifier(candidate)
	if !role.Known() {
		return nil
	}
	s.metrics.LoginAttempt(providerRemote, "speculative")
	s.log.Warn(s.log.WithField(ctx, "role", role.String()), "login.access_denied_redirect")
	return &Result{
		State:       StateAnonymous,
		Role:        role,
		Redirect:    role.DashboardPath(),
		Message:     "Redirecting to " + role.Title() + " dashboard...",
		Speculative: true,
	}
}

func (s *Service) Logout(ctx context.Context, sessionID string) (*Result, error) {
	if err := s.store.Clear(ctx, sessionID); err != nil {
		return nil, err
	}
	s.log.Info(ctx, "logout")
	return &Result{State: StateLoggedOut, Redirect: "/"}, nil
}

// Expire handles a 401 from an authenticated API call: the whole session is
// purged and the browser is sent to login.
func (s *Service) Expire(ctx context.Context, sessionID string) (*Result, error) {
	if err := s.store.Clear(ctx, sessionID); err != nil {
		return nil, err
	}
	s.log.Warn(ctx, "session.expired_by_api")
	return &Result{State: StateAnonymous, Redirect: "/login", Message: msgUnauthorized}, nil
}

func (s *Service) Status(ctx context.Context, sessionID string) (*Result, error) {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Authenticated() {
		return &Result{State: StateAnonymous}, nil
	}
	return &Result{State: StateActive, Role: sess.User.Role, User: sess.User}, nil
}

// Session returns the stored session, or nil when there is none.
func (s *Service) Session(ctx context.Context, sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, nil
	}
	sess, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNoSession) {
		return nil, nil
	}
	return sess, err
}

// UpdateProfile replaces the signed-in user's whole record; role and
// identifier are kept.
func (s *Service) UpdateProfile(ctx context.Context, sessionID string, form ProfileForm) (*models.User, error) {
	if err := validation.ValidateStruct(form); err != nil {
		return nil, err
	}
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Authenticated() {
		return nil, session.ErrNoSession
	}

	sess.User = sess.User.ReplaceProfile(form.Profile())
	if err := s.store.Set(ctx, sessionID, sess); err != nil {
		return nil, err
	}
	s.log.Info(s.log.WithField(ctx, "role", sess.User.Role.String()), "profile.updated")
	return sess.User, nil
}
