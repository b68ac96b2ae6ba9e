package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tajious/medsync/internal/apiclient"
	"github.com/tajious/medsync/internal/models"
	"github.com/tajious/medsync/internal/storage"
	"github.com/tajious/medsync/internal/token"
	"golang.org/x/crypto/bcrypt"
)

type Credentials struct {
	// Identifier is a user code such as D045, or an email address.
	Identifier string
	Password   string
}

func (c Credentials) IsEmail() bool {
	return strings.Contains(c.Identifier, "@")
}

// Grant is what a provider hands back on success: the user as the API
// shapes it, and a bearer token (possibly empty).
type Grant struct {
	User  *models.UserPayload
	Token string
}

type Provider interface {
	Authenticate(ctx context.Context, creds Credentials) (*Grant, error)
}

// RemoteProvider authenticates against the MedSync API. It is the only
// provider whose grants the API will honour.
type RemoteProvider struct {
	api *apiclient.Client
}

func NewRemoteProvider(api *apiclient.Client) *RemoteProvider {
	return &RemoteProvider{api: api}
}

func (p *RemoteProvider) Authenticate(ctx context.Context, creds Credentials) (*Grant, error) {
	req := apiclient.LoginRequest{Password: creds.Password}
	if creds.IsEmail() {
		req.Email = creds.Identifier
	} else {
		req.Identifier = creds.Identifier
	}

	resp, err := p.api.Login(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Grant{User: resp.User, Token: resp.Token}, nil
}

// DemoProvider is the offline demo login used only when the API cannot be
// reached. Its registry lives on this server, its tokens are unsigned and
// the API rejects them. It is a convenience for development, not a trust
// boundary.
type DemoProvider struct {
	registry storage.Registry
	tokenTTL time.Duration
}

func NewDemoProvider(registry storage.Registry, tokenTTL time.Duration) *DemoProvider {
	return &DemoProvider{registry: registry, tokenTTL: tokenTTL}
}

func (p *DemoProvider) Authenticate(ctx context.Context, creds Credentials) (*Grant, error) {
	user, err := p.registry.FindByIdentifier(ctx, creds.Identifier)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	tok, err := token.MintUnsigned(user.Code, user.Role.Title(), user.FullName, p.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("minting demo token: %w", err)
	}
	return &Grant{User: user.Payload(), Token: tok}, nil
}

// Enroll stores a verified simulated registration and returns it with its
// new identifier.
func (p *DemoProvider) Enroll(ctx context.Context, pending *models.PendingRegistration) (*models.RegisteredUser, error) {
	user := &models.RegisteredUser{
		Role:         pending.Role,
		FullName:     pending.FullName,
		Email:        pending.Email,
		Department:   pending.Department,
		PasswordHash: pending.PasswordHash,
	}
	if err := p.registry.Register(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (p *DemoProvider) Registry() storage.Registry {
	return p.registry
}
