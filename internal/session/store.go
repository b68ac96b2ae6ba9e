// Package session persists per-browser session state: the current user
// record, the bearer token and any registration awaiting OTP verification.
//
// A session is populated at login and cleared at logout or when the API
// answers 401. Reads and writes are atomic per call; a reader never sees a
// user without its token or the other way round.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/tajious/medsync/internal/models"
)

var ErrNoSession = errors.New("session not found")

// Stored keys. The token is written under two keys for clients that read
// either one.
const (
	KeyCurrentUser = "currentUser"
	KeyJWTToken    = "jwtToken"
	KeyAuthToken   = "authToken"
	KeyPending     = "pendingRegistration"
)

var allKeys = []string{KeyCurrentUser, KeyJWTToken, KeyAuthToken, KeyPending}

type Store interface {
	// Get returns ErrNoSession when nothing is stored under id.
	Get(ctx context.Context, id string) (*models.Session, error)
	// Set replaces everything stored under id.
	Set(ctx context.Context, id string, s *models.Session) error
	Clear(ctx context.Context, id string) error
}

func encode(s *models.Session) (map[string]string, error) {
	out := make(map[string]string, len(allKeys))
	if s == nil {
		return out, nil
	}
	if s.User != nil {
		b, err := json.Marshal(s.User)
		if err != nil {
			return nil, fmt.Errorf("encoding current user: %w", err)
		}
		out[KeyCurrentUser] = string(b)
	}
	if s.Token != "" {
		out[KeyJWTToken] = s.Token
		out[KeyAuthToken] = s.Token
	}
	if s.Pending != nil {
		b, err := json.Marshal(s.Pending)
		if err != nil {
			return nil, fmt.Errorf("encoding pending registration: %w", err)
		}
		out[KeyPending] = string(b)
	}
	return out, nil
}

func decode(values map[string]string) (*models.Session, error) {
	if len(values) == 0 {
		return nil, ErrNoSession
	}
	s := &models.Session{Token: values[KeyJWTToken]}
	if s.Token == "" {
		s.Token = values[KeyAuthToken]
	}
	if raw := values[KeyCurrentUser]; raw != "" {
		var u models.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return nil, fmt.Errorf("decoding current user: %w", err)
		}
		s.User = &u
	}
	if raw := values[KeyPending]; raw != "" {
		var p models.PendingRegistration
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("decoding pending registration: %w", err)
		}
		s.Pending = &p
	}
	return s, nil
}
