// Package gate decides whether a session may enter a role-partitioned view.
//
// The decision is a user-experience check only. The MedSync API is the
// authority: it must reject any request whose bearer token does not carry
// the role the endpoint requires, whatever this package allowed.
package gate

import (
	"net/url"
	"strings"

	"github.com/tajious/medsync/internal/models"
)

const DeniedMessage = "Access denied. Please login with the correct role."

type Outcome int

const (
	Allow Outcome = iota
	RedirectToLogin
	DenyWithMessage
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect_to_login"
	case DenyWithMessage:
		return "deny"
	default:
		return "unknown"
	}
}

type Decision struct {
	Outcome Outcome
	// From is the location originally requested, set on RedirectToLogin so
	// the login flow can return there.
	From    string
	Message string
}

// Authorize is recomputed on every navigation and keeps no state.
func Authorize(required models.Role, sess *models.Session, from string) Decision {
	if !sess.Authenticated() {
		return Decision{Outcome: RedirectToLogin, From: from}
	}
	if !required.Known() || !strings.EqualFold(string(sess.User.Role), string(required)) {
		return Decision{Outcome: DenyWithMessage, Message: DeniedMessage}
	}
	return Decision{Outcome: Allow}
}

// LoginLocation is where a RedirectToLogin decision sends the browser.
func (d Decision) LoginLocation() string {
	if d.From == "" {
		return "/login"
	}
	return "/login?from=" + url.QueryEscape(d.From)
}
