// Package roles infers which dashboard a user belongs to.
//
// Every inference runs through one ordered decision table: the first rule
// that matches wins. Identifier rules look at generated codes such as P003,
// D12 or PH07; name rules look at free-form role text from the API.
package roles

import (
	"errors"
	"strings"

	"github.com/tajious/medsync/internal/models"
	"github.com/tajious/medsync/internal/token"
)

// ErrIndeterminateRole means every source was exhausted. Callers must block
// navigation and surface it instead of picking a default dashboard.
var ErrIndeterminateRole = errors.New("could not determine user role")

type rule struct {
	match func(s string) bool
	role  models.Role
}

func prefix(p string) func(string) bool {
	return func(s string) bool { return strings.HasPrefix(s, p) }
}

func contains(sub string) func(string) bool {
	return func(s string) bool { return strings.Contains(s, sub) }
}

func equals(v string) func(string) bool {
	return func(s string) bool { return s == v }
}

// PH must be tested before P: every pharmacy code also starts with P.
var identifierRules = []rule{
	{prefix("PH"), models.RolePharmacy},
	{prefix("P"), models.RolePatient},
	{prefix("D"), models.RoleDoctor},
	{prefix("S"), models.RoleStaff},
	{contains("PHARM"), models.RolePharmacy},
	{contains("DOCTOR"), models.RoleDoctor},
	{contains("PATIENT"), models.RolePatient},
	{contains("STAFF"), models.RoleStaff},
}

var nameRules = []rule{
	{equals("pharmacy"), models.RolePharmacy},
	{contains("pharm"), models.RolePharmacy},
	{equals("doctor"), models.RoleDoctor},
	{equals("staff"), models.RoleStaff},
	{equals("patient"), models.RolePatient},
}

func evaluate(rules []rule, s string) models.Role {
	if s == "" {
		return models.RoleUnknown
	}
	for _, r := range rules {
		if r.match(s) {
			return r.role
		}
	}
	return models.RoleUnknown
}

// FromIdentifier maps a user identifier to a role by prefix, then by
// substring. Matching is case-insensitive.
func FromIdentifier(id string) models.Role {
	return evaluate(identifierRules, strings.ToUpper(strings.TrimSpace(id)))
}

// FromName maps free-form role text such as "Pharmacist" or "DOCTOR".
func FromName(name string) models.Role {
	return evaluate(nameRules, strings.ToLower(strings.TrimSpace(name)))
}

type Source string

const (
	SourceClaims     Source = "token_claims"
	SourceUserCode   Source = "user_code"
	SourceIdentifier Source = "identifier"
	SourceRoleField  Source = "role_field"
)

// Match is the outcome of FromUser: the role and the source that decided it.
type Match struct {
	Role   models.Role
	Source Source
	Value  string
}

type source struct {
	name  Source
	value func(u *models.UserPayload, c token.Claims) string
	infer func(string) models.Role
}

var userSources = []source{
	{SourceClaims, func(_ *models.UserPayload, c token.Claims) string { return c.Role() }, models.ParseRole},
	{SourceUserCode, func(u *models.UserPayload, _ token.Claims) string { return u.UserCode.String() }, FromIdentifier},
	{SourceIdentifier, func(u *models.UserPayload, _ token.Claims) string { return u.Identifier() }, FromIdentifier},
	{SourceRoleField, func(u *models.UserPayload, _ token.Claims) string { return u.RoleText() }, FromName},
}

// FromUser resolves the role of a freshly authenticated user. Sources are
// tried in order: the token's role claim, the user code, the role-specific
// identifier, then the free-form role field.
func FromUser(u *models.UserPayload, claims token.Claims) (Match, error) {
	if u == nil {
		u = &models.UserPayload{}
	}
	for _, src := range userSources {
		v := src.value(u, claims)
		if v == "" {
			continue
		}
		if role := src.infer(v); role.Known() {
			return Match{Role: role, Source: src.name, Value: v}, nil
		}
	}
	return Match{Role: models.RoleUnknown}, ErrIndeterminateRole
}
