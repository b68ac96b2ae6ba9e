package models

import (
	"strings"
)

type Role string

const (
	RoleUnknown  Role = ""
	RolePatient  Role = "patient"
	RoleDoctor   Role = "doctor"
	RoleStaff    Role = "staff"
	RolePharmacy Role = "pharmacy"
)

// Roles lists every role that owns a dashboard.
var Roles = []Role{RolePatient, RoleDoctor, RoleStaff, RolePharmacy}

// ParseRole matches s against the four role names, ignoring case and
// surrounding whitespace. Anything else is RoleUnknown.
func ParseRole(s string) Role {
	s = strings.TrimSpace(s)
	for _, r := range Roles {
		if strings.EqualFold(s, string(r)) {
			return r
		}
	}
	return RoleUnknown
}

func (r Role) Known() bool {
	return r != RoleUnknown
}

func (r Role) String() string {
	if r == RoleUnknown {
		return "unknown"
	}
	return string(r)
}

// Title returns the display form used in user records, e.g. "Pharmacy".
func (r Role) Title() string {
	if r == RoleUnknown {
		return "Unknown"
	}
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}

func (r Role) DashboardPath() string {
	return "/" + string(r) + "/dashboard"
}

func (r Role) LoginPath() string {
	if r == RoleUnknown {
		return "/login"
	}
	return "/login/" + string(r)
}

// IdentifierKey is the user record field that carries the role's identifier.
func (r Role) IdentifierKey() string {
	switch r {
	case RolePatient:
		return "patientId"
	case RoleDoctor:
		return "doctorId"
	case RoleStaff:
		return "staffId"
	case RolePharmacy:
		return "pharmacyId"
	default:
		return "userId"
	}
}

// IdentifierPrefix and IdentifierWidth describe generated identifiers:
// P001, D001, S001 and PH01.
func (r Role) IdentifierPrefix() string {
	switch r {
	case RolePatient:
		return "P"
	case RoleDoctor:
		return "D"
	case RoleStaff:
		return "S"
	case RolePharmacy:
		return "PH"
	default:
		return ""
	}
}

func (r Role) IdentifierWidth() int {
	if r == RolePharmacy {
		return 2
	}
	return 3
}
