package models

import (
	"bytes"
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

var ErrUnknownRole = errors.New("user record has no recognizable role")

// LooseString accepts any JSON scalar and keeps its text. Objects and
// arrays decode to the empty string instead of failing the whole payload.
type LooseString string

func (s *LooseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	switch b[0] {
	case '"':
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = LooseString(str)
	case '{', '[':
		*s = ""
	default:
		*s = LooseString(b)
	}
	return nil
}

func (s LooseString) String() string {
	return strings.TrimSpace(string(s))
}

// UserPayload is the user object as the auth API returns it. Field presence
// varies by role and by API version.
type UserPayload struct {
	UserCode      LooseString `json:"user_code,omitempty"`
	GeneratedCode LooseString `json:"generated_code,omitempty"`
	PatientID     LooseString `json:"patientId,omitempty"`
	DoctorID      LooseString `json:"doctorId,omitempty"`
	StaffID       LooseString `json:"staffId,omitempty"`
	PharmacyID    LooseString `json:"pharmacyId,omitempty"`
	Role          LooseString `json:"role,omitempty"`
	RoleName      LooseString `json:"role_name,omitempty"`
	UserType      LooseString `json:"userType,omitempty"`
	Email         LooseString `json:"email,omitempty"`
	FullName      LooseString `json:"full_name,omitempty"`
	Name          LooseString `json:"name,omitempty"`
	Phone         LooseString `json:"phone,omitempty"`
	DOB           LooseString `json:"dob,omitempty"`
	Address       LooseString `json:"address,omitempty"`
	Gender        LooseString `json:"gender,omitempty"`
	Department    LooseString `json:"department,omitempty"`
}

// Identifier returns the first non-empty role-specific identifier.
func (p *UserPayload) Identifier() string {
	for _, v := range []LooseString{p.PatientID, p.DoctorID, p.StaffID, p.PharmacyID} {
		if id := v.String(); id != "" {
			return id
		}
	}
	return ""
}

// RoleText returns the first non-empty free-form role field.
func (p *UserPayload) RoleText() string {
	for _, v := range []LooseString{p.Role, p.RoleName, p.UserType} {
		if s := v.String(); s != "" {
			return s
		}
	}
	return ""
}

func (p *UserPayload) DisplayName() string {
	if n := p.FullName.String(); n != "" {
		return n
	}
	return p.Name.String()
}

// Record reconciles the payload into the typed record for role. The
// identifier is taken from the role's own field, then from the user code.
func (p *UserPayload) Record(role Role) *User {
	var id string
	switch role {
	case RolePatient:
		id = p.PatientID.String()
	case RoleDoctor:
		id = p.DoctorID.String()
	case RoleStaff:
		id = p.StaffID.String()
	case RolePharmacy:
		id = p.PharmacyID.String()
	}
	if id == "" {
		id = p.UserCode.String()
	}
	if id == "" {
		id = p.Identifier()
	}
	return &User{
		Role: role,
		ID:   id,
		Profile: Profile{
			FullName:   p.DisplayName(),
			Email:      p.Email.String(),
			Phone:      p.Phone.String(),
			DOB:        p.DOB.String(),
			Address:    p.Address.String(),
			Gender:     p.Gender.String(),
			Department: p.Department.String(),
		},
	}
}

type Profile struct {
	FullName   string `json:"full_name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	DOB        string `json:"dob,omitempty"`
	Address    string `json:"address,omitempty"`
	Gender     string `json:"gender,omitempty"`
	Department string `json:"department,omitempty"`
}

// User is the signed-in user's record. Role is the variant tag and ID the
// identifier that belongs to it; on the wire ID is written under the role's
// own key (patientId, doctorId, staffId or pharmacyId).
type User struct {
	Role Role
	ID   string
	Profile
}

type userJSON struct {
	Role       string `json:"role"`
	PatientID  string `json:"patientId,omitempty"`
	DoctorID   string `json:"doctorId,omitempty"`
	StaffID    string `json:"staffId,omitempty"`
	PharmacyID string `json:"pharmacyId,omitempty"`
	Profile
}

func (u User) MarshalJSON() ([]byte, error) {
	out := userJSON{Role: u.Role.Title(), Profile: u.Profile}
	switch u.Role {
	case RolePatient:
		out.PatientID = u.ID
	case RoleDoctor:
		out.DoctorID = u.ID
	case RoleStaff:
		out.StaffID = u.ID
	case RolePharmacy:
		out.PharmacyID = u.ID
	}
	return json.Marshal(out)
}

func (u *User) UnmarshalJSON(b []byte) error {
	var in userJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	ids := map[Role]string{
		RolePatient:  in.PatientID,
		RoleDoctor:   in.DoctorID,
		RoleStaff:    in.StaffID,
		RolePharmacy: in.PharmacyID,
	}
	role := ParseRole(in.Role)
	if !role.Known() {
		for _, r := range Roles {
			if ids[r] != "" {
				role = r
				break
			}
		}
	}
	if !role.Known() {
		return ErrUnknownRole
	}
	*u = User{Role: role, ID: ids[role], Profile: in.Profile}
	return nil
}

// ReplaceProfile swaps the whole profile while keeping the identity fields.
func (u *User) ReplaceProfile(p Profile) *User {
	return &User{Role: u.Role, ID: u.ID, Profile: p}
}

// PendingRegistration holds a submitted registration between the
// register and verify-otp steps.
type PendingRegistration struct {
	FullName     string    `json:"full_name"`
	Email        string    `json:"email,omitempty"`
	Role         Role      `json:"role"`
	Department   string    `json:"department,omitempty"`
	PasswordHash string    `json:"password_hash"`
	Simulated    bool      `json:"simulated"`
	OTP          string    `json:"otp,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (p *PendingRegistration) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// Session is everything stored for one browser session.
type Session struct {
	User    *User
	Token   string
	Pending *PendingRegistration
}

// Authenticated reports whether a user record is present.
func (s *Session) Authenticated() bool {
	return s != nil && s.User != nil
}

// RegisteredUser is a row of the offline demo registry.
type RegisteredUser struct {
	ID           uint      `json:"-" gorm:"primaryKey"`
	Code         string    `json:"code" gorm:"not null;uniqueIndex"`
	Role         Role      `json:"role" gorm:"not null;index"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email,omitempty" gorm:"index"`
	Department   string    `json:"department,omitempty"`
	PasswordHash string    `json:"-" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Payload renders the row the way the auth API would return it.
func (u *RegisteredUser) Payload() *UserPayload {
	p := &UserPayload{
		Role:       LooseString(u.Role.Title()),
		Email:      LooseString(u.Email),
		FullName:   LooseString(u.FullName),
		Department: LooseString(u.Department),
	}
	switch u.Role {
	case RolePatient:
		p.PatientID = LooseString(u.Code)
	case RoleDoctor:
		p.DoctorID = LooseString(u.Code)
	case RoleStaff:
		p.StaffID = LooseString(u.Code)
	case RolePharmacy:
		p.PharmacyID = LooseString(u.Code)
	}
	return p
}
