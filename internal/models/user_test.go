package models

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserWritesRoleSpecificKey(t *testing.T) {
	u := User{Role: RolePharmacy, ID: "PH02", Profile: Profile{FullName: "Green Cross"}}
	b, err := json.Marshal(u)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "PH02", raw["pharmacyId"])
	assert.Equal(t, "Pharmacy", raw["role"])
	assert.NotContains(t, raw, "patientId")
}

func TestUserReadsRoleCaseInsensitively(t *testing.T) {
	var u User
	require.NoError(t, json.Unmarshal([]byte(`{"role":"doctor","doctorId":"D045","email":"d@x.io"}`), &u))
	assert.Equal(t, RoleDoctor, u.Role)
	assert.Equal(t, "D045", u.ID)
	assert.Equal(t, "d@x.io", u.Email)
}

func TestUserRoleFromIdentifierKey(t *testing.T) {
	var u User
	require.NoError(t, json.Unmarshal([]byte(`{"staffId":"S003"}`), &u))
	assert.Equal(t, RoleStaff, u.Role)

	assert.ErrorIs(t, json.Unmarshal([]byte(`{"role":"admin"}`), &u), ErrUnknownRole)
}

func TestUserPayloadToleratesLooseTypes(t *testing.T) {
	var p UserPayload
	body := `{"patientId": 7, "role": null, "name": "Ann", "address": {"city": "Pune"}, "userType": true}`
	require.NoError(t, json.Unmarshal([]byte(body), &p))
	assert.Equal(t, "7", p.Identifier())
	assert.Equal(t, "Ann", p.DisplayName())
	assert.Empty(t, p.Address.String())
	assert.Equal(t, "true", p.RoleText())
}

func TestPayloadRecordFallsBackToUserCode(t *testing.T) {
	p := &UserPayload{UserCode: "D010", FullName: "Dr. Rao"}
	u := p.Record(RoleDoctor)
	assert.Equal(t, "D010", u.ID)
	assert.Equal(t, "Dr. Rao", u.FullName)
}

func TestReplaceProfileKeepsIdentity(t *testing.T) {
	u := &User{Role: RolePatient, ID: "P001", Profile: Profile{FullName: "Old", Phone: "1"}}
	next := u.ReplaceProfile(Profile{FullName: "New"})
	assert.Equal(t, RolePatient, next.Role)
	assert.Equal(t, "P001", next.ID)
	assert.Equal(t, "New", next.FullName)
	assert.Empty(t, next.Phone)
}

func TestRoleHelpers(t *testing.T) {
	assert.Equal(t, RolePharmacy, ParseRole(" PHARMACY "))
	assert.Equal(t, RoleUnknown, ParseRole("pharm"))
	assert.Equal(t, "/doctor/dashboard", RoleDoctor.DashboardPath())
	assert.Equal(t, "/login/staff", RoleStaff.LoginPath())
	assert.Equal(t, "Patient", RolePatient.Title())
	assert.Equal(t, "unknown", RoleUnknown.String())
}
