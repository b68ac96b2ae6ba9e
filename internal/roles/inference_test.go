package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tajious/medsync/internal/models"
	"github.com/tajious/medsync/internal/token"
)

func TestFromIdentifier(t *testing.T) {
	tests := []struct {
		id   string
		want models.Role
	}{
		{"PH07", models.RolePharmacy},
		{"ph07", models.RolePharmacy},
		{"P003", models.RolePatient},
		{"D12", models.RoleDoctor},
		{"S1", models.RoleStaff},
		{"", models.RoleUnknown},
		{"   ", models.RoleUnknown},
		{"XPHARM", models.RolePharmacy},
		{"my-doctor-7", models.RoleDoctor},
		{"X-PATIENT", models.RolePatient},
		{"ASTAFF", models.RoleStaff},
		{"X100", models.RoleUnknown},
		// Prefix rules run before substring rules.
		{"DPHARM", models.RoleDoctor},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, FromIdentifier(tt.id))
		})
	}
}

func TestFromName(t *testing.T) {
	assert.Equal(t, models.RolePharmacy, FromName("Pharmacy"))
	assert.Equal(t, models.RolePharmacy, FromName("Pharmacist"))
	assert.Equal(t, models.RoleDoctor, FromName("DOCTOR"))
	assert.Equal(t, models.RoleStaff, FromName(" staff "))
	assert.Equal(t, models.RolePatient, FromName("patient"))
	assert.Equal(t, models.RoleUnknown, FromName("admin"))
	// Name rules do not use prefixes.
	assert.Equal(t, models.RoleUnknown, FromName("D045"))
}

func TestFromUserClaimsOutrankIdentifier(t *testing.T) {
	user := &models.UserPayload{PatientID: "P001"}
	claims := token.Claims{"role": "Doctor"}

	m, err := FromUser(user, claims)
	require.NoError(t, err)
	assert.Equal(t, models.RoleDoctor, m.Role)
	assert.Equal(t, SourceClaims, m.Source)
}

func TestFromUserPriority(t *testing.T) {
	tests := []struct {
		name   string
		user   *models.UserPayload
		claims token.Claims
		want   models.Role
		source Source
	}{
		{
			name:   "claims role is matched by name, not prefix",
			user:   &models.UserPayload{UserCode: "S004"},
			claims: token.Claims{"role": "Pharmacist"},
			want:   models.RoleStaff,
			source: SourceUserCode,
		},
		{
			name:   "user code beats identifier fields",
			user:   &models.UserPayload{UserCode: "PH03", PatientID: "P001"},
			want:   models.RolePharmacy,
			source: SourceUserCode,
		},
		{
			name:   "first non-empty identifier",
			user:   &models.UserPayload{DoctorID: "D045", StaffID: "S001"},
			want:   models.RoleDoctor,
			source: SourceIdentifier,
		},
		{
			name:   "unrecognized code falls through to role field",
			user:   &models.UserPayload{UserCode: "X9", Role: "Staff"},
			want:   models.RoleStaff,
			source: SourceRoleField,
		},
		{
			name:   "role_name when role is empty",
			user:   &models.UserPayload{RoleName: "Pharmacy Manager"},
			want:   models.RolePharmacy,
			source: SourceRoleField,
		},
		{
			name:   "userType",
			user:   &models.UserPayload{UserType: "PATIENT"},
			want:   models.RolePatient,
			source: SourceRoleField,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := FromUser(tt.user, tt.claims)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Role)
			assert.Equal(t, tt.source, m.Source)
		})
	}
}

func TestFromUserIndeterminate(t *testing.T) {
	m, err := FromUser(&models.UserPayload{Email: "a@b.c", Role: "admin"}, nil)
	assert.ErrorIs(t, err, ErrIndeterminateRole)
	assert.Equal(t, models.RoleUnknown, m.Role)

	_, err = FromUser(nil, nil)
	assert.ErrorIs(t, err, ErrIndeterminateRole)
}

func TestNextIdentifier(t *testing.T) {
	id, err := NextIdentifier(models.RolePatient, nil)
	require.NoError(t, err)
	assert.Equal(t, "P001", id)

	id, err = NextIdentifier(models.RolePatient, []string{"P001", "P007", "PH09", "D010"})
	require.NoError(t, err)
	assert.Equal(t, "P008", id)

	id, err = NextIdentifier(models.RolePharmacy, []string{"PH01", "P003"})
	require.NoError(t, err)
	assert.Equal(t, "PH02", id)

	id, err = NextIdentifier(models.RoleDoctor, []string{"Dxx"})
	require.NoError(t, err)
	assert.Equal(t, "D001", id)

	_, err = NextIdentifier(models.RoleUnknown, nil)
	assert.Error(t, err)
}
