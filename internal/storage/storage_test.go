package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tajious/medsync/internal/config"
	"github.com/tajious/medsync/internal/models"
)

func registries(t *testing.T) map[string]Registry {
	t.Helper()
	gormReg, err := Open(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "registry.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = gormReg.Close() })

	return map[string]Registry{
		"memory": NewInMemoryRegistry(),
		"sqlite": gormReg,
	}
}

func TestRegisterAssignsSequentialCodes(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			add := func(role models.Role, email string) string {
				u := &models.RegisteredUser{Role: role, FullName: "user", Email: email, PasswordHash: "x"}
				require.NoError(t, reg.Register(ctx, u))
				return u.Code
			}

			assert.Equal(t, "P001", add(models.RolePatient, "p1@x.io"))
			assert.Equal(t, "P002", add(models.RolePatient, ""))
			assert.Equal(t, "PH01", add(models.RolePharmacy, "ph@x.io"))
			assert.Equal(t, "PH02", add(models.RolePharmacy, ""))
			assert.Equal(t, "D001", add(models.RoleDoctor, ""))
			assert.Equal(t, "P003", add(models.RolePatient, ""))
		})
	}
}

func TestFindByIdentifier(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			u := &models.RegisteredUser{Role: models.RoleStaff, FullName: "Sam", Email: "sam@x.io", PasswordHash: "x"}
			require.NoError(t, reg.Register(ctx, u))

			byCode, err := reg.FindByIdentifier(ctx, "S001")
			require.NoError(t, err)
			assert.Equal(t, "Sam", byCode.FullName)

			byEmail, err := reg.FindByIdentifier(ctx, " sam@x.io ")
			require.NoError(t, err)
			assert.Equal(t, "S001", byEmail.Code)

			_, err = reg.FindByIdentifier(ctx, "S002")
			assert.ErrorIs(t, err, ErrUserNotFound)
			_, err = reg.FindByIdentifier(ctx, "")
			assert.ErrorIs(t, err, ErrUserNotFound)
		})
	}
}

func TestList(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, role := range []models.Role{models.RolePatient, models.RolePatient, models.RoleDoctor} {
				require.NoError(t, reg.Register(ctx, &models.RegisteredUser{Role: role, FullName: "n", PasswordHash: "x"}))
			}

			users, total, err := reg.List(ctx, ListOptions{Page: 1, PageSize: 10, Role: models.RolePatient})
			require.NoError(t, err)
			assert.EqualValues(t, 2, total)
			assert.Len(t, users, 2)

			users, total, err = reg.List(ctx, ListOptions{Page: 2, PageSize: 2})
			require.NoError(t, err)
			assert.EqualValues(t, 3, total)
			assert.Len(t, users, 1)

			users, _, err = reg.List(ctx, ListOptions{Page: 1, PageSize: 10, Search: "D00"})
			require.NoError(t, err)
			require.Len(t, users, 1)
			assert.Equal(t, "D001", users[0].Code)
		})
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "mysql"})
	assert.Error(t, err)
}

func TestBuildDSN(t *testing.T) {
	dsn := BuildDSN(config.DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "medsync", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=medsync sslmode=disable", dsn)
}
