package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tajious/medsync/internal/models"
)

func doctorSession() *models.Session {
	return &models.Session{
		User:  &models.User{Role: models.RoleDoctor, ID: "D045", Profile: models.Profile{FullName: "Dr. Rao"}},
		Token: "opaque-token",
	}
}

func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()
	id := uuid.NewString()

	_, err := store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, store.Set(ctx, id, doctorSession()))
	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.User)
	assert.Equal(t, models.RoleDoctor, got.User.Role)
	assert.Equal(t, "D045", got.User.ID)
	assert.Equal(t, "opaque-token", got.Token)
	assert.Nil(t, got.Pending)

	// Set replaces the whole session.
	pending := &models.Session{Pending: &models.PendingRegistration{
		FullName:  "New Patient",
		Role:      models.RolePatient,
		Simulated: true,
		OTP:       "123456",
		ExpiresAt: time.Now().Add(time.Minute).UTC().Truncate(time.Second),
	}}
	require.NoError(t, store.Set(ctx, id, pending))
	got, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got.User)
	assert.Empty(t, got.Token)
	require.NotNil(t, got.Pending)
	assert.Equal(t, "123456", got.Pending.OTP)

	require.NoError(t, store.Clear(ctx, id))
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(time.Hour))
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Millisecond)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "s1", doctorSession()))
	time.Sleep(5 * time.Millisecond)
	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestMemoryStoreEmptySessionIsCleared(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "s1", doctorSession()))
	require.NoError(t, store.Set(ctx, "s1", &models.Session{}))
	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestTokenReadFromEitherKey(t *testing.T) {
	s, err := decode(map[string]string{KeyAuthToken: "from-auth-key"})
	require.NoError(t, err)
	assert.Equal(t, "from-auth-key", s.Token)
	assert.False(t, s.Authenticated())
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	exerciseStore(t, NewRedisStore(client, time.Minute))
}
