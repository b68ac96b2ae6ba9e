package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 5*time.Second, WithScheduleControl(200*time.Millisecond, 1))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLoginTokenFieldVariants(t *testing.T) {
	bodies := map[string]map[string]any{
		"token":       {"user": map[string]any{"doctorId": "D045"}, "token": "t1"},
		"accessToken": {"user": map[string]any{"doctorId": "D045"}, "accessToken": "t1"},
		"jwt":         {"user": map[string]any{"doctorId": "D045"}, "jwt": "t1"},
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, body)
			})
			resp, err := c.Login(context.Background(), LoginRequest{Identifier: "D045", Password: "pw"})
			require.NoError(t, err)
			assert.Equal(t, "t1", resp.Token)
			assert.Equal(t, "D045", resp.User.Identifier())
		})
	}
}

func TestLoginBodyWithoutUserObject(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a@b.io", req.Email)
		assert.Empty(t, req.Identifier)
		writeJSON(w, http.StatusOK, map[string]any{"staffId": "S002", "role": "Staff"})
	})
	resp, err := c.Login(context.Background(), LoginRequest{Email: "a@b.io", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "S002", resp.User.Identifier())
	assert.Empty(t, resp.Token)
}

func TestLoginErrorMessages(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error": "Access denied for this role",
			"user":  map[string]any{"generated_code": "PH04"},
		})
	})
	_, err := c.Login(context.Background(), LoginRequest{Identifier: "x", Password: "pw"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Access denied for this role", apiErr.Message)
	assert.Equal(t, "PH04", apiErr.GeneratedCode)
	assert.True(t, IsForbidden(err))
	assert.False(t, IsUnauthorized(err))
}

func TestLoginFallbackMessage(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("<html>nope</html>"))
	})
	_, err := c.Login(context.Background(), LoginRequest{Identifier: "x", Password: "pw"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid credentials", apiErr.Message)
	assert.True(t, IsUnauthorized(err))
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.Login(context.Background(), LoginRequest{Identifier: "x", Password: "pw"})
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestScheduleRetriesOnceAfterTimeout(t *testing.T) {
	var calls atomic.Int32
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		if calls.Add(1) == 1 {
			time.Sleep(400 * time.Millisecond)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"doctor_name": "Dr. Rao",
			"schedule": []map[string]any{
				{"slot_datetime": "2026-10-18 09:00:00", "is_available": false},
				{"slot_datetime": "2026-10-18 09:30:00", "is_available": "false"},
				{"slot_datetime": "2026-10-18 10:00:00", "is_available": true},
			},
		})
	})

	resp, err := c.Schedule(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "Dr. Rao", resp.DoctorName)
	require.Len(t, resp.Schedule, 3)
	assert.True(t, resp.Schedule[0].Blocked())
	assert.True(t, resp.Schedule[1].Blocked())
	assert.False(t, resp.Schedule[2].Blocked())
}

func TestScheduleGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(400 * time.Millisecond)
	})

	_, err := c.Schedule(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, int32(2), calls.Load())
}

func TestScheduleDoesNotRetryAPIErrors(t *testing.T) {
	var calls atomic.Int32
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token expired"})
	})

	err := c.UpdateSchedule(context.Background(), "tok", ScheduleAction{Action: "block_slot", Slot: "2026-10-18 09:00:00"})
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRegisterAndReset(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/register":
			var req RegisterRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Doctor", req.Role)
			assert.Equal(t, "Cardiology", req.Department)
			writeJSON(w, http.StatusOK, map[string]string{"message": "OTP sent"})
		case "/api/auth/reset-password":
			writeJSON(w, http.StatusBadRequest, map[string]string{})
		default:
			http.NotFound(w, r)
		}
	})

	msg, err := c.Register(context.Background(), RegisterRequest{FullName: "Dr. Rao", Email: "r@x.io", Password: "secret1", Role: "Doctor", Department: "Cardiology"})
	require.NoError(t, err)
	assert.Equal(t, "OTP sent", msg.Message)

	_, err = c.ResetPassword(context.Background(), ResetPasswordRequest{Email: "r@x.io", OTP: "123456", NewPassword: "Secret12"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid OTP or server error", apiErr.Message)
}
