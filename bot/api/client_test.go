package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return NewClient(Options{
		GatewayURL: url,
		AdminURL:   url,
		AdminToken: "admin-secret",
		Timeout:    2 * time.Second,
	})
}

func TestCreateUserSendsAdminAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/admin/users", r.URL.Path)
		assert.Equal(t, "admin-secret", r.Header.Get("X-Admin-API-Key"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.io", body["email"])

		_ = json.NewEncoder(w).Encode(User{ID: 5, Email: "a@b.io"})
	}))
	defer srv.Close()

	user, err := newTestClient(srv.URL).CreateUser(context.Background(), "a@b.io", "")
	require.NoError(t, err)
	assert.Equal(t, int64(5), user.ID)
	assert.Equal(t, "a@b.io", user.Email)
}

func TestMeetingsDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/meetings", r.URL.Path)
		assert.Equal(t, "user-key", r.Header.Get("X-API-Key"))
		_, _ = w.Write([]byte(`{"meetings":[{"id":1,"platform":"zoom","native_meeting_id":"123456789","status":"completed"}]}`))
	}))
	defer srv.Close()

	meetings, err := newTestClient(srv.URL).Meetings(context.Background(), "user-key")
	require.NoError(t, err)
	require.Len(t, meetings, 1)
	assert.Equal(t, "zoom", meetings[0].Platform)
	assert.Equal(t, "123456789", meetings[0].NativeMeetingID)
}

func TestRunningBotsDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bots/status", r.URL.Path)
		_, _ = w.Write([]byte(`{"running_bots":[{"platform":"google_meet","native_meeting_id":"abc-defg-hij","status":"active"}]}`))
	}))
	defer srv.Close()

	bots, err := newTestClient(srv.URL).RunningBots(context.Background(), "user-key")
	require.NoError(t, err)
	require.Len(t, bots, 1)
	assert.Equal(t, "abc-defg-hij", bots[0].NativeMeetingID)
}

func TestStopBotUsesDeleteWithEscapedPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/bots/google_meet/abc-defg-hij", r.URL.Path)
		_, _ = w.Write([]byte(`{"platform":"google_meet","native_meeting_id":"abc-defg-hij","status":"stopping"}`))
	}))
	defer srv.Close()

	st, err := newTestClient(srv.URL).StopBot(context.Background(), "k", "google_meet", "abc-defg-hij")
	require.NoError(t, err)
	assert.Equal(t, "stopping", st.Status)
}

func TestNon2xxBecomesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"detail":"bot already running"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CreateBot(context.Background(), "k", BotRequest{
		Platform:        "zoom",
		NativeMeetingID: "123456789",
	})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "already running")
	assert.True(t, IsStatus(err, http.StatusConflict))
	assert.False(t, IsStatus(err, http.StatusNotFound))
}

func TestSlowBackendBecomesTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(Options{
		GatewayURL: srv.URL,
		AdminURL:   srv.URL,
		Timeout:    20 * time.Millisecond,
	})
	_, err := client.Meetings(context.Background(), "k")
	require.ErrorIs(t, err, ErrTimeout)
}

func TestUnreachableBackendBecomesTransportError(t *testing.T) {
	client := NewClient(Options{
		GatewayURL: "http://127.0.0.1:1",
		AdminURL:   "http://127.0.0.1:1",
		Timeout:    2 * time.Second,
	})
	_, err := client.Meetings(context.Background(), "k")
	require.Error(t, err)

	var trErr *TransportError
	assert.ErrorAs(t, err, &trErr)
}
