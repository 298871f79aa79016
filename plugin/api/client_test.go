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

	clienterrors "github.com/seatyyy/ExecuMate/internal/errors"
	"github.com/seatyyy/ExecuMate/plugin/calendar"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, "alice", "google", WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient(t *testing.T) {
	_, err := NewClient("ftp://example.com", "alice", "google")
	assert.Error(t, err)

	_, err = NewClient("http://localhost:5000", "", "google")
	assert.Error(t, err)

	c, err := NewClient("http://localhost:5000/", "alice", "")
	require.NoError(t, err)
	assert.Equal(t, "google", c.provider)
}

func TestClient_AuthorizationURL(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/api/authorize/google", r.URL.Path)
			assert.Equal(t, "alice", r.URL.Query().Get("user_id"))
			writeJSON(w, http.StatusOK, map[string]string{"auth_url": "https://accounts.example.com/o/oauth2/auth?state=alice"})
		})

		got, err := c.AuthorizationURL(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "https://accounts.example.com/o/oauth2/auth?state=alice", got)
	})

	t.Run("StructuredError", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "client secrets missing"})
		})

		_, err := c.AuthorizationURL(context.Background())
		require.Error(t, err)
		assert.True(t, clienterrors.IsCode(err, clienterrors.ErrCodeProtocol))
		assert.Equal(t, "client secrets missing", clienterrors.UserMessage(err, "fallback"))
	})

	t.Run("ErrorIn200", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"error": "provider disabled"})
		})

		_, err := c.AuthorizationURL(context.Background())
		assert.True(t, clienterrors.IsCode(err, clienterrors.ErrCodeProtocol))
	})
}

func TestClient_IsAuthorized(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     any
		want     bool
		wantCode clienterrors.ErrorCode
	}{
		{"True", http.StatusOK, map[string]bool{"authenticated": true}, true, ""},
		{"False", http.StatusOK, map[string]bool{"authenticated": false}, false, ""},
		{"BareServerError", http.StatusBadGateway, "oops", false, clienterrors.ErrCodeTransport},
		{"Malformed", http.StatusOK, "not an object", false, clienterrors.ErrCodeTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/auth/status", r.URL.Path)
				writeJSON(w, tt.status, tt.body)
			})

			got, err := c.IsAuthorized(context.Background())
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, clienterrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_Logout(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/auth/logout", r.URL.Path)
			var body logoutRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "alice", body.UserID)
			writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		})
		assert.NoError(t, c.Logout(context.Background()))
	})

	t.Run("Rejected", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]bool{"success": false})
		})
		err := c.Logout(context.Background())
		assert.True(t, clienterrors.IsCode(err, clienterrors.ErrCodeProtocol))
	})
}

func TestClient_CalendarEvents(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/calendar/events", r.URL.Path)
		assert.Equal(t, "alice", r.URL.Query().Get("user_id"))
		assert.Equal(t, "week", r.URL.Query().Get("range"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"date": "October 19 - October 25",
			"events": [],
			"eventsByDate": [
				{"date": "Monday, October 19", "events": [{"summary": "Standup", "location": "Room 1", "startTime": "2026-10-19T09:00:00Z", "timeRange": "09:00 AM - 09:15 AM"}]},
				{"date": "Tuesday, October 20", "events": [{"summary": "Review", "startTime": "2026-10-20T14:00:00Z", "timeRange": "02:00 PM - 03:00 PM"}]}
			]
		}`))
	})

	p, err := c.CalendarEvents(context.Background(), calendar.RangeWeek)
	require.NoError(t, err)
	assert.Equal(t, "October 19 - October 25", p.Date)
	require.Len(t, p.EventsByDate, 2)
	assert.Equal(t, "Room 1", p.EventsByDate[0].Events[0].Location)
	assert.Equal(t, "02:00 PM - 03:00 PM", p.EventsByDate[1].Events[0].TimeRange)
}

func TestClient_TransportFailures(t *testing.T) {
	t.Run("Unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		c, err := NewClient(url, "alice", "google")
		require.NoError(t, err)
		_, err = c.IsAuthorized(context.Background())
		assert.True(t, clienterrors.IsCode(err, clienterrors.ErrCodeTransport))
	})

	t.Run("Canceled", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]bool{"authenticated": true})
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.IsAuthorized(ctx)
		assert.True(t, clienterrors.IsCode(err, clienterrors.ErrCodeCanceled))
	})

	t.Run("Timeout", func(t *testing.T) {
		release := make(chan struct{})
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		})
		t.Cleanup(func() { close(release) })

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := c.IsAuthorized(ctx)
		assert.True(t, clienterrors.IsCode(err, clienterrors.ErrCodeTimeout))
	})
}
