package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Analyze(t *testing.T) {
	t.Run("Should post the data URL and parse title and body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, AnalyzePath, r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "data:image/png;base64,AAAA", body["imageData"])

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"analysis":"【にじのお城】\nすごいね！\nこれからもがんばってね！"}`))
		}))
		defer srv.Close()

		res, err := New(srv.URL + "/").Analyze(context.Background(), "data:image/png;base64,AAAA")

		require.NoError(t, err)
		assert.Equal(t, "【にじのお城】", res.Title)
		assert.Equal(t, "すごいね！\nこれからもがんばってね！", res.Body)
	})

	t.Run("Should surface relay errors with debug", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"API利用制限に達しました。","debug":"Rate limit exceeded"}`))
		}))
		defer srv.Close()

		_, err := New(srv.URL).Analyze(context.Background(), "x")

		var re *RelayError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, http.StatusTooManyRequests, re.Status)
		assert.Equal(t, "API利用制限に達しました。", re.Message)
		assert.Equal(t, "Rate limit exceeded", re.Debug)
		assert.True(t, re.Temporary())
	})

	t.Run("Should report non-JSON bodies as transport errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>Bad Gateway</html>"))
		}))
		defer srv.Close()

		_, err := New(srv.URL).Analyze(context.Background(), "x")

		var te *TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, MsgInvalidResponse+": 502 Bad Gateway", te.Message)
		assert.Equal(t, http.StatusBadGateway, te.Status)
		var re *RelayError
		assert.False(t, errors.As(err, &re))
	})

	t.Run("Should report unreachable relays as transport errors", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := New(url).Analyze(context.Background(), "x")

		var te *TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, MsgConnection, te.Message)
	})

	t.Run("Should return the context error when cancelled", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.Copy(io.Discard, r.Body)
			select {
			case <-r.Context().Done():
			case <-release:
			}
		}))
		defer srv.Close()
		defer close(release)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := New(srv.URL).Analyze(ctx, "x")

		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestRelayError_Temporary(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, (&RelayError{Status: tt.status}).Temporary())
		})
	}
}
