package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nexuspay.backend/internal/config"
	"nexuspay.backend/pkg/logger"
)

func TestHTTPSender_PostsMessage(t *testing.T) {
	var got message
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := NewSender(config.EmailConfig{
		FromAddress: "no-reply@nexuspay.dev",
		APIBaseURL:  server.URL,
		APIKey:      "test-key",
		Timeout:     5 * time.Second,
	})

	require.NoError(t, sender.SendVerification(context.Background(), "alice@acme.com", "tok123"))
	require.Equal(t, "no-reply@nexuspay.dev", got.From)
	require.Equal(t, "alice@acme.com", got.To)
	require.Equal(t, "verify-email", got.Template)
	require.Equal(t, "tok123", got.Token)

	require.NoError(t, sender.SendProjectInvite(context.Background(), "bob@acme.com", "DeFi App", "inv1"))
	require.Equal(t, "project-invite", got.Template)
	require.Equal(t, "DeFi App", got.Project)
}

func TestHTTPSender_UpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sender := NewSender(config.EmailConfig{APIBaseURL: server.URL, Timeout: time.Second})
	require.Error(t, sender.SendPasswordReset(context.Background(), "alice@acme.com", "tok"))
}

func TestNewSender_FallsBackToLogSender(t *testing.T) {
	logger.Init("development")

	sender := NewSender(config.EmailConfig{FromAddress: "no-reply@nexuspay.dev"})
	_, ok := sender.(*LogSender)
	require.True(t, ok)

	require.NoError(t, sender.SendVerification(context.Background(), "alice@acme.com", "tok"))
	require.NoError(t, sender.SendPasswordReset(context.Background(), "alice@acme.com", "tok"))
	require.NoError(t, sender.SendProjectInvite(context.Background(), "alice@acme.com", "P", "tok"))
}
