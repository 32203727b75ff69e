package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"nexuspay.backend/internal/domain/entities"
	"nexuspay.backend/pkg/logger"
)

func testProject(webhookURL string) *entities.Project {
	p := &entities.Project{ID: "proj_1", Name: "DeFi App"}
	if webhookURL != "" {
		p.Settings.WebhookURL = null.StringFrom(webhookURL)
	}
	return p
}

func TestDispatcher_NotifyDeliversSignedEvent(t *testing.T) {
	logger.Init("development")

	var (
		gotBody      []byte
		gotSignature string
		gotEvent     string
		gotDelivery  string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get("X-Nexuspay-Signature")
		gotEvent = r.Header.Get("X-Nexuspay-Event")
		gotDelivery = r.Header.Get("X-Nexuspay-Delivery")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := NewDispatcher("whsec-test")
	id := d.Notify(context.Background(), testProject(server.URL), EventWalletDeployed,
		map[string]string{"walletId": "wal_1", "chain": "ethereum"})
	require.NotEmpty(t, id)
	require.Equal(t, EventWalletDeployed, gotEvent)
	require.Equal(t, id, gotDelivery)

	// Receiver-side verification: recompute the HMAC over the raw body.
	mac := hmac.New(sha256.New, []byte("whsec-test"))
	mac.Write(gotBody)
	require.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), gotSignature)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(gotBody, &envelope))
	require.Equal(t, id, envelope.ID)
	require.Equal(t, "proj_1", envelope.ProjectID)
	require.Equal(t, EventWalletDeployed, envelope.Event)
}

func TestDispatcher_NotifySkipsWithoutURL(t *testing.T) {
	logger.Init("development")

	d := NewDispatcher("whsec-test")
	require.Empty(t, d.Notify(context.Background(), testProject(""), EventAPIKeyRotated, nil))
	require.Empty(t, d.Notify(context.Background(), nil, EventAPIKeyRotated, nil))
}

func TestDispatcher_SignIsDeterministic(t *testing.T) {
	d := NewDispatcher("whsec-test")
	body := []byte(`{"event":"paymaster.low_balance"}`)
	require.Equal(t, d.Sign(body), d.Sign(body))
	require.NotEqual(t, d.Sign(body), NewDispatcher("other").Sign(body))
}
