package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nexuspay.backend/internal/domain/entities"
	"nexuspay.backend/pkg/logger"
	"nexuspay.backend/pkg/utils"
)

// Event names posted to project webhook endpoints
const (
	EventWalletDeployed            = "wallet.deployed"
	EventWalletDeployFailed        = "wallet.deploy_failed"
	EventPaymasterLowBalance       = "paymaster.low_balance"
	EventPaymasterPaymentConfirmed = "paymaster.payment_confirmed"
	EventAPIKeyRotated             = "apikey.rotated"
)

const (
	headerSignature = "X-Nexuspay-Signature"
	headerEvent     = "X-Nexuspay-Event"
	headerDelivery  = "X-Nexuspay-Delivery"

	deliveryTimeout = 10 * time.Second
	maxAttempts     = 3
)

// Envelope is the wire shape of every webhook delivery
type Envelope struct {
	ID        string      `json:"id"`
	Event     string      `json:"event"`
	ProjectID string      `json:"projectId"`
	CreatedAt time.Time   `json:"createdAt"`
	Data      interface{} `json:"data"`
}

// Dispatcher posts signed events to project webhook URLs. Deliveries are
// fire-and-forget from the caller's perspective: failures are logged and
// retried a bounded number of times, never surfaced to the request.
type Dispatcher struct {
	secret []byte
	http   *http.Client
}

// NewDispatcher creates a dispatcher signing with the given secret
func NewDispatcher(signingSecret string) *Dispatcher {
	return &Dispatcher{
		secret: []byte(signingSecret),
		http:   &http.Client{Timeout: deliveryTimeout},
	}
}

// Sign computes the hex HMAC-SHA256 signature for a delivery body
func (d *Dispatcher) Sign(body []byte) string {
	mac := hmac.New(sha256.New, d.secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Notify delivers an event to the project's webhook URL, if one is set.
// Returns the delivery id, or "" when the project has no webhook.
func (d *Dispatcher) Notify(ctx context.Context, project *entities.Project, event string, data interface{}) string {
	if project == nil || !project.Settings.WebhookURL.Valid || project.Settings.WebhookURL.String == "" {
		return ""
	}

	envelope := Envelope{
		ID:        utils.NewID("evt"),
		Event:     event,
		ProjectID: project.ID,
		CreatedAt: time.Now().UTC(),
		Data:      data,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		logger.Error(ctx, "webhook marshal failed", zap.String("event", event), zap.Error(err))
		return ""
	}

	d.deliver(ctx, project.Settings.WebhookURL.String, envelope, body)
	return envelope.ID
}

func (d *Dispatcher) deliver(ctx context.Context, url string, envelope Envelope, body []byte) {
	signature := d.Sign(body)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			logger.Error(ctx, "webhook request build failed", zap.String("url", url), zap.Error(err))
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(headerSignature, signature)
		req.Header.Set(headerEvent, envelope.Event)
		req.Header.Set(headerDelivery, envelope.ID)

		resp, err := d.http.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode < 300 {
				return
			}
			logger.Warn(ctx, "webhook delivery rejected",
				zap.String("event", envelope.Event),
				zap.String("delivery", envelope.ID),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt))
		} else {
			logger.Warn(ctx, "webhook delivery failed",
				zap.String("event", envelope.Event),
				zap.String("delivery", envelope.ID),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}
}
