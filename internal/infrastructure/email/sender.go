package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"nexuspay.backend/internal/config"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/pkg/logger"
)

// Sender delivers transactional mail
type Sender interface {
	SendVerification(ctx context.Context, to, token string) error
	SendPasswordReset(ctx context.Context, to, token string) error
	SendProjectInvite(ctx context.Context, to, projectName, inviteToken string) error
}

type message struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Template string `json:"template"`
	Token    string `json:"token,omitempty"`
	Project  string `json:"project,omitempty"`
}

// HTTPSender posts messages to the email delivery API
type HTTPSender struct {
	cfg  config.EmailConfig
	http *http.Client
}

// NewSender returns the HTTP sender when a delivery API is configured and a
// log-only sender otherwise, so local development never needs mail credentials.
func NewSender(cfg config.EmailConfig) Sender {
	if cfg.APIBaseURL == "" {
		return &LogSender{from: cfg.FromAddress}
	}
	return &HTTPSender{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

func (s *HTTPSender) SendVerification(ctx context.Context, to, token string) error {
	return s.send(ctx, message{To: to, Subject: "Verify your email", Template: "verify-email", Token: token})
}

func (s *HTTPSender) SendPasswordReset(ctx context.Context, to, token string) error {
	return s.send(ctx, message{To: to, Subject: "Reset your password", Template: "reset-password", Token: token})
}

func (s *HTTPSender) SendProjectInvite(ctx context.Context, to, projectName, inviteToken string) error {
	return s.send(ctx, message{To: to, Subject: "You have been invited to " + projectName, Template: "project-invite", Token: inviteToken, Project: projectName})
}

func (s *HTTPSender) send(ctx context.Context, msg message) error {
	msg.From = s.cfg.FromAddress
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIBaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return domainerrors.Upstream("email delivery unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return domainerrors.Upstream(fmt.Sprintf("email delivery returned %d", resp.StatusCode), domainerrors.ErrUpstream)
	}
	return nil
}

// LogSender writes mail to the log instead of delivering it
type LogSender struct {
	from string
}

func (s *LogSender) SendVerification(ctx context.Context, to, token string) error {
	logger.Info(ctx, "email (log only): verification",
		zap.String("from", s.from), zap.String("to", to), zap.String("token", token))
	return nil
}

func (s *LogSender) SendPasswordReset(ctx context.Context, to, token string) error {
	logger.Info(ctx, "email (log only): password reset",
		zap.String("from", s.from), zap.String("to", to), zap.String("token", token))
	return nil
}

func (s *LogSender) SendProjectInvite(ctx context.Context, to, projectName, inviteToken string) error {
	logger.Info(ctx, "email (log only): project invite",
		zap.String("from", s.from), zap.String("to", to), zap.String("project", projectName))
	return nil
}
