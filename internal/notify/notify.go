// Package notify implements the notification boundary (spec §4.4.2, §4.4.5):
// fire-and-forget alerts on breaking news and on weak-quality published
// articles. Delivery never blocks or fails the caller — every send runs in
// its own goroutine and logs rather than propagates errors, the same
// posture the teacher's email.go takes toward delivery failures.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/geraldfingburke/editorial-core/internal/config"
)

// Severity distinguishes the breaking-news channel (always urgent) from
// general editorial alerts.
type Severity string

const (
	SeverityBreaking Severity = "breaking"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Notifier is the capability surface agents depend on to raise alerts.
type Notifier interface {
	NotifyBreaking(ctx context.Context, title, url string)
	Notify(ctx context.Context, severity Severity, subject, message string)
}

// Channel is a single outbound delivery mechanism. Multiple channels can be
// registered and every one that takes the alert's severity is tried,
// fire-and-forget.
type Channel interface {
	Send(ctx context.Context, severity Severity, subject, message string) error
}

// Service fans a notification out across every configured channel.
type Service struct {
	channels []Channel
	log      zerolog.Logger
}

// New builds a Service wired from cfg: a Telegram-style bot webhook for
// breaking alerts, a Slack-style incoming webhook for everything else, and
// an SMTP channel when SMTP settings are present. Any channel missing its
// required configuration is simply omitted rather than failing startup.
func New(cfg *config.Config, log zerolog.Logger) *Service {
	s := &Service{log: log}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		s.channels = append(s.channels, &TelegramChannel{botToken: cfg.TelegramBotToken, chatID: cfg.TelegramChatID, log: log})
	}
	if cfg.SlackWebhookURL != "" {
		s.channels = append(s.channels, &SlackChannel{webhookURL: cfg.SlackWebhookURL, log: log})
	}
	if cfg.SMTPHost != "" {
		s.channels = append(s.channels, &EmailChannel{cfg: cfg, log: log})
	}
	return s
}

// NotifyBreaking fans out a breaking-news alert to the Telegram and email
// channels, not waiting for delivery to complete.
func (s *Service) NotifyBreaking(ctx context.Context, title, url string) {
	s.fanOut(ctx, SeverityBreaking, "Breaking news", fmt.Sprintf("%s\n%s", title, url))
}

// Notify fans out a general alert (e.g. a weak-quality published article)
// to the Slack and email channels; a breaking severity goes to the Telegram
// and email channels instead.
func (s *Service) Notify(ctx context.Context, severity Severity, subject, message string) {
	s.fanOut(ctx, severity, subject, message)
}

func (s *Service) fanOut(ctx context.Context, severity Severity, subject, message string) {
	for _, ch := range s.channels {
		ch := ch
		switch ch.(type) {
		case *TelegramChannel:
			if severity != SeverityBreaking {
				continue
			}
		case *SlackChannel:
			if severity == SeverityBreaking {
				continue
			}
		}
		go func() {
			sendCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = ctx // the caller's context is not propagated past this point by design
			if err := ch.Send(sendCtx, severity, subject, message); err != nil {
				s.log.Warn().Err(err).Str("severity", string(severity)).Msg("notification delivery failed")
			}
		}()
	}
}

// ============================================================================
// Telegram channel (breaking news)
// ============================================================================

// TelegramChannel posts breaking alerts to a Telegram bot chat via the
// sendMessage HTTP API.
type TelegramChannel struct {
	botToken string
	chatID   string
	log      zerolog.Logger
}

func (t *TelegramChannel) Send(ctx context.Context, severity Severity, subject, message string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": t.chatID,
		"text":    fmt.Sprintf("%s\n\n%s", subject, message),
	})
	if err != nil {
		return fmt.Errorf("notify: marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: telegram send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: telegram returned status %d", resp.StatusCode)
	}
	return nil
}

// ============================================================================
// Slack channel (general editorial alerts)
// ============================================================================

// SlackChannel posts to a Slack incoming webhook.
type SlackChannel struct {
	webhookURL string
	log        zerolog.Logger
}

func (s *SlackChannel) Send(ctx context.Context, severity Severity, subject, message string) error {
	body, err := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*[%s] %s*\n%s", strings.ToUpper(string(severity)), subject, message),
	})
	if err != nil {
		return fmt.Errorf("notify: marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: slack send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: slack returned status %d", resp.StatusCode)
	}
	return nil
}

// ============================================================================
// Email channel, adapted from the teacher's SMTP delivery
// ============================================================================

// EmailChannel sends plain-text alert emails via SMTP, supporting both
// STARTTLS (587) and direct TLS (465), mirroring the teacher's email.go
// connection handling.
type EmailChannel struct {
	cfg *config.Config
	log zerolog.Logger
}

func (e *EmailChannel) Send(ctx context.Context, severity Severity, subject, message string) error {
	addr := fmt.Sprintf("%s:%s", e.cfg.SMTPHost, e.cfg.SMTPPort)
	auth := smtp.PlainAuth("", e.cfg.SMTPUsername, e.cfg.SMTPPassword, e.cfg.SMTPHost)

	body := fmt.Sprintf("Subject: [%s] %s\r\n\r\n%s", strings.ToUpper(string(severity)), subject, message)

	if e.cfg.SMTPPort == "465" {
		return e.sendDirectTLS(addr, auth, body)
	}
	return smtp.SendMail(addr, auth, e.cfg.SMTPFromEmail, []string{e.cfg.AlertRecipientEmail}, []byte(body))
}

func (e *EmailChannel) sendDirectTLS(addr string, auth smtp.Auth, body string) error {
	tlsConfig := &tls.Config{ServerName: e.cfg.SMTPHost}
	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("notify: tls dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, e.cfg.SMTPHost)
	if err != nil {
		return fmt.Errorf("notify: smtp client: %w", err)
	}
	defer client.Close()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("notify: smtp auth: %w", err)
	}
	if err := client.Mail(e.cfg.SMTPFromEmail); err != nil {
		return fmt.Errorf("notify: smtp mail from: %w", err)
	}
	if err := client.Rcpt(e.cfg.AlertRecipientEmail); err != nil {
		return fmt.Errorf("notify: smtp rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("notify: smtp data: %w", err)
	}
	defer w.Close()
	if _, err := w.Write([]byte(body)); err != nil {
		return fmt.Errorf("notify: smtp write body: %w", err)
	}
	return nil
}
