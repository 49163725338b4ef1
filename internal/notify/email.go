package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/sbilibin2017/gw-shop-auth/internal/logger"
	"gopkg.in/gomail.v2"
)

// ErrConfigMissing is returned when SMTP settings are incomplete.
var ErrConfigMissing = errors.New("email config missing")

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Sender delivers prepared messages. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier sends password reset links over SMTP.
type EmailNotifier struct {
	cfg    Config
	sender Sender
}

// NewEmailNotifier creates a notifier dialing cfg.Host for every message.
func NewEmailNotifier(cfg Config) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
	}
}

// NewEmailNotifierWithSender creates a notifier using a custom sender.
func NewEmailNotifierWithSender(cfg Config, sender Sender) *EmailNotifier {
	return &EmailNotifier{cfg: cfg, sender: sender}
}

// SendPasswordReset mails resetURL to toEmail.
func (n *EmailNotifier) SendPasswordReset(ctx context.Context, toEmail, resetURL string) error {
	if n.cfg.Host == "" || n.cfg.From == "" {
		return ErrConfigMissing
	}
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "Password reset")
	m.SetBody("text/plain", fmt.Sprintf(
		"You requested a password reset.\n\nOpen the link below to choose a new password:\n%s\n\nIf you did not request it, ignore this message.\n",
		resetURL,
	))
	m.AddAlternative("text/html", buildResetHTML(resetURL))

	if err := n.sender.DialAndSend(m); err != nil {
		logger.Log.Errorw("failed to send password reset email", "to", toEmail, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	logger.Log.Infow("password reset email sent", "to", toEmail)
	return nil
}

func buildResetHTML(resetURL string) string {
	link := html.EscapeString(resetURL)
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Password reset</h2>
    <p>You requested a password reset. The link is valid for a limited time.</p>
    <p><a href="%s" target="_blank">Choose a new password</a></p>
    <p style="font-size: 12px; color: #6b7280;">If you did not request it, ignore this message.</p>
  </div>
</body>
</html>`, link)
}
