package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"

	"docmanager/internal/config"
)

const dialTimeout = 10 * time.Second

// Sender delivers password reset tokens out of band.
type Sender interface {
	SendPasswordReset(ctx context.Context, toEmail, token string) error
}

func NewSender(cfg config.Config, logger logrus.FieldLogger) Sender {
	switch cfg.PasswordResetSender {
	case "smtp":
		return SMTPSender{
			host:    cfg.SMTPHost,
			port:    cfg.SMTPPort,
			from:    cfg.PasswordResetFrom,
			baseURL: cfg.PasswordResetBaseURL,
		}
	default:
		logger.Warn("password reset links are written to the log; use PASSWORD_RESET_SENDER=smtp in production")
		return LogSender{baseURL: cfg.PasswordResetBaseURL, logger: logger}
	}
}

func resetLink(baseURL, token string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		return token
	}
	return fmt.Sprintf("%s/reset-password?token=%s", base, url.QueryEscape(token))
}

// LogSender writes the usable reset link to the operator log at warn level.
// It is for development only: anyone reading the log can reset the account.
type LogSender struct {
	baseURL string
	logger  logrus.FieldLogger
}

func (s LogSender) SendPasswordReset(_ context.Context, toEmail, token string) error {
	s.logger.WithFields(logrus.Fields{
		"email": toEmail,
		"link":  resetLink(s.baseURL, token),
	}).Warn("password reset link issued")
	return nil
}

type SMTPSender struct {
	host    string
	port    int
	from    string
	baseURL string
}

func (s SMTPSender) SendPasswordReset(ctx context.Context, toEmail, token string) error {
	raw, err := buildResetMessage(s.from, toEmail, resetLink(s.baseURL, token), time.Now())
	if err != nil {
		return fmt.Errorf("compose reset mail: %w", err)
	}
	return s.send(ctx, toEmail, raw)
}

func buildResetMessage(from, to, link string, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject("Password reset")
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	body := "A password reset was requested for your account.\r\n\r\n" +
		"Use this link within the next hour to choose a new password:\r\n" + link + "\r\n\r\n" +
		"If you did not ask for this, ignore this message.\r\n"
	if _, err := io.WriteString(w, body); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s SMTPSender) send(ctx context.Context, to string, raw []byte) error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer client.Close()

	if err := client.Mail(s.from); err != nil {
		return err
	}
	if err := client.Rcpt(strings.TrimSpace(to)); err != nil {
		return err
	}
	wc, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(raw); err != nil {
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return client.Quit()
}
