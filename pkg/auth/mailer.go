package auth

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"

	"github.com/sirupsen/logrus"
)

// Mailer delivers access codes to users.
type Mailer interface {
	SendAccessCode(ctx context.Context, email, code string) error
}

// SMTPConfig holds SMTP delivery settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends access codes over SMTP with PLAIN auth. net/smtp
// upgrades to STARTTLS automatically when the server advertises it.
type SMTPMailer struct {
	config SMTPConfig
}

// NewSMTPMailer creates an SMTP-backed mailer.
func NewSMTPMailer(config SMTPConfig) *SMTPMailer {
	return &SMTPMailer{config: config}
}

// SendAccessCode sends the verification email.
func (m *SMTPMailer) SendAccessCode(ctx context.Context, email, code string) error {
	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)

	var auth smtp.Auth
	if m.config.Username != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	msg, err := buildAccessCodeMessage(m.config.From, email, code)
	if err != nil {
		return fmt.Errorf("failed to build access code message: %w", err)
	}

	if err := smtp.SendMail(addr, auth, m.config.From, []string{email}, msg); err != nil {
		return fmt.Errorf("failed to send access code: %w", err)
	}
	return nil
}

// buildAccessCodeMessage renders the verification mail as
// multipart/alternative with plain-text and HTML parts.
func buildAccessCodeMessage(from, to, code string) ([]byte, error) {
	var buf bytes.Buffer
	alt := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	buf.WriteString("Subject: Your verification code\r\n")
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", alt.Boundary())

	text, err := alt.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(text, "Your verification code is %s\r\n\r\nIt expires in one hour.\r\n", code)

	html, err := alt.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(html,
		"<html><body><p>Your verification code is <strong>%s</strong></p><p>It expires in one hour.</p></body></html>\r\n",
		code)

	if err := alt.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LogMailer writes codes to the log instead of sending mail. Used in
// development and tests where no SMTP server exists.
type LogMailer struct {
	logger *logrus.Logger
}

// NewLogMailer creates a log-backed mailer.
func NewLogMailer(logger *logrus.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendAccessCode logs the code.
func (m *LogMailer) SendAccessCode(ctx context.Context, email, code string) error {
	m.logger.WithFields(logrus.Fields{
		"email": email,
		"code":  code,
	}).Info("access code issued (log mailer)")
	return nil
}
