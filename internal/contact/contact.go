// Package contact delivers messages from the site's contact form to the owner.
package contact

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"net/smtp"
	"strings"

	"github.com/resend/resend-go/v3"

	"github.com/Zachkp/folio/internal/config"
)

var ErrNotConfigured = errors.New("mail delivery not configured")

// Message is a contact form submission.
type Message struct {
	Name    string `form:"fullName" json:"name" binding:"required,max=100"`
	Email   string `form:"email" json:"email" binding:"required,email,max=254"`
	Message string `form:"message" json:"message" binding:"required,min=2,max=5000"`
}

type Sender interface {
	Send(ctx context.Context, m Message) error
}

// New picks Resend when an API key is configured, SMTP otherwise.
func New(cfg config.MailConfig) Sender {
	if cfg.ResendAPIKey != "" {
		from := cfg.FromEmail
		if from == "" {
			from = "onboarding@resend.dev"
		}
		log.Printf("[contact] delivering via Resend to %s", cfg.ToEmail)
		return NewResendSender(cfg.ResendAPIKey, from, cfg.ToEmail)
	}
	log.Printf("[contact] delivering via SMTP %s:%s to %s", cfg.SMTPHost, cfg.SMTPPort, cfg.ToEmail)
	return NewSMTPSender(cfg)
}

func subject(m Message) string {
	return "Portfolio Contact: " + oneLine(m.Name)
}

// Body is the plain-text email body.
func Body(m Message) string {
	return fmt.Sprintf(`
New contact form submission from your portfolio:

Name: %s
Email: %s
Message:
%s

---
Sent from your portfolio contact form
`, m.Name, m.Email, m.Message)
}

// oneLine keeps user input from adding header lines.
func oneLine(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == '\r' || r == '\n' }), " ")
}

type SMTPSender struct {
	host, port string
	user, pass string
	to         string
	send       func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{
		host: cfg.SMTPHost,
		port: cfg.SMTPPort,
		user: cfg.SMTPUser,
		pass: cfg.SMTPPass,
		to:   cfg.ToEmail,
		send: smtp.SendMail,
	}
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	if s.user == "" || s.pass == "" || s.to == "" {
		return fmt.Errorf("%w: SMTP credentials or recipient missing", ErrNotConfigured)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := []byte("To: " + s.to + "\r\n" +
		"Subject: " + subject(m) + "\r\n" +
		"From: " + s.user + "\r\n" +
		"Reply-To: " + oneLine(m.Email) + "\r\n" +
		"\r\n" +
		Body(m) + "\r\n")

	auth := smtp.PlainAuth("", s.user, s.pass, s.host)
	if err := s.send(s.host+":"+s.port, auth, s.user, []string{s.to}, msg); err != nil {
		return fmt.Errorf("send contact email: %w", err)
	}
	log.Printf("[contact] email sent from %s", oneLine(m.Name))
	return nil
}

type ResendSender struct {
	client *resend.Client
	from   string
	to     string
}

func NewResendSender(apiKey, from, to string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey), from: from, to: to}
}

func (s *ResendSender) Send(ctx context.Context, m Message) error {
	if s.to == "" {
		return fmt.Errorf("%w: TO_EMAIL missing", ErrNotConfigured)
	}
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("Portfolio <%s>", s.from),
		To:      []string{s.to},
		Subject: subject(m),
		Html:    HTML(m),
		Text:    Body(m),
	}
	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send contact email: %w", err)
	}
	log.Printf("[contact] email sent from %s", oneLine(m.Name))
	return nil
}

// HTML is the escaped HTML body.
func HTML(m Message) string {
	return fmt.Sprintf(`<p>New contact form submission from your portfolio:</p>
<p><strong>Name:</strong> %s<br><strong>Email:</strong> %s</p>
<p style="white-space:pre-wrap">%s</p>`,
		html.EscapeString(m.Name), html.EscapeString(m.Email), html.EscapeString(m.Message))
}
