package contact

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/Zachkp/folio/internal/config"
)

func testConfig() config.MailConfig {
	return config.MailConfig{
		SMTPHost: "smtp.example.com",
		SMTPPort: "587",
		SMTPUser: "site@example.com",
		SMTPPass: "app-password",
		ToEmail:  "owner@example.com",
	}
}

func TestSMTPSenderComposesMessage(t *testing.T) {
	s := NewSMTPSender(testConfig())
	var gotAddr string
	var gotTo []string
	var gotMsg string
	s.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	m := Message{Name: "Jane\r\nBcc: evil@example.com", Email: "jane@example.com", Message: "Hello there"}
	if err := s.Send(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	if gotAddr != "smtp.example.com:587" || len(gotTo) != 1 || gotTo[0] != "owner@example.com" {
		t.Fatalf("unexpected envelope %s %v", gotAddr, gotTo)
	}
	headers, body, _ := strings.Cut(gotMsg, "\r\n\r\n")
	if strings.Contains(headers, "\r\nBcc:") {
		t.Fatalf("header injection got through:\n%s", headers)
	}
	if !strings.Contains(headers, "Subject: Portfolio Contact: Jane Bcc: evil@example.com") {
		t.Fatalf("unexpected subject in:\n%s", headers)
	}
	if !strings.Contains(headers, "Reply-To: jane@example.com") || !strings.Contains(body, "Hello there") {
		t.Fatalf("unexpected message:\n%s", gotMsg)
	}
}

func TestSMTPSenderErrors(t *testing.T) {
	cfg := testConfig()
	cfg.SMTPPass = ""
	if err := NewSMTPSender(cfg).Send(context.Background(), Message{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	s := NewSMTPSender(testConfig())
	boom := errors.New("boom")
	s.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }
	if err := s.Send(context.Background(), Message{Name: "a"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
}

func TestNewPicksTransport(t *testing.T) {
	if _, ok := New(testConfig()).(*SMTPSender); !ok {
		t.Fatal("expected SMTP sender without a Resend key")
	}
	cfg := testConfig()
	cfg.ResendAPIKey = "re_test"
	if _, ok := New(cfg).(*ResendSender); !ok {
		t.Fatal("expected Resend sender with a key")
	}
	r := NewResendSender("re_test", "site@example.com", "")
	if err := r.Send(context.Background(), Message{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestHTMLEscapes(t *testing.T) {
	out := HTML(Message{Name: "<b>x</b>", Email: "a@b.c", Message: "<script>"})
	if strings.Contains(out, "<script>") || strings.Contains(out, "<b>x") {
		t.Fatalf("unescaped input in %s", out)
	}
}
