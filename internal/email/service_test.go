package email

import (
	"net/smtp"
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{name: "empty config", config: Config{}, expected: false},
		{name: "missing host", config: Config{Port: "587", From: "web@example.org"}, expected: false},
		{name: "missing port", config: Config{Host: "smtp.example.org", From: "web@example.org"}, expected: false},
		{name: "missing from", config: Config{Host: "smtp.example.org", Port: "587"}, expected: false},
		{name: "fully configured", config: Config{Host: "smtp.example.org", Port: "587", From: "web@example.org"}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

type captured struct {
	addr string
	from string
	to   []string
	msg  string
}

func capture(c *captured) SendFunc {
	return func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		c.addr, c.from, c.to, c.msg = addr, from, to, string(msg)
		return nil
	}
}

func TestSendSetsReplyTo(t *testing.T) {
	var got captured
	svc := NewService(Config{Host: "smtp.example.org", Port: "587", From: "web@example.org", FromName: "Grace Fellowship"}).
		WithSender(capture(&got))

	err := svc.Send(Message{
		To:      []string{"office@example.org"},
		ReplyTo: "Ann Visitor <ann@example.com>",
		Subject: "New message\r\nBcc: evil@example.com",
		Text:    "hello",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.addr != "smtp.example.org:587" || got.from != "web@example.org" {
		t.Errorf("envelope = %s %s", got.addr, got.from)
	}
	if len(got.to) != 1 || got.to[0] != "office@example.org" {
		t.Errorf("to = %v", got.to)
	}
	if !strings.Contains(got.msg, "Reply-To: \"Ann Visitor\" <ann@example.com>\r\n") {
		t.Errorf("missing Reply-To header:\n%s", got.msg)
	}
	if strings.Contains(got.msg, "\r\nBcc:") {
		t.Errorf("subject injected a header:\n%s", got.msg)
	}
}

func TestSendHTMLIsMultipart(t *testing.T) {
	var got captured
	svc := NewService(Config{Host: "h", Port: "25", From: "web@example.org"}).WithSender(capture(&got))
	if err := svc.Send(Message{To: []string{"a@example.org"}, Subject: "s", Text: "plain", HTML: "<p>rich</p>"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	for _, want := range []string{"multipart/alternative", "plain", "<p>rich</p>", "--boundary-churchsite--"} {
		if !strings.Contains(got.msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSendErrors(t *testing.T) {
	if err := NewService(Config{}).Send(Message{To: []string{"a@example.org"}}); err != ErrNotConfigured {
		t.Errorf("unconfigured: %v", err)
	}
	svc := NewService(Config{Host: "h", Port: "25", From: "web@example.org"}).WithSender(capture(&captured{}))
	if err := svc.Send(Message{}); err == nil {
		t.Error("expected error for no recipients")
	}
	if err := svc.Send(Message{To: []string{"a@example.org"}, ReplyTo: "not an address"}); err == nil {
		t.Error("expected error for bad reply-to")
	}
}

func TestSendEncodesNonASCIISubject(t *testing.T) {
	var got captured
	svc := NewService(Config{Host: "h", Port: "25", From: "web@example.org"}).WithSender(capture(&got))
	if err := svc.Send(Message{To: []string{"a@example.org"}, Subject: "Gebet für José", Text: "x"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(got.msg, "Subject: =?utf-8?q?Gebet_f=C3=BCr_Jos=C3=A9?=\r\n") {
		t.Errorf("subject not encoded:\n%s", got.msg)
	}

	if err := svc.Send(Message{To: []string{"a@example.org"}, Subject: "Plain subject", Text: "x"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(got.msg, "Subject: Plain subject\r\n") {
		t.Errorf("ASCII subject changed:\n%s", got.msg)
	}
}
