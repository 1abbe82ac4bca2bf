package mailer

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"pantrypal-api/internal/logging"
)

func TestNewWithoutHostLogsOnly(t *testing.T) {
	m := New(Config{}, logging.NewNopLogger())
	if _, ok := m.(*LogMailer); !ok {
		t.Fatalf("New without host = %T, want *LogMailer", m)
	}
	if err := m.Send(context.Background(), Message{To: "a@example.com"}); err != nil {
		t.Errorf("LogMailer.Send: %v", err)
	}
}

func TestSMTPMailerBuild(t *testing.T) {
	m := New(Config{Host: "smtp.example.com", Port: 587, Username: "bot@example.com", FromName: "PantryPal"}, nil).(*SMTPMailer)

	var buf bytes.Buffer
	if _, err := m.build(PasswordReset("PantryPal", "cook@example.com", "https://app/reset?token=abc")).WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"To: cook@example.com",
		"Subject: PantryPal password reset",
		`"PantryPal" <bot@example.com>`,
		"text/html",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("message missing %q:\n%s", want, out)
		}
	}
}

func TestSendHonoursCancelledContext(t *testing.T) {
	m := New(Config{Host: "127.0.0.1", Port: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Send(ctx, Message{To: "a@example.com"}); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestPasswordResetEscapesLink(t *testing.T) {
	msg := PasswordReset("Pantry", "a@example.com", `https://x/?a=1&b="2"`)
	if !strings.Contains(msg.HTML, "a=1&amp;b=&#34;2&#34;") {
		t.Errorf("link not escaped: %s", msg.HTML)
	}
}
