package notify

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"docmanager/internal/config"
)

func TestBuildResetMessage(t *testing.T) {
	raw, err := buildResetMessage("no-reply@example.com", "alice@example.com", "https://docs.example/reset-password?token=abc", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatalf("build message: %v", err)
	}
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("parse message: %v", err)
	}
	subject, _ := mr.Header.Subject()
	if subject != "Password reset" {
		t.Fatalf("unexpected subject %q", subject)
	}
	to, err := mr.Header.AddressList("To")
	if err != nil || len(to) != 1 || to[0].Address != "alice@example.com" {
		t.Fatalf("unexpected recipients %v (%v)", to, err)
	}
	p, err := mr.NextPart()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	body, _ := io.ReadAll(p.Body)
	if !strings.Contains(string(body), "https://docs.example/reset-password?token=abc") {
		t.Fatalf("body does not contain link: %q", body)
	}
}

func TestResetLink(t *testing.T) {
	if got := resetLink("", "tok"); got != "tok" {
		t.Fatalf("expected bare token without base url, got %q", got)
	}
	if got := resetLink("https://docs.example/", "a b"); got != "https://docs.example/reset-password?token=a+b" {
		t.Fatalf("unexpected link %q", got)
	}
}

func TestLogSender(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := NewSender(config.Config{PasswordResetSender: "log"}, logger)
	if err := s.SendPasswordReset(context.Background(), "bob@example.com", "tok123"); err != nil {
		t.Fatalf("send: %v", err)
	}
	entries := hook.AllEntries()
	if len(entries) != 2 || entries[0].Level != logrus.WarnLevel {
		t.Fatalf("expected a startup warning and one reset entry, got %d", len(entries))
	}
	entry := hook.LastEntry()
	if entry.Level != logrus.WarnLevel {
		t.Fatalf("expected reset link at warn level, got %v", entry.Level)
	}
	if entry.Data["email"] != "bob@example.com" || entry.Data["link"] != "tok123" {
		t.Fatalf("unexpected fields %#v", entry.Data)
	}
}
