package contact

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/formrelay/capture_layer/internal/capture"
	"github.com/formrelay/capture_layer/internal/capture/template"
	"github.com/formrelay/capture_layer/internal/errors"
	"github.com/formrelay/capture_layer/internal/notifier"
)

type fakeMailer struct {
	sent []notifier.Message
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, msg notifier.Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func newTestEngine(t *testing.T, body string) *template.Engine {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, DefaultEmailTemplate), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return template.New(dir, template.NewFilterSet(), nil)
}

func TestPostCaptureSendsRenderedMail(t *testing.T) {
	mailer := &fakeMailer{}
	hooks, err := NewHooks(Config{
		CaptureName:    "enquiries",
		Mailer:         mailer,
		Templates:      newTestEngine(t, "From {{sender.name}} ({{sender.email|mailto}}) on {{date}}:\n{{sender.message}}"),
		RecipientName:  "Site Owner",
		RecipientEmail: "owner@example.com",
	})
	if err != nil {
		t.Fatalf("new hooks: %v", err)
	}

	rec := capture.Record{"name": "Ann", "email": "a@b.com", "message": "hello there"}
	if err := hooks.PostCapture(context.Background(), rec); err != nil {
		t.Fatalf("post capture: %v", err)
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(mailer.sent))
	}
	msg := mailer.sent[0]
	if msg.Subject != "enquiries Contact Form submission" {
		t.Fatalf("subject %q", msg.Subject)
	}
	if msg.FromEmail != "a@b.com" || msg.ToEmail != "owner@example.com" {
		t.Fatalf("addressing wrong: %+v", msg)
	}
	if !strings.Contains(msg.Body, "From Ann") || !strings.Contains(msg.Body, "mailto:a@b.com") {
		t.Fatalf("body not rendered: %q", msg.Body)
	}
	if !strings.Contains(msg.Body, "hello there") {
		t.Fatalf("message text missing: %q", msg.Body)
	}
}

func TestNewHooksValidatesConfig(t *testing.T) {
	eng := newTestEngine(t, "x")

	_, err := NewHooks(Config{Templates: eng, RecipientName: "A", RecipientEmail: "a@b.com"})
	if !errors.Is(err, errors.KindConfiguration) {
		t.Fatalf("expected configuration error without mailer, got %v", err)
	}

	_, err = NewHooks(Config{Mailer: &fakeMailer{}, Templates: eng})
	if !errors.Is(err, errors.KindConfiguration) {
		t.Fatalf("expected configuration error without recipient, got %v", err)
	}
}
