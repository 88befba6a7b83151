package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/formrelay/capture_layer/internal/errors"
)

const sampleYAML = `
server:
  listen: ":9090"
  session_secret: "test-secret"
database:
  dsn: "postgres://localhost/captures?sslmode=disable"
global_users:
  root: "5ebe2294ecd0e0f08eab7690d2a6ee69"
captures:
  - name: newsletter
    kind: signup
    signup:
      base_url: "https://mandrillapp.com/api/1.0"
      api_key: "key-123"
      list_id: "abc"
      send_welcome: true
  - name: enquiries
    kind: contact
    fields:
      - {name: name, type: Text}
      - {name: email, type: Email}
      - {name: message, type: LargeText}
    required: [name, email, message]
    contact:
      api_key: "key-456"
      recipient_name: "Site Owner"
      recipient_email: "owner@example.com"
  - name: survey
    fields:
      - {name: answer, type: LargeText}
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "captures.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Listen != ":9090" {
		t.Fatalf("unexpected listen %q", cfg.Server.Listen)
	}
	if cfg.Server.TemplateDir != "templates" {
		t.Fatalf("template dir should default, got %q", cfg.Server.TemplateDir)
	}
	if len(cfg.Captures) != 3 {
		t.Fatalf("expected 3 captures, got %d", len(cfg.Captures))
	}
	if cfg.Captures[2].Kind != KindPlain {
		t.Fatalf("kind should default to plain, got %q", cfg.Captures[2].Kind)
	}
	if !cfg.Captures[0].Signup.SendWelcome {
		t.Fatalf("signup settings not parsed")
	}
	if got := cfg.Captures[1].Fields[2]; got.Name != "message" || got.Type != "LargeText" {
		t.Fatalf("field order not preserved: %+v", got)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CAPTURE_LISTEN", ":7070")
	t.Setenv("CAPTURE_DATABASE_DSN", "postgres://override/db")

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Listen != ":7070" {
		t.Fatalf("env should override listen, got %q", cfg.Server.Listen)
	}
	if cfg.Database.DSN != "postgres://override/db" {
		t.Fatalf("env should override dsn, got %q", cfg.Database.DSN)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidation(t *testing.T) {
	cases := map[string]string{
		"no captures": `
server: {session_secret: s}
captures: []
`,
		"duplicate names": `
server: {session_secret: s}
captures:
  - {name: a, fields: [{name: x, type: Text}]}
  - {name: A, fields: [{name: x, type: Text}]}
`,
		"unknown kind": `
server: {session_secret: s}
captures:
  - {name: a, kind: webhook, fields: [{name: x, type: Text}]}
`,
		"signup without settings": `
server: {session_secret: s}
captures:
  - {name: a, kind: signup}
`,
		"contact without recipient": `
server: {session_secret: s}
captures:
  - name: a
    kind: contact
    contact: {api_key: k}
`,
		"plain without fields": `
server: {session_secret: s}
captures:
  - {name: a}
`,
		"users without session secret": `
captures:
  - name: a
    fields: [{name: x, type: Text}]
    users: {admin: hash}
`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			if err == nil {
				t.Fatal("expected a configuration error")
			}
			if !errors.Is(err, errors.KindConfiguration) {
				t.Fatalf("expected configuration kind, got %v", err)
			}
		})
	}
}
