// Package config loads the capture service configuration from YAML with
// environment overrides for the deployment-specific values.
package config

import (
	stderrors "errors"
	"os"
	"strings"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"github.com/formrelay/capture_layer/internal/errors"
)

// Capture kinds. Plain captures only persist; signup and contact attach
// their notifier hooks on top.
const (
	KindPlain   = "plain"
	KindSignup  = "signup"
	KindContact = "contact"
)

// Server holds the HTTP listener settings.
type Server struct {
	Listen        string `yaml:"listen" env:"CAPTURE_LISTEN,default=:8080"`
	Debug         bool   `yaml:"debug" env:"CAPTURE_DEBUG"`
	SessionSecret string `yaml:"session_secret" env:"CAPTURE_SESSION_SECRET"`
	TemplateDir   string `yaml:"template_dir" env:"CAPTURE_TEMPLATE_DIR,default=templates"`
}

// Database selects the record store. An empty DSN runs the service on the
// in-memory store, which is only useful for local development.
type Database struct {
	DSN string `yaml:"dsn" env:"CAPTURE_DATABASE_DSN"`
}

// RateLimit bounds submission throughput per client address. Zero values
// disable limiting.
type RateLimit struct {
	RequestsPerSecond int `yaml:"requests_per_second" env:"CAPTURE_RATE_LIMIT_RPS"`
	Burst             int `yaml:"burst" env:"CAPTURE_RATE_LIMIT_BURST"`
}

// Field declares one named, typed input of a capture. Order is significant:
// it fixes the column order of exports.
type Field struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Signup configures the mailing-list subscription hook.
type Signup struct {
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	ListID      string `yaml:"list_id"`
	SendWelcome bool   `yaml:"send_welcome"`
}

// Contact configures the submission-forwarding email hook.
type Contact struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	EmailTemplate  string `yaml:"email_template"`
	RecipientName  string `yaml:"recipient_name"`
	RecipientEmail string `yaml:"recipient_email"`
}

// Capture declares one endpoint of the service.
type Capture struct {
	Name          string            `yaml:"name"`
	Kind          string            `yaml:"kind"`
	Fields        []Field           `yaml:"fields"`
	Required      []string          `yaml:"required"`
	Users         map[string]string `yaml:"users"`
	AdminTemplate string            `yaml:"admin_template"`
	Signup        *Signup           `yaml:"signup"`
	Contact       *Contact          `yaml:"contact"`
}

// Config is the root document.
type Config struct {
	Server      Server            `yaml:"server"`
	Database    Database          `yaml:"database"`
	RateLimit   RateLimit         `yaml:"rate_limit"`
	GlobalUsers map[string]string `yaml:"global_users"`
	Captures    []Capture         `yaml:"captures"`
}

// Load reads and validates the configuration at path. Environment
// variables override the deployment-specific YAML values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Storage("unable to read configuration", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Configuration("unable to parse configuration: %v", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	err := envdecode.Decode(cfg)
	if err != nil && !stderrors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return errors.Configuration("unable to apply environment overrides: %v", err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.TemplateDir == "" {
		c.Server.TemplateDir = "templates"
	}
	if len(c.Captures) == 0 {
		return errors.Configuration("no captures are configured")
	}

	seen := make(map[string]bool, len(c.Captures))
	for i := range c.Captures {
		cp := &c.Captures[i]
		if err := cp.validate(); err != nil {
			return err
		}
		key := strings.ToLower(cp.Name)
		if seen[key] {
			return errors.Configuration("capture %q is declared more than once", cp.Name)
		}
		seen[key] = true
	}

	if c.needsAuth() && c.Server.SessionSecret == "" {
		return errors.Configuration("a session secret is required when any capture has admin users")
	}
	return nil
}

func (c *Config) needsAuth() bool {
	if len(c.GlobalUsers) > 0 {
		return true
	}
	for i := range c.Captures {
		if len(c.Captures[i].Users) > 0 {
			return true
		}
	}
	return false
}

func (cp *Capture) validate() error {
	if cp.Name == "" {
		return errors.Configuration("a capture is missing its name")
	}
	if cp.Kind == "" {
		cp.Kind = KindPlain
	}
	switch cp.Kind {
	case KindPlain:
	case KindSignup:
		if cp.Signup == nil || cp.Signup.APIKey == "" || cp.Signup.ListID == "" {
			return errors.Configuration("capture %q needs signup settings with an api key and list id", cp.Name)
		}
	case KindContact:
		if cp.Contact == nil || cp.Contact.APIKey == "" || cp.Contact.RecipientEmail == "" {
			return errors.Configuration("capture %q needs contact settings with an api key and recipient email", cp.Name)
		}
	default:
		return errors.Configuration("capture %q has unknown kind %q", cp.Name, cp.Kind)
	}
	if len(cp.Fields) == 0 && cp.Kind == KindPlain {
		return errors.Configuration("capture %q declares no fields", cp.Name)
	}
	return nil
}
