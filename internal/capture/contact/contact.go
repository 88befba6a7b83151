// Package contact implements the contact-form capture: after a submission
// is persisted, a notification email is rendered from a template and sent
// to the configured recipient.
package contact

import (
	"context"
	"fmt"
	"time"

	"github.com/formrelay/capture_layer/internal/capture"
	"github.com/formrelay/capture_layer/internal/capture/datatype"
	"github.com/formrelay/capture_layer/internal/capture/template"
	"github.com/formrelay/capture_layer/internal/errors"
	"github.com/formrelay/capture_layer/internal/notifier"
)

// DefaultEmailTemplate is the notification body rendered for each
// submission.
const DefaultEmailTemplate = "email-contact.tmpl"

// DefaultSchema is the field declaration used when a contact capture does
// not override it.
func DefaultSchema(types *datatype.Registry) (capture.Schema, error) {
	return capture.NewSchema(
		[]capture.Field{
			{Name: "name", Type: "Text"},
			{Name: "email", Type: "Email"},
			{Name: "phone", Type: "Text"},
			{Name: "message", Type: "LargeText"},
		},
		[]string{"name", "email", "message"},
		types,
	)
}

// Config assembles contact hooks.
type Config struct {
	CaptureName    string
	Mailer         notifier.Notifier
	Templates      *template.Engine
	EmailTemplate  string
	RecipientName  string
	RecipientEmail string
}

// Hooks renders and sends the notification email after persistence.
type Hooks struct {
	capture.NopHooks
	cfg Config
	now func() time.Time
}

// NewHooks builds the contact hooks. A missing mailer or recipient is a
// configuration error.
func NewHooks(cfg Config) (*Hooks, error) {
	if cfg.Mailer == nil {
		return nil, errors.Configuration("contact capture is not configured with a mail client")
	}
	if cfg.RecipientName == "" || cfg.RecipientEmail == "" {
		return nil, errors.Configuration("contact capture does not have valid recipient name and email information")
	}
	if cfg.Templates == nil {
		return nil, errors.Configuration("contact capture has no template engine")
	}
	if cfg.EmailTemplate == "" {
		cfg.EmailTemplate = DefaultEmailTemplate
	}
	return &Hooks{cfg: cfg, now: time.Now}, nil
}

// PostCapture renders the email template with the submission as sender data
// and delivers it. A provider failure surfaces as a chained notifier error;
// the submission itself is already persisted by the time this runs.
func (h *Hooks) PostCapture(ctx context.Context, rec capture.Record) error {
	body, err := h.cfg.Templates.RenderFile(h.cfg.EmailTemplate, map[string]any{
		"sender": map[string]string(rec),
		"date":   h.now().Format("2 Jan 2006 at 15:04:05"),
	})
	if err != nil {
		return err
	}

	return h.cfg.Mailer.Send(ctx, notifier.Message{
		Subject:   fmt.Sprintf("%s Contact Form submission", h.cfg.CaptureName),
		Body:      body,
		FromName:  rec["name"],
		FromEmail: rec["email"],
		ToName:    h.cfg.RecipientName,
		ToEmail:   h.cfg.RecipientEmail,
	})
}
