package capture

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/formrelay/capture_layer/internal/capture/datatype"
	"github.com/formrelay/capture_layer/internal/capture/template"
	"github.com/formrelay/capture_layer/internal/errors"
	"github.com/formrelay/capture_layer/internal/logging"
)

// Hooks is the extension point concrete capture types implement. Hooks run
// around persistence: PreCapture may normalise the record before it is
// stored, PostCapture typically drives an external notifier, Final is for
// trailing side effects.
type Hooks interface {
	PreCapture(ctx context.Context, rec Record) error
	PostCapture(ctx context.Context, rec Record) error
	Final(ctx context.Context, rec Record) error
}

// NopHooks implements Hooks with no behavior. Embed it to override only the
// hooks a capture type needs.
type NopHooks struct{}

func (NopHooks) PreCapture(context.Context, Record) error  { return nil }
func (NopHooks) PostCapture(context.Context, Record) error { return nil }
func (NopHooks) Final(context.Context, Record) error       { return nil }

// DefaultAdminTemplate is the shared admin view used when a capture does
// not configure its own.
const DefaultAdminTemplate = "admin.tmpl"

// Config assembles a capture handler.
type Config struct {
	Name          string
	Schema        Schema
	Types         *datatype.Registry
	Store         Store
	Hooks         Hooks
	Users         map[string]string
	AdminTemplate string
	Templates     *template.Engine
	Log           *logging.Logger
}

// Handler is one configured capture endpoint. Handlers hold no per-request
// state and are safe for concurrent use.
type Handler struct {
	name          string
	schema        Schema
	types         *datatype.Registry
	store         Store
	hooks         Hooks
	users         map[string]string
	adminTemplate string
	templates     *template.Engine
	log           *logging.Logger
	now           func() time.Time
}

// New builds a handler from cfg. Missing collaborators are configuration
// errors surfaced at boot.
func New(cfg Config) (*Handler, error) {
	if cfg.Name == "" {
		return nil, errors.Configuration("capture has no name")
	}
	if cfg.Types == nil {
		return nil, errors.Configuration("capture %q: no type registry", cfg.Name)
	}
	if cfg.Store == nil {
		return nil, errors.Configuration("capture %q: no store", cfg.Name)
	}
	if len(cfg.Schema.Fields()) == 0 {
		return nil, errors.Configuration("capture %q isn't configured to receive any data", cfg.Name)
	}
	if cfg.Hooks == nil {
		cfg.Hooks = NopHooks{}
	}
	if cfg.AdminTemplate == "" {
		cfg.AdminTemplate = DefaultAdminTemplate
	}
	if cfg.Log == nil {
		cfg.Log = logging.NewNop()
	}
	return &Handler{
		name:          cfg.Name,
		schema:        cfg.Schema,
		types:         cfg.Types,
		store:         cfg.Store,
		hooks:         cfg.Hooks,
		users:         cfg.Users,
		adminTemplate: cfg.AdminTemplate,
		templates:     cfg.Templates,
		log:           cfg.Log,
		now:           time.Now,
	}, nil
}

// Name returns the capture name as routed.
func (h *Handler) Name() string { return h.name }

// Schema returns the declared field schema.
func (h *Handler) Schema() Schema { return h.schema }

// Users returns the per-capture credential table (username to password
// hash).
func (h *Handler) Users() map[string]string { return h.users }

// Receive validates the submitted values, persists them and runs the
// capture hooks. On success it returns the confirmation message for the
// envelope. A validation failure aborts before persistence; a notifier
// failure after persistence is still returned to the caller.
func (h *Handler) Receive(ctx context.Context, post map[string]string) (string, error) {
	result := h.schema.Validate(post, h.types)
	if !result.Valid {
		return "", &ValidationError{Missing: result.Missing, Invalid: result.Invalid}
	}

	rec := result.Data
	if err := h.hooks.PreCapture(ctx, rec); err != nil {
		return "", err
	}

	if err := h.store.EnsureSchema(ctx, h.schema); err != nil {
		return "", err
	}
	if err := h.store.Insert(ctx, rec); err != nil {
		return "", err
	}

	if err := h.hooks.PostCapture(ctx, rec); err != nil {
		return "", err
	}
	if err := h.hooks.Final(ctx, rec); err != nil {
		return "", err
	}

	h.log.WithContext(ctx).WithField("fields", len(rec)).Info("submission captured")
	return "Your details have been saved", nil
}

// FieldsContract is the self-describing schema returned by the fields
// action, used by clients to generate forms.
type FieldsContract struct {
	Fields   map[string]string `json:"fields"`
	Required []string          `json:"required"`
}

// FieldsContract describes the schema and required set.
func (h *Handler) FieldsContract() FieldsContract {
	fields := make(map[string]string, len(h.schema.Fields()))
	for _, f := range h.schema.Fields() {
		fields[f.Name] = f.Type
	}
	required := h.schema.Required()
	if required == nil {
		required = []string{}
	}
	return FieldsContract{Fields: fields, Required: required}
}

// Records returns all persisted rows in ascending creation order, creating
// the backing table first if this capture has never stored anything.
func (h *Handler) Records(ctx context.Context) ([]Row, error) {
	if err := h.store.EnsureSchema(ctx, h.schema); err != nil {
		return nil, err
	}
	return h.store.SelectAll(ctx)
}

// AdminHTML renders the record listing through the capture's admin
// template. Rows are presented newest first.
func (h *Handler) AdminHTML(ctx context.Context) (string, error) {
	if h.templates == nil {
		return "", errors.Configuration("capture %q: no template engine", h.name)
	}

	rows, err := h.Records(ctx)
	if err != nil {
		return "", err
	}

	names := h.schema.FieldNames()

	var header strings.Builder
	for _, name := range names {
		fmt.Fprintf(&header, "<th>%s</th>", html.EscapeString(name))
	}
	header.WriteString("<th>created</th>")

	var body strings.Builder
	for i := len(rows) - 1; i >= 0; i-- {
		body.WriteString("<tr>")
		for _, name := range names {
			fmt.Fprintf(&body, "<td>%s</td>", html.EscapeString(rows[i].Values[name]))
		}
		fmt.Fprintf(&body, "<td>%s</td>", rows[i].Created.Format("2006-01-02 15:04:05"))
		body.WriteString("</tr>")
	}

	return h.templates.RenderFile(h.adminTemplate, map[string]any{
		"capture": h.name,
		"count":   fmt.Sprint(len(rows)),
		"header":  header.String(),
		"rows":    body.String(),
	})
}

// CSV serialises every persisted record to CSV. The header row is the
// schema field order plus created; the filename is stamped with the current
// date-time. A capture with no rows returns ErrNoData instead of an empty
// file.
func (h *Handler) CSV(ctx context.Context) ([]byte, string, error) {
	rows, err := h.Records(ctx)
	if err != nil {
		return nil, "", err
	}
	if len(rows) == 0 {
		return nil, "", ErrNoData
	}

	names := h.schema.FieldNames()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(append(append([]string{}, names...), "created")); err != nil {
		return nil, "", errors.Storage("unable to write export", err)
	}
	for _, row := range rows {
		line := make([]string, 0, len(names)+1)
		for _, name := range names {
			line = append(line, row.Values[name])
		}
		line = append(line, row.Created.Format("2006-01-02 15:04:05"))
		if err := w.Write(line); err != nil {
			return nil, "", errors.Storage("unable to write export", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", errors.Storage("unable to write export", err)
	}

	filename := fmt.Sprintf("%s_%s.csv", h.name, h.now().Format("2006-01-02_15-04-05"))
	return buf.Bytes(), filename, nil
}
