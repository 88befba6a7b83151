// Package httpapi routes inbound requests to capture handlers and converts
// every failure into the uniform response envelope.
package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/formrelay/capture_layer/internal/capture"
	"github.com/formrelay/capture_layer/internal/errors"
	"github.com/formrelay/capture_layer/internal/logging"
	"github.com/formrelay/capture_layer/internal/metrics"
	"github.com/formrelay/capture_layer/internal/middleware"
)

// RoutingContext carries everything a dispatched action may need: the
// resolved capture, the action, positional path parameters and the request
// parameters from query string and body.
type RoutingContext struct {
	CaptureName string
	Action      capture.Action
	PathParams  []string
	QueryParams map[string]string
	PostParams  map[string]string
}

// Config assembles a Router.
type Config struct {
	Captures map[string]*capture.Handler
	Auth     *middleware.BasicAuth
	Metrics  *metrics.Metrics
	Log      *logging.Logger
	// Debug includes the flattened error cause chain in failure
	// envelopes. Never enable in production.
	Debug bool
}

// Router resolves /<capture>/<action>/<params...> paths and dispatches to
// the closed action set of the matched handler.
type Router struct {
	captures map[string]*capture.Handler
	auth     *middleware.BasicAuth
	metrics  *metrics.Metrics
	log      *logging.Logger
	debug    bool
}

// NewRouter builds a router over the configured captures. Lookup is
// case-insensitive.
func NewRouter(cfg Config) *Router {
	captures := make(map[string]*capture.Handler, len(cfg.Captures))
	for name, h := range cfg.Captures {
		captures[strings.ToLower(name)] = h
	}
	if cfg.Log == nil {
		cfg.Log = logging.NewNop()
	}
	return &Router{
		captures: captures,
		auth:     cfg.Auth,
		metrics:  cfg.Metrics,
		log:      cfg.Log,
		debug:    cfg.Debug,
	}
}

// Handler returns the HTTP handler tree: operational endpoints plus the
// capture dispatch catch-all.
func (rt *Router) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.PathPrefix("/").HandlerFunc(rt.dispatch)
	return r
}

func (rt *Router) dispatch(w http.ResponseWriter, r *http.Request) {
	// Capture responses must never be cached.
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")

	rc, handler, err := rt.resolve(r)
	if err != nil {
		rt.writeFailure(w, r, err)
		return
	}

	if rc.Action.RequiresAuth() {
		username, ok := rt.auth.Require(w, r, handler.Name(), handler.Users())
		if !ok {
			return
		}
		rt.log.WithContext(r.Context()).WithFields(map[string]any{
			"user":   username,
			"action": string(rc.Action),
		}).Debug("authenticated action")
	}

	switch rc.Action {
	case capture.ActionReceive:
		rt.receive(w, r, handler, rc)
	case capture.ActionFields:
		writeJSON(w, http.StatusOK, handler.FieldsContract())
	case capture.ActionAdmin:
		rt.admin(w, r, handler)
	case capture.ActionDownload:
		rt.download(w, r, handler)
	case capture.ActionLogout:
		rt.auth.Logout(w, handler.Name())
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "You have logged out!")
	}
}

// resolve parses the path into a routing context and looks up the capture
// handler. Failures are configuration errors for the envelope.
func (rt *Router) resolve(r *http.Request) (RoutingContext, *capture.Handler, error) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/ "), "/")

	name := strings.ToLower(parts[0])
	if name == "" {
		return RoutingContext{}, nil, errors.Configuration("no capture specified")
	}
	handler, ok := rt.captures[name]
	if !ok {
		return RoutingContext{}, nil, errors.Configuration("no capture is configured for %q", name)
	}

	actionName := ""
	if len(parts) > 1 {
		actionName = parts[1]
	}
	action, err := capture.ParseAction(actionName)
	if err != nil {
		return RoutingContext{}, nil, err
	}

	rc := RoutingContext{
		CaptureName: name,
		Action:      action,
		QueryParams: firstValues(r.URL.Query()),
		PostParams:  bodyParams(r),
	}
	if len(parts) > 2 {
		rc.PathParams = parts[2:]
	}
	return rc, handler, nil
}

func (rt *Router) receive(w http.ResponseWriter, r *http.Request, handler *capture.Handler, rc RoutingContext) {
	// Submissions come from forms on other domains.
	w.Header().Set("Access-Control-Allow-Origin", "*")

	message, err := handler.Receive(r.Context(), rc.PostParams)
	if err != nil {
		rt.recordSubmission(handler.Name(), err)
		rt.writeFailure(w, r, err)
		return
	}

	rt.recordSubmission(handler.Name(), nil)
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: message})
}

func (rt *Router) admin(w http.ResponseWriter, r *http.Request, handler *capture.Handler) {
	html, err := handler.AdminHTML(r.Context())
	if err != nil {
		rt.writeFailure(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, html)
}

func (rt *Router) download(w http.ResponseWriter, r *http.Request, handler *capture.Handler) {
	payload, filename, err := handler.CSV(r.Context())
	if err != nil {
		rt.writeFailure(w, r, err)
		return
	}

	w.Header().Set("Content-Description", "File Transfer")
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	_, _ = w.Write(payload)
}

// writeFailure converts any error from any stage into a failure envelope.
// Raw errors never reach the client.
func (rt *Router) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	env := Envelope{Message: err.Error()}

	var ve *capture.ValidationError
	if stderrors.As(err, &ve) {
		env.Missing = ve.Missing
		env.Invalid = ve.Invalid
	}
	if rt.debug {
		env.Debug = errors.Flatten(stderrors.Unwrap(err))
	}

	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		rt.log.WithContext(r.Context()).WithError(err).Error("request failed")
	} else {
		rt.log.WithContext(r.Context()).WithError(err).Debug("request rejected")
	}
	writeJSON(w, status, env)
}

func statusFor(err error) int {
	var ve *capture.ValidationError
	switch {
	case stderrors.As(err, &ve):
		// Legacy form clients read the envelope, not the status.
		return http.StatusOK
	case stderrors.Is(err, capture.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, errors.KindConfiguration):
		return http.StatusNotFound
	case errors.Is(err, errors.KindAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, errors.KindNotifier):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (rt *Router) recordSubmission(captureName string, err error) {
	if rt.metrics == nil {
		return
	}
	var ve *capture.ValidationError
	switch {
	case err == nil:
		rt.metrics.RecordSubmission(captureName, "accepted")
	case stderrors.As(err, &ve):
		rt.metrics.RecordSubmission(captureName, "rejected")
	default:
		rt.metrics.RecordSubmission(captureName, "failed")
		if errors.Is(err, errors.KindNotifier) {
			rt.metrics.RecordNotifierFailure(captureName)
		}
	}
}

// bodyParams extracts submitted values from the request body: form
// encoding by default, or a flat JSON object.
func bodyParams(r *http.Request) map[string]string {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil
		}
		params := make(map[string]string, len(raw))
		for k, v := range raw {
			if s, ok := v.(string); ok {
				params[k] = s
			} else if v != nil {
				params[k] = fmt.Sprint(v)
			}
		}
		return params
	}

	if err := r.ParseForm(); err != nil {
		return nil
	}
	return firstValues(r.PostForm)
}

func firstValues(values map[string][]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
