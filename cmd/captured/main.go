// Package main runs the form capture service: it loads the capture
// configuration, wires each capture to its store and notifier hooks, and
// serves the HTTP dispatch tree.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/formrelay/capture_layer/internal/capture"
	"github.com/formrelay/capture_layer/internal/capture/contact"
	"github.com/formrelay/capture_layer/internal/capture/datatype"
	"github.com/formrelay/capture_layer/internal/capture/signup"
	"github.com/formrelay/capture_layer/internal/capture/storage/memory"
	"github.com/formrelay/capture_layer/internal/capture/storage/postgres"
	"github.com/formrelay/capture_layer/internal/capture/template"
	"github.com/formrelay/capture_layer/internal/config"
	"github.com/formrelay/capture_layer/internal/errors"
	"github.com/formrelay/capture_layer/internal/httpapi"
	"github.com/formrelay/capture_layer/internal/logging"
	"github.com/formrelay/capture_layer/internal/metrics"
	"github.com/formrelay/capture_layer/internal/middleware"
	"github.com/formrelay/capture_layer/internal/notifier/listsub"
	"github.com/formrelay/capture_layer/internal/notifier/mailer"

	"github.com/prometheus/client_golang/prometheus"
)

// Provider defaults, overridable per capture in the configuration.
const (
	defaultMailAPI = "https://mandrillapp.com/api/1.0"
	defaultListAPI = "https://us1.api.mailchimp.com/2.0"
)

func main() {
	configPath := flag.String("config", "config/captures.yaml", "path to the captures configuration")
	flag.Parse()

	// Local development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New("captured", true).WithError(err).Error("unable to load configuration")
		os.Exit(1)
	}

	log := logging.New("captured", cfg.Server.Debug)

	var db *sqlx.DB
	if cfg.Database.DSN != "" {
		db, err = sqlx.Open("postgres", cfg.Database.DSN)
		if err != nil {
			log.WithError(err).Error("unable to open database")
			os.Exit(1)
		}
		if err := db.Ping(); err != nil {
			log.WithError(err).Error("database is unreachable")
			os.Exit(1)
		}
		defer db.Close()
	} else {
		log.Warn("no database configured: records are held in memory only")
	}

	captures, err := buildCaptures(cfg, db, log)
	if err != nil {
		log.WithError(err).Error("unable to build captures")
		os.Exit(1)
	}

	var sessions *middleware.Sessions
	if cfg.Server.SessionSecret != "" {
		sessions, err = middleware.NewSessions(cfg.Server.SessionSecret)
		if err != nil {
			log.WithError(err).Error("unable to build sessions")
			os.Exit(1)
		}
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	router := httpapi.NewRouter(httpapi.Config{
		Captures: captures,
		Auth:     middleware.NewBasicAuth(cfg.GlobalUsers, sessions, log),
		Metrics:  m,
		Log:      log,
		Debug:    cfg.Server.Debug,
	})

	handler := middleware.CORS(router.Handler())
	handler = middleware.Logging(log)(handler)
	handler = middleware.Metrics(m)(handler)
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
		handler = limiter.Handler(handler)
	}

	server := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Server.Listen).Infof("capture service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server error")
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
	}
}

// buildCaptures assembles a handler per configured capture: schema, store,
// and the hooks its kind requires.
func buildCaptures(cfg *config.Config, db *sqlx.DB, log *logging.Logger) (map[string]*capture.Handler, error) {
	types := datatype.NewRegistry()
	templates := template.New(cfg.Server.TemplateDir, template.NewFilterSet(), log)

	captures := make(map[string]*capture.Handler, len(cfg.Captures))
	for i := range cfg.Captures {
		cp := &cfg.Captures[i]

		schema, err := buildSchema(cp, types)
		if err != nil {
			return nil, err
		}

		var store capture.Store
		if db != nil {
			store, err = postgres.New(db, cp.Name, schema, types)
			if err != nil {
				return nil, err
			}
		} else {
			store = memory.New()
		}

		hooks, err := buildHooks(cp, templates, log)
		if err != nil {
			return nil, err
		}

		handler, err := capture.New(capture.Config{
			Name:          cp.Name,
			Schema:        schema,
			Types:         types,
			Store:         store,
			Hooks:         hooks,
			Users:         cp.Users,
			AdminTemplate: cp.AdminTemplate,
			Templates:     templates,
			Log:           log,
		})
		if err != nil {
			return nil, err
		}
		captures[cp.Name] = handler
	}
	return captures, nil
}

func buildSchema(cp *config.Capture, types *datatype.Registry) (capture.Schema, error) {
	if len(cp.Fields) == 0 {
		switch cp.Kind {
		case config.KindSignup:
			return signup.DefaultSchema(types)
		case config.KindContact:
			return contact.DefaultSchema(types)
		}
		return capture.Schema{}, errors.Configuration("capture %q declares no fields", cp.Name)
	}

	fields := make([]capture.Field, len(cp.Fields))
	for i, f := range cp.Fields {
		fields[i] = capture.Field{Name: f.Name, Type: f.Type}
	}
	return capture.NewSchema(fields, cp.Required, types)
}

func buildHooks(cp *config.Capture, templates *template.Engine, log *logging.Logger) (capture.Hooks, error) {
	switch cp.Kind {
	case config.KindSignup:
		baseURL := cp.Signup.BaseURL
		if baseURL == "" {
			baseURL = defaultListAPI
		}
		client := listsub.New(baseURL, cp.Signup.APIKey, cp.Signup.ListID, cp.Signup.SendWelcome)
		return signup.NewHooks(client, log)
	case config.KindContact:
		baseURL := cp.Contact.BaseURL
		if baseURL == "" {
			baseURL = defaultMailAPI
		}
		return contact.NewHooks(contact.Config{
			CaptureName:    cp.Name,
			Mailer:         mailer.New(baseURL, cp.Contact.APIKey),
			Templates:      templates,
			EmailTemplate:  cp.Contact.EmailTemplate,
			RecipientName:  cp.Contact.RecipientName,
			RecipientEmail: cp.Contact.RecipientEmail,
		})
	default:
		return capture.NopHooks{}, nil
	}
}
