// Package signup implements the mailing-list signup capture: after a
// submission is persisted, the address is subscribed to the configured
// list with the remaining fields as merge variables.
package signup

import (
	"context"
	"strings"

	"github.com/formrelay/capture_layer/internal/capture"
	"github.com/formrelay/capture_layer/internal/capture/datatype"
	"github.com/formrelay/capture_layer/internal/errors"
	"github.com/formrelay/capture_layer/internal/logging"
	"github.com/formrelay/capture_layer/internal/notifier"
)

// DefaultSchema is the field declaration used when a signup capture does
// not override it: an email address plus optional first and last name.
func DefaultSchema(types *datatype.Registry) (capture.Schema, error) {
	return capture.NewSchema(
		[]capture.Field{
			{Name: "email", Type: "Email"},
			{Name: "fname", Type: "Text"},
			{Name: "lname", Type: "Text"},
		},
		[]string{"email"},
		types,
	)
}

// Hooks forwards accepted signups to the list subscriber.
type Hooks struct {
	capture.NopHooks
	subscriber notifier.Subscriber
	log        *logging.Logger
}

// NewHooks builds the signup hooks. A missing subscriber is a
// configuration error: a signup capture without a list makes no sense.
func NewHooks(subscriber notifier.Subscriber, log *logging.Logger) (*Hooks, error) {
	if subscriber == nil {
		return nil, errors.Configuration("signup capture is not configured with a list subscription client")
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Hooks{subscriber: subscriber, log: log}, nil
}

// PostCapture subscribes the submitted address. Merge variables are the
// remaining fields with upper-cased keys, the EMAIL key excluded.
func (h *Hooks) PostCapture(ctx context.Context, rec capture.Record) error {
	mergeVars := make(map[string]string, len(rec))
	for key, value := range rec {
		key = strings.ToUpper(key)
		if key == "EMAIL" {
			continue
		}
		mergeVars[key] = value
	}

	if err := h.subscriber.Subscribe(ctx, rec["email"], mergeVars); err != nil {
		return err
	}
	h.log.WithContext(ctx).Debug("address subscribed to list")
	return nil
}
