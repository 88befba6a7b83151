// Package listsub subscribes addresses to a Mailchimp-compatible mailing
// list API.
package listsub

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/formrelay/capture_layer/internal/errors"
	"github.com/formrelay/capture_layer/internal/httputil"
	"github.com/formrelay/capture_layer/internal/notifier"
)

// Client talks to the mailing-list provider.
type Client struct {
	api         *httputil.Client
	apiKey      string
	listID      string
	sendWelcome bool
}

var _ notifier.Subscriber = (*Client)(nil)

// New creates a list-subscription client for the provider at baseURL.
func New(baseURL, apiKey, listID string, sendWelcome bool) *Client {
	return &Client{
		api:         httputil.New(httputil.Config{BaseURL: baseURL}),
		apiKey:      apiKey,
		listID:      listID,
		sendWelcome: sendWelcome,
	}
}

// Subscribe adds email to the configured list with the given merge
// variables.
func (c *Client) Subscribe(ctx context.Context, email string, mergeVars map[string]string) error {
	payload := map[string]any{
		"apikey":       c.apiKey,
		"id":           c.listID,
		"email":        map[string]string{"email": email},
		"merge_vars":   mergeVars,
		"email_type":   "html",
		"double_optin": false,
		"send_welcome": c.sendWelcome,
	}

	body, err := c.api.Post(ctx, "/lists/subscribe.json", payload)
	if err != nil {
		return errors.Notifier("unable to subscribe address to list", err)
	}

	if status := gjson.GetBytes(body, "status").String(); status == "error" {
		detail := gjson.GetBytes(body, "error").String()
		return errors.Notifier("unable to subscribe address to list", fmt.Errorf("%s", detail))
	}
	return nil
}
