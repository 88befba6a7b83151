// Package mailer sends transactional mail through a Mandrill-compatible
// JSON API.
package mailer

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/formrelay/capture_layer/internal/errors"
	"github.com/formrelay/capture_layer/internal/httputil"
	"github.com/formrelay/capture_layer/internal/notifier"
)

// Client talks to the transactional-mail provider.
type Client struct {
	api    *httputil.Client
	apiKey string
}

var _ notifier.Notifier = (*Client)(nil)

// New creates a mailer client for the provider at baseURL.
func New(baseURL, apiKey string) *Client {
	return &Client{api: httputil.New(httputil.Config{BaseURL: baseURL}), apiKey: apiKey}
}

type recipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Type  string `json:"type"`
}

type message struct {
	Text      string      `json:"text"`
	Subject   string      `json:"subject"`
	FromEmail string      `json:"from_email"`
	FromName  string      `json:"from_name"`
	To        []recipient `json:"to"`
}

// Send delivers msg. The provider answers with a per-recipient status list;
// anything other than sent or queued is a notifier error chained with the
// provider's reject reason.
func (c *Client) Send(ctx context.Context, msg notifier.Message) error {
	payload := map[string]any{
		"key": c.apiKey,
		"message": message{
			Text:      msg.Body,
			Subject:   msg.Subject,
			FromEmail: msg.FromEmail,
			FromName:  msg.FromName,
			To:        []recipient{{Name: msg.ToName, Email: msg.ToEmail, Type: "to"}},
		},
	}

	body, err := c.api.Post(ctx, "/messages/send.json", payload)
	if err != nil {
		return errors.Notifier("unable to send submission email", err)
	}

	status := gjson.GetBytes(body, "0.status").String()
	if status != "sent" && status != "queued" {
		reason := gjson.GetBytes(body, "0.reject_reason").String()
		if reason == "" {
			reason = fmt.Sprintf("provider status %q", status)
		}
		return errors.Notifier("unable to send submission email", fmt.Errorf("%s", reason))
	}
	return nil
}
