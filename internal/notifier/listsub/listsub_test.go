package listsub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/formrelay/capture_layer/internal/errors"
)

func TestSubscribe(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lists/subscribe.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Write([]byte(`{"email":"a@b.com"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key", "list-1", true)
	if err := c.Subscribe(context.Background(), "a@b.com", map[string]string{"FNAME": "Ann"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if got["id"] != "list-1" {
		t.Fatalf("list id not sent: %v", got)
	}
	email, _ := got["email"].(map[string]any)
	if email["email"] != "a@b.com" {
		t.Fatalf("email not sent: %v", got)
	}
}

func TestSubscribeProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","error":"Invalid MailChimp List ID"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key", "bogus", false)
	err := c.Subscribe(context.Background(), "a@b.com", nil)
	if !errors.Is(err, errors.KindNotifier) {
		t.Fatalf("expected notifier error, got %v", err)
	}
}
