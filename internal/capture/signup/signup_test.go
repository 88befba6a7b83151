package signup

import (
	"context"
	"reflect"
	"testing"

	"github.com/formrelay/capture_layer/internal/capture"
	"github.com/formrelay/capture_layer/internal/capture/datatype"
	"github.com/formrelay/capture_layer/internal/errors"
)

type fakeSubscriber struct {
	email     string
	mergeVars map[string]string
	err       error
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, email string, mergeVars map[string]string) error {
	f.email = email
	f.mergeVars = mergeVars
	return f.err
}

func TestPostCaptureSubscribes(t *testing.T) {
	sub := &fakeSubscriber{}
	hooks, err := NewHooks(sub, nil)
	if err != nil {
		t.Fatalf("new hooks: %v", err)
	}

	rec := capture.Record{"email": "a@b.com", "fname": "Ann", "lname": "Lee"}
	if err := hooks.PostCapture(context.Background(), rec); err != nil {
		t.Fatalf("post capture: %v", err)
	}

	if sub.email != "a@b.com" {
		t.Fatalf("subscribed %q", sub.email)
	}
	want := map[string]string{"FNAME": "Ann", "LNAME": "Lee"}
	if !reflect.DeepEqual(sub.mergeVars, want) {
		t.Fatalf("merge vars %v, want %v (upper-cased, EMAIL excluded)", sub.mergeVars, want)
	}
}

func TestNewHooksRequiresSubscriber(t *testing.T) {
	_, err := NewHooks(nil, nil)
	if !errors.Is(err, errors.KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestDefaultSchema(t *testing.T) {
	schema, err := DefaultSchema(datatype.NewRegistry())
	if err != nil {
		t.Fatalf("default schema: %v", err)
	}
	if got := schema.FieldNames(); !reflect.DeepEqual(got, []string{"email", "fname", "lname"}) {
		t.Fatalf("fields %v", got)
	}
	if got := schema.Required(); !reflect.DeepEqual(got, []string{"email"}) {
		t.Fatalf("required %v", got)
	}
}
