package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := Configuration("capture %q has no schema", "signup")
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindConfiguration, kind)

	_, ok = KindOf(stderrors.New("plain"))
	assert.False(t, ok)
}

func TestIsSeesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("handling submission: %w", Storage("insert failed", stderrors.New("connection reset")))
	assert.True(t, Is(err, KindStorage))
	assert.False(t, Is(err, KindValidation))
}

func TestFlatten(t *testing.T) {
	cause := stderrors.New("dial tcp: connection refused")
	err := Notifier("unable to send submission email", cause)

	assert.Equal(t, []string{"unable to send submission email", "dial tcp: connection refused"}, Flatten(err))
	assert.Nil(t, Flatten(nil))
}

func TestWrapExposesCause(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(KindStorage, "saving record", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "saving record", err.Error())
}
