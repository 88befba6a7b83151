package capture

import "github.com/formrelay/capture_layer/internal/errors"

// Action names an externally invokable operation on a capture. The set is
// closed: anything outside the map below is rejected before dispatch.
type Action string

const (
	ActionReceive  Action = "receive"
	ActionFields   Action = "fields"
	ActionAdmin    Action = "admin"
	ActionDownload Action = "download"
	ActionLogout   Action = "logout"
)

var actions = map[Action]bool{
	ActionReceive:  true,
	ActionFields:   true,
	ActionAdmin:    true,
	ActionDownload: true,
	ActionLogout:   true,
}

// protected lists the actions that require authentication before any
// handler logic runs.
var protected = map[Action]bool{
	ActionAdmin:    true,
	ActionDownload: true,
	ActionLogout:   true,
}

// ParseAction resolves a path segment to an action. An empty segment
// defaults to receive; an unknown name is a configuration error.
func ParseAction(name string) (Action, error) {
	if name == "" {
		return ActionReceive, nil
	}
	a := Action(name)
	if !actions[a] {
		return "", errors.Configuration("handler is unsure how to process action %q", name)
	}
	return a, nil
}

// RequiresAuth reports whether the action demands an authenticated session.
func (a Action) RequiresAuth() bool { return protected[a] }
