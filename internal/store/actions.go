package store

import (
	"reflect"
	"strings"

	"github.com/google/uuid"

	reducto "github.com/gxo-labs/reducto/pkg/reducto/v1"
	reductoerrors "github.com/gxo-labs/reducto/pkg/reducto/v1/errors"
)

// probeActionPrefix is the kind prefix of the random action CombineReducers
// uses to check that slice reducers return their state for unknown kinds.
const probeActionPrefix = "@@reducto/PROBE_UNKNOWN_ACTION"

// reservedAction is the type of the store's internal actions. Its kind
// carries a random suffix so no application reducer can match it by value.
type reservedAction struct {
	kind string
}

func (a reservedAction) Kind() string { return a.kind }

// newInitAction returns a fresh initialization action.
func newInitAction() reducto.Action {
	return reservedAction{kind: reducto.InitActionPrefix + "." + uuid.NewString()}
}

// newProbeAction returns a fresh action no reducer can know about.
func newProbeAction() reducto.Action {
	return reservedAction{kind: probeActionPrefix + "." + uuid.NewString()}
}

// validateAction checks the only thing the store knows about actions: that
// there is one and that it carries a discriminant.
func validateAction(action reducto.Action) error {
	if action == nil {
		return reductoerrors.NewInvalidActionError("action cannot be nil")
	}
	if v := reflect.ValueOf(action); v.Kind() == reflect.Ptr && v.IsNil() {
		return reductoerrors.NewInvalidActionError("action cannot be a nil pointer")
	}
	if action.Kind() == "" {
		return reductoerrors.NewInvalidActionError("action kind cannot be empty")
	}
	return nil
}

// kindOf returns the kind of an action for logs and events, tolerating
// actions that failed validation.
func kindOf(action reducto.Action) string {
	if validateAction(action) != nil {
		return ""
	}
	return action.Kind()
}

// metricKind folds the per-store random init kinds into one label value.
func metricKind(action reducto.Action) string {
	kind := kindOf(action)
	switch {
	case kind == "":
		return "invalid"
	case strings.HasPrefix(kind, reducto.InitActionPrefix):
		return reducto.InitActionPrefix
	default:
		return kind
	}
}
