package errors

import (
	"errors"
	"fmt"
)

// --- Store Error Types ---

// InvalidReducerError is returned when a Store is constructed, a reducer is
// replaced, or reducers are combined with something that cannot act as a
// reducer (nil function, slice reducer returning nil for initialization).
type InvalidReducerError struct {
	Reason string
	Cause  error
}

func NewInvalidReducerError(reason string, cause error) *InvalidReducerError {
	return &InvalidReducerError{Reason: reason, Cause: cause}
}
func (e *InvalidReducerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid reducer: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("invalid reducer: %s", e.Reason)
}
func (e *InvalidReducerError) Unwrap() error { return e.Cause }

// InvalidActionError is returned by Dispatch when the action is nil or has an
// empty discriminant. The dispatch does not proceed and state is unchanged.
type InvalidActionError struct {
	Reason string
}

func NewInvalidActionError(reason string) *InvalidActionError {
	return &InvalidActionError{Reason: reason}
}
func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("invalid action: %s", e.Reason)
}

// ReentrantDispatchError is returned when Dispatch or ReplaceReducer is called
// from inside a reducer or a listener of the same Store on the same goroutine.
// The nested call is rejected; the outer dispatch is unaffected.
type ReentrantDispatchError struct {
	Store string // Store name
	Kind  string // Kind of the rejected action
	Phase string // "reducing" or "notifying"
}

func NewReentrantDispatchError(store, kind, phase string) *ReentrantDispatchError {
	return &ReentrantDispatchError{Store: store, Kind: kind, Phase: phase}
}
func (e *ReentrantDispatchError) Error() string {
	return fmt.Sprintf("reentrant dispatch of '%s' rejected: store '%s' is %s", e.Kind, e.Store, e.Phase)
}

// InvalidListenerError is returned by Subscribe when the listener is nil.
type InvalidListenerError struct{}

func NewInvalidListenerError() *InvalidListenerError { return &InvalidListenerError{} }
func (e *InvalidListenerError) Error() string {
	return "invalid listener: listener must be a non-nil function"
}

// --- Configuration Error Types ---

// ConfigError represents an error encountered while loading or applying
// configuration (config files, store options, registry setup).
type ConfigError struct {
	Message string
	Cause   error
}

func NewConfigError(message string, cause error) *ConfigError {
	return &ConfigError{Message: message, Cause: cause}
}
func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}
func (e *ConfigError) Unwrap() error { return e.Cause }

// ValidationError indicates that some input (config structure, schema
// version, action payload) failed validation checks.
type ValidationError struct {
	Message string
	Cause   error
}

func NewValidationError(message string, cause error) *ValidationError {
	return &ValidationError{Message: message, Cause: cause}
}
func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}
func (e *ValidationError) Unwrap() error { return e.Cause }

// --- Decorator Error Types ---

// PersistenceError wraps a failure of a snapshot repository.
type PersistenceError struct {
	Op    string // "save", "load", "schema"
	Store string
	Cause error
}

func NewPersistenceError(op, store string, cause error) *PersistenceError {
	return &PersistenceError{Op: op, Store: store, Cause: cause}
}
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("snapshot %s for store '%s' failed: %v", e.Op, e.Store, e.Cause)
}
func (e *PersistenceError) Unwrap() error { return e.Cause }

// UnknownActionError is returned by an application decoder when an action
// kind received from outside (HTTP, NATS, config script) is not part of the
// application's action set.
type UnknownActionError struct {
	App  string
	Kind string
}

func NewUnknownActionError(app, kind string) *UnknownActionError {
	return &UnknownActionError{App: app, Kind: kind}
}
func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("app '%s' has no action kind '%s'", e.App, e.Kind)
}

// AppNotFoundError indicates that an application name could not be found in
// the app registry.
type AppNotFoundError struct {
	Name string
}

func NewAppNotFoundError(name string) *AppNotFoundError {
	return &AppNotFoundError{Name: name}
}
func (e *AppNotFoundError) Error() string {
	return fmt.Sprintf("app not found: %s", e.Name)
}

// IsReentrant checks if an error is a ReentrantDispatchError using errors.As.
func IsReentrant(err error) bool {
	var re *ReentrantDispatchError
	return errors.As(err, &re)
}

// IsInvalidAction checks if an error is an InvalidActionError using errors.As.
func IsInvalidAction(err error) bool {
	var ia *InvalidActionError
	return errors.As(err, &ia)
}
