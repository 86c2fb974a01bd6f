package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUsernameTaken      = errors.New("username already registered")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidRating      = errors.New("rating must be between 1.0 and 5.0 in steps of 0.5")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnavailable        = errors.New("feature unavailable")
	// ErrPartialWrite marks a rewrite that failed after the tab was cleared.
	ErrPartialWrite       = errors.New("tab may be partially rewritten")
)

// ConfigError is fatal and reported before anything is served.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return "config: " + e.Field + " is required"
	}
	return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// RemoteStoreError wraps a failed call to the table backend. Status is 0 for
// network failures and timeouts.
type RemoteStoreError struct {
	Op     string
	Tab    string
	Status int
	Err    error
}

func (e *RemoteStoreError) Error() string {
	msg := "remote store: " + e.Op
	if e.Tab != "" {
		msg += " " + e.Tab
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RemoteStoreError) Unwrap() error { return e.Err }

type TableNotFoundError struct {
	Tab string
}

func (e *TableNotFoundError) Error() string { return fmt.Sprintf("table %q not found", e.Tab) }

func IsRemoteStore(err error) bool {
	var re *RemoteStoreError
	return errors.As(err, &re)
}

func IsTableNotFound(err error) bool {
	var te *TableNotFoundError
	return errors.As(err, &te)
}
