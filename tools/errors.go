package tools

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// UnknownToolMessage is reported to the model for an unregistered tool name
const UnknownToolMessage = "Outil non reconnu ou erreur d'exécution"

// ValidationError is returned when a tool argument is malformed
type ValidationError struct {
	Field  string
	Value  any
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	if e.Value != nil {
		return fmt.Sprintf("validation failed for %s=%v: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidArguments
}

// HTTPError is returned by HTTP-backed tools for a non-success status
type HTTPError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}
