// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrSettingsNotFound = errors.New("alert settings not found")
	ErrListingNotFound  = errors.New("listing not found")
	ErrHistoryConflict  = errors.New("price history baseline changed concurrently")
	ErrRateLimited      = errors.New("rate limited")
	ErrTimeout          = errors.New("operation timed out")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrStoreClosed      = errors.New("store is closed")
)

// Phase identifies where in a batch run an error occurred.
type Phase string

const (
	PhaseDiscovery Phase = "discovery"
	PhaseSettings  Phase = "settings"
	PhaseMonitor   Phase = "monitor"
	PhaseBuild     Phase = "build"
	PhaseSave      Phase = "save"
	PhasePurge     Phase = "purge"
)

// ValidationError represents malformed input to the alert builder.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// ProviderError represents a listing provider failure for one area.
type ProviderError struct {
	AreaID     string
	Operation  string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider error [%s] %s: status %d: %v", e.AreaID, e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider error [%s] %s: %v", e.AreaID, e.Operation, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new ProviderError.
func NewProviderError(areaID, operation string, statusCode int, err error) *ProviderError {
	return &ProviderError{
		AreaID:     areaID,
		Operation:  operation,
		StatusCode: statusCode,
		Err:        err,
	}
}

// PersistenceError represents a history store or alert store failure.
type PersistenceError struct {
	Entity string
	Key    string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error [%s] %s: %v", e.Entity, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError creates a new PersistenceError.
func NewPersistenceError(entity, key string, err error) *PersistenceError {
	return &PersistenceError{
		Entity: entity,
		Key:    key,
		Err:    err,
	}
}

// DiscoveryError represents a failure enumerating eligible users.
// Fatal to the run, but the run still returns a partial result.
type DiscoveryError struct {
	AlertKind string
	Err       error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery error [%s]: %v", e.AlertKind, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// NewDiscoveryError creates a new DiscoveryError.
func NewDiscoveryError(alertKind string, err error) *DiscoveryError {
	return &DiscoveryError{
		AlertKind: alertKind,
		Err:       err,
	}
}

// RunError is a structured batch error carrying enough context for
// downstream tooling to filter on error kind instead of parsing messages.
type RunError struct {
	Phase  Phase
	UserID string
	AreaID string
	Err    error
}

func (e *RunError) Error() string {
	switch {
	case e.UserID != "" && e.AreaID != "":
		return fmt.Sprintf("%s error [user %s, area %s]: %v", e.Phase, e.UserID, e.AreaID, e.Err)
	case e.UserID != "":
		return fmt.Sprintf("%s error [user %s]: %v", e.Phase, e.UserID, e.Err)
	default:
		return fmt.Sprintf("%s error: %v", e.Phase, e.Err)
	}
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// NewRunError creates a new RunError.
func NewRunError(phase Phase, userID, areaID string, err error) *RunError {
	return &RunError{
		Phase:  phase,
		UserID: userID,
		AreaID: areaID,
		Err:    err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
