package integrations

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderNotFound indicates no provider exists for a category/mode
	ErrProviderNotFound = errors.New("provider not found")

	// ErrUnknownMethod indicates a method name outside the category allow-list
	ErrUnknownMethod = errors.New("unknown integration method")

	// ErrApprovalRequired indicates an action was dispatched without approval
	ErrApprovalRequired = errors.New("approval required")
)

// ProviderNotFoundError reports that no provider is registered for a
// category, or for a mode within a category.
type ProviderNotFoundError struct {
	Category string
	Mode     string // empty when the category itself is unknown
}

// Error returns formatted error message
func (e *ProviderNotFoundError) Error() string {
	if e.Mode != "" {
		return fmt.Sprintf("no provider for category %q in mode %q", e.Category, e.Mode)
	}
	return fmt.Sprintf("no provider for category %q", e.Category)
}

// Unwrap returns the sentinel for errors.Is matching
func (e *ProviderNotFoundError) Unwrap() error { return ErrProviderNotFound }

// NewProviderNotFoundError creates a provider-not-found error
func NewProviderNotFoundError(category, mode string) *ProviderNotFoundError {
	return &ProviderNotFoundError{Category: category, Mode: mode}
}

// IntegrationError wraps a failure inside a provider call with the provider
// name for context.
type IntegrationError struct {
	Provider string
	Message  string
	Err      error // optional underlying cause
}

// Error returns formatted error message
func (e *IntegrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error
func (e *IntegrationError) Unwrap() error { return e.Err }

// NewIntegrationError creates an integration error
func NewIntegrationError(provider, message string, err error) *IntegrationError {
	return &IntegrationError{Provider: provider, Message: message, Err: err}
}

// ApprovalRequiredError reports an attempt to execute an action that has not
// been approved.
type ApprovalRequiredError struct {
	ActionID string
}

// Error returns formatted error message
func (e *ApprovalRequiredError) Error() string {
	return fmt.Sprintf("action %q requires approval before execution", e.ActionID)
}

// Unwrap returns the sentinel for errors.Is matching
func (e *ApprovalRequiredError) Unwrap() error { return ErrApprovalRequired }
