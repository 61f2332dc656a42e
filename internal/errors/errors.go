package errors

import (
	"fmt"
)

// ServerNotFoundError represents an error when a requested server id is
// not present in the registry.
type ServerNotFoundError struct {
	ServerID string
}

// Error returns the error message
func (e *ServerNotFoundError) Error() string {
	return fmt.Sprintf("server not found: %s", e.ServerID)
}

// EmptyIdentityError represents an error when an aggregation request
// carries no subscriber identity.
type EmptyIdentityError struct{}

// Error returns the error message
func (e *EmptyIdentityError) Error() string {
	return "empty subscriber identity"
}

// PanelAPIError represents an error from a panel API. It distinguishes
// transport/auth failures from legitimately empty responses.
type PanelAPIError struct {
	Operation string
	Server    string
	Status    int
	Message   string
}

// Error returns the error message
func (e *PanelAPIError) Error() string {
	return fmt.Sprintf("panel API error on %s during %s (status %d): %s", e.Server, e.Operation, e.Status, e.Message)
}

// TokenError represents a failed public-token verification.
type TokenError struct {
	TokenID string
	Reason  string
}

// Error returns the error message
func (e *TokenError) Error() string {
	return fmt.Sprintf("token %s rejected: %s", e.TokenID, e.Reason)
}

// ConfigError represents an error related to configuration
type ConfigError struct {
	Section string
	Message string
}

// Error returns the error message
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Section, e.Message)
}
