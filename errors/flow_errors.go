package errors

import "fmt"

// Failure reasons appended to the provider name to form the machine-readable
// error code carried back to the dashboard, e.g. "notion_callback_failed".
const (
	ReasonFailed                = "failed"
	ReasonInitFailed            = "init_failed"
	ReasonCallbackFailed        = "callback_failed"
	ReasonInvalidRequest        = "invalid_request"
	ReasonNoAccessibleResources = "no_accessible_resources"
)

// RedirectError represents a connection-flow failure that is surfaced to the
// browser as a redirect query parameter rather than an HTTP error. The
// consuming page turns the code into a human-readable banner.
type RedirectError struct {
	Provider    string `json:"provider"`
	Reason      string `json:"reason"`
	Description string `json:"error_description,omitempty"`
}

func (e *RedirectError) Error() string {
	if e.Description == "" {
		return e.Code()
	}
	return fmt.Sprintf("%s: %s", e.Code(), e.Description)
}

// Code returns the "<provider>_<reason>" value placed in the error query
// parameter.
func (e *RedirectError) Code() string {
	return e.Provider + "_" + e.Reason
}

// Common error constructors

// NewProviderFailed covers provider-reported errors (user denial, provider
// outage) and failed token exchanges.
func NewProviderFailed(provider, description string) *RedirectError {
	return &RedirectError{Provider: provider, Reason: ReasonFailed, Description: description}
}

// NewInitFailed covers dynamic client registration failures during flow
// initiation.
func NewInitFailed(provider, description string) *RedirectError {
	return &RedirectError{Provider: provider, Reason: ReasonInitFailed, Description: description}
}

// NewCallbackFailed covers missing, expired or replayed state values. No
// token exchange is attempted for these.
func NewCallbackFailed(provider string) *RedirectError {
	return &RedirectError{Provider: provider, Reason: ReasonCallbackFailed}
}

// NewInvalidRequest covers callbacks carrying neither a code nor an error.
func NewInvalidRequest(provider string) *RedirectError {
	return &RedirectError{Provider: provider, Reason: ReasonInvalidRequest}
}

// NewNoAccessibleResources covers an Atlassian authorization that granted
// access to zero cloud sites.
func NewNoAccessibleResources(provider string) *RedirectError {
	return &RedirectError{Provider: provider, Reason: ReasonNoAccessibleResources}
}
