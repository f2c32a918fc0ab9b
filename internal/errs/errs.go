// Package errs defines the closed error taxonomy shared by the client
// components. Remote failures are translated into these kinds at each
// component boundary; raw transport errors never travel upward.
package errs

import "errors"

var (
	// ErrQuotaBlocked means the anonymous usage gate refused the attempt.
	// It is resolved by routing the user to registration, not by retrying.
	ErrQuotaBlocked = errors.New("guest analysis limit reached, sign up to continue")

	// ErrAnalysisInFlight rejects a second submit while one is outstanding.
	ErrAnalysisInFlight = errors.New("an analysis is already in progress")

	// ErrAnalysisAbandoned marks a completion that arrived after the
	// workflow was cleared; the result has been discarded.
	ErrAnalysisAbandoned = errors.New("analysis abandoned")

	// ErrSubmissionFailed is the generic feedback failure when the remote
	// service returned neither a recognized status nor a structured detail.
	ErrSubmissionFailed = errors.New("feedback submission failed")

	// ErrStateUnavailable means the local state store could not be read or
	// written; the underlying cause is wrapped for logs.
	ErrStateUnavailable = errors.New("local state unavailable")
)

// ValidationError reports malformed local input (word count, password
// policy, rating range). It is raised before any network call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// AuthReason distinguishes the causes of an AuthError.
type AuthReason string

const (
	AuthInvalidCredentials AuthReason = "invalid_credentials"
	AuthAccountLocked      AuthReason = "account_locked"
	AuthMissingCredential  AuthReason = "missing_credential"
	AuthExpiredCredential  AuthReason = "expired_credential"
	AuthNetwork            AuthReason = "network"
)

// AuthError reports a missing, invalid, or rejected credential.
type AuthError struct {
	Reason  AuthReason
	Message string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "authentication failed: " + string(e.Reason)
}

// NetworkError wraps a transport failure that carried no structured detail.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	if e.Err == nil {
		return "network error"
	}
	return "network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError carries a structured failure detail returned by the remote
// service, surfaced to the user verbatim.
type ServerError struct {
	Detail string
}

func (e *ServerError) Error() string { return e.Detail }

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsAuth reports whether err is a credential failure.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
