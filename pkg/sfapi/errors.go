package sfapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes attached to this package's error types.
const (
	ErrorCodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	ErrorCodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	ErrorCodeValidation           = "VALIDATION_ERROR"
	ErrorCodeNotFound             = "NOT_FOUND"
	ErrorCodeBulkOperationFailed  = "BULK_OPERATION_FAILED"
	ErrorCodeApexExecution        = "APEX_EXECUTION_ERROR"
	ErrorCodeUnknownOrg           = "UNKNOWN_ORG"
	ErrorCodeUnknown              = "UNKNOWN_ERROR"
)

// Bulk failure reasons carried by BulkOperationError.
const (
	BulkFailureTimeout = "timeout"
	BulkFailureFailed  = "failed"
	BulkFailureAborted = "aborted"
)

// RemoteError is one element of Salesforce's array-shaped error body.
type RemoteError struct {
	Message   string   `json:"message"          yaml:"message"`
	ErrorCode string   `json:"errorCode"        yaml:"errorCode"`
	Fields    []string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	switch {
	case e.ErrorCode != "" && len(e.Fields) > 0:
		return fmt.Sprintf("%s: %s (fields: %s)", e.ErrorCode, e.Message, strings.Join(e.Fields, ", "))
	case e.ErrorCode != "":
		return fmt.Sprintf("%s: %s", e.ErrorCode, e.Message)
	default:
		return e.Message
	}
}

// ResponseError is the raw remote error response with its HTTP status.
type ResponseError struct {
	StatusCode int           `json:"status_code" yaml:"status_code"`
	Errors     []RemoteError `json:"errors"      yaml:"errors"`
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("salesforce returned status %d", e.StatusCode)
	}

	if len(e.Errors) == 1 {
		return fmt.Sprintf("salesforce returned status %d: %s", e.StatusCode, e.Errors[0].Error())
	}

	return fmt.Sprintf("salesforce returned status %d: multiple errors: %v", e.StatusCode, e.Errors)
}

// First returns the first remote error or nil.
func (e *ResponseError) First() *RemoteError {
	if len(e.Errors) > 0 {
		return &e.Errors[0]
	}

	return nil
}

// ParseResponseError decodes a remote error body. Salesforce REST errors are
// JSON arrays; token-endpoint errors are objects; anything else is kept as
// an UNKNOWN_ERROR with the raw body as message.
func ParseResponseError(statusCode int, body []byte) *ResponseError {
	respErr := &ResponseError{StatusCode: statusCode}

	var asArray []RemoteError
	if err := json.Unmarshal(body, &asArray); err == nil && len(asArray) > 0 {
		respErr.Errors = asArray

		return respErr
	}

	// Token-endpoint errors use {error, error_description}; a few REST
	// surfaces return a single {message, errorCode} object.
	var asObject struct {
		Message          string   `json:"message"`
		ErrorCode        string   `json:"errorCode"`
		Fields           []string `json:"fields"`
		OAuthError       string   `json:"error"`
		OAuthDescription string   `json:"error_description"`
	}

	err := json.Unmarshal(body, &asObject)
	if err == nil && (asObject.Message != "" || asObject.OAuthError != "" || asObject.OAuthDescription != "") {
		remote := RemoteError{
			Message:   asObject.Message,
			ErrorCode: asObject.ErrorCode,
			Fields:    asObject.Fields,
		}

		if remote.Message == "" {
			remote.Message = asObject.OAuthDescription
		}

		if remote.ErrorCode == "" {
			remote.ErrorCode = asObject.OAuthError
		}

		if remote.ErrorCode == "" {
			remote.ErrorCode = ErrorCodeUnknown
		}

		respErr.Errors = []RemoteError{remote}

		return respErr
	}

	message := strings.TrimSpace(string(body))
	if message == "" {
		message = http.StatusText(statusCode)
	}

	respErr.Errors = []RemoteError{{Message: message, ErrorCode: ErrorCodeUnknown}}

	return respErr
}

// AuthError reports a failed token exchange: malformed credentials, a bad
// signing key, or a remote rejection such as invalid_grant.
type AuthError struct {
	// Kind names the credential flow that failed.
	Kind string
	// RemoteMessage is the error_description (or equivalent) reported by
	// the token endpoint; empty for local failures.
	RemoteMessage string
	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	switch {
	case e.RemoteMessage != "":
		return fmt.Sprintf("%s authentication failed: %s", e.Kind, e.RemoteMessage)
	case e.Err != nil:
		return fmt.Sprintf("%s authentication failed: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s authentication failed", e.Kind)
	}
}

// Unwrap exposes the underlying cause.
func (e *AuthError) Unwrap() error { return e.Err }

// AuthenticationError reports a token that stayed invalid after one refresh
// and retry: the request's second attempt still returned 401.
type AuthenticationError struct {
	OrgAlias string
	Response *ResponseError
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	if e.Response != nil && e.Response.First() != nil {
		return fmt.Sprintf("%s: token rejected after refresh for org %q: %s",
			ErrorCodeAuthenticationFailed, e.OrgAlias, e.Response.First().Error())
	}

	return fmt.Sprintf("%s: token rejected after refresh for org %q", ErrorCodeAuthenticationFailed, e.OrgAlias)
}

// Unwrap exposes the remote response.
func (e *AuthenticationError) Unwrap() error {
	if e.Response == nil {
		return nil
	}

	return e.Response
}

// RateLimitError reports an exhausted local bucket in fail-fast mode, or a
// remote 429 that survived all retries.
type RateLimitError struct {
	Message string
	// RetryAfter is the remote Retry-After value in seconds, or the local
	// estimate until the next bucket token; zero when unknown.
	RetryAfter int
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: %s (retry after %ds)", ErrorCodeRateLimitExceeded, e.Message, e.RetryAfter)
	}

	return fmt.Sprintf("%s: %s", ErrorCodeRateLimitExceeded, e.Message)
}

// ValidationError reports a remote 400 with the offending fields.
type ValidationError struct {
	Message   string
	ErrorCode string
	Fields    []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s (fields: %s)", e.ErrorCode, e.Message, strings.Join(e.Fields, ", "))
	}

	return fmt.Sprintf("%s: %s", e.ErrorCode, e.Message)
}

// NotFoundError reports a remote 404.
type NotFoundError struct {
	Message   string
	ErrorCode string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", e.ErrorCode, e.Message)
}

// SalesforceError reports any other remote 4xx/5xx with its payload.
type SalesforceError struct {
	Message    string
	ErrorCode  string
	StatusCode int
}

// Error implements the error interface.
func (e *SalesforceError) Error() string {
	return fmt.Sprintf("%s: %s (status: %d)", e.ErrorCode, e.Message, e.StatusCode)
}

// BulkOperationError reports a bulk job that timed out, failed, or was
// aborted. A timed-out job is not assumed cancelled remotely.
type BulkOperationError struct {
	Reason  string
	JobID   string
	Message string
}

// Error implements the error interface.
func (e *BulkOperationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: bulk job %s %s: %s", ErrorCodeBulkOperationFailed, e.JobID, e.Reason, e.Message)
	}

	return fmt.Sprintf("%s: bulk job %s %s", ErrorCodeBulkOperationFailed, e.JobID, e.Reason)
}

// ApexExecutionError reports a compile or runtime failure of anonymous Apex.
type ApexExecutionError struct {
	CompileError string
	RuntimeError string
	Line         int
}

// Error implements the error interface.
func (e *ApexExecutionError) Error() string {
	switch {
	case e.CompileError != "":
		return fmt.Sprintf("%s: compile error at line %d: %s", ErrorCodeApexExecution, e.Line, e.CompileError)
	case e.RuntimeError != "":
		return fmt.Sprintf("%s: runtime error at line %d: %s", ErrorCodeApexExecution, e.Line, e.RuntimeError)
	default:
		return fmt.Sprintf("%s: apex execution failed", ErrorCodeApexExecution)
	}
}

// UnknownOrgError reports a lookup of an unregistered org alias.
type UnknownOrgError struct {
	Alias string
}

// Error implements the error interface.
func (e *UnknownOrgError) Error() string {
	return fmt.Sprintf("%s: org %q is not registered", ErrorCodeUnknownOrg, e.Alias)
}

// Static errors that can be wrapped with context.
var (
	ErrConfigRequired                 = errors.New("config is required")
	ErrNoOrgsConfigured               = errors.New("at least one org must be configured")
	ErrDuplicateOrgAlias              = errors.New("duplicate org alias")
	ErrCredentialsRequired            = errors.New("credentials are required")
	ErrUnsupportedCredentials         = errors.New("unsupported credentials type")
	ErrUsernamePasswordRequired       = errors.New("username and password are required")
	ErrClientCredentialsRequired      = errors.New("client ID and client secret are required")
	ErrAuthCodeOrRefreshTokenRequired = errors.New("an authorization code or refresh token is required")
	ErrJWTIdentityRequired            = errors.New("client ID and username are required")
	ErrPrivateKeyRequired             = errors.New("a PEM-encoded private key is required")
	ErrInvalidRequestsPerSecond       = errors.New("requests_per_second must be greater than zero")
	ErrInvalidBurstSize               = errors.New("burst_size must be at least 1")
	ErrExternalIDFieldRequired        = errors.New("upsert requires an external ID field")
	ErrNoRecords                      = errors.New("at least one record is required")
)

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	notFound := &NotFoundError{}

	return errors.As(err, &notFound)
}

// IsUnauthorized checks if the error reports rejected or unrefreshable
// credentials.
func IsUnauthorized(err error) bool {
	authErr := &AuthError{}
	if errors.As(err, &authErr) {
		return true
	}

	authnErr := &AuthenticationError{}

	return errors.As(err, &authnErr)
}

// IsRateLimited checks if the error is a rate limit error, local or remote.
func IsRateLimited(err error) bool {
	rateErr := &RateLimitError{}

	return errors.As(err, &rateErr)
}
