package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration and audit files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations such as token exchanges.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry limits and waits.
const (
	// DefaultRetryMax is the default maximum number of retries for
	// transient failures (429 and 5xx).
	DefaultRetryMax = 3

	// DefaultRetryWaitMin is the minimum wait between retries and the
	// fixed short delay used for a 429 without a Retry-After header.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second
)

// Token lifecycle.
const (
	// TokenExpirationBuffer is the safety margin subtracted from a token's
	// expiry when deciding whether it is still usable.
	TokenExpirationBuffer = 30 * time.Second

	// AssumedTokenLifetime is applied to flows whose token response carries
	// no expiry but is known to last about two hours.
	AssumedTokenLifetime = 2 * time.Hour

	// JWTAssertionLifetime bounds the validity of a signed JWT bearer
	// assertion; each token exchange signs a fresh one.
	JWTAssertionLifetime = 3 * time.Minute
)

// Rate limiting defaults.
const (
	// DefaultRequestsPerSecond is the default sustained request rate.
	DefaultRequestsPerSecond = 10.0

	// DefaultBurstSize is the default token-bucket capacity.
	DefaultBurstSize = 20
)

// Bulk API defaults.
const (
	// DefaultBatchSize is the maximum number of records per uploaded CSV batch.
	DefaultBatchSize = 200

	// DefaultPollInterval is the fixed delay between bulk job status checks.
	DefaultPollInterval = 2 * time.Second

	// DefaultMaxPolls bounds the number of status checks before a bulk job
	// wait is abandoned (150 polls x 2s = 5 minutes wall clock).
	DefaultMaxPolls = 150
)

// Salesforce API defaults.
const (
	// DefaultAPIVersion is the REST API version used when none is configured.
	DefaultAPIVersion = "59.0"

	// DefaultDomain is the production login domain. "test" (sandbox) and
	// full My Domain hosts are passed through by the domain resolver.
	DefaultDomain = "login"
)

// Audit sink sizing.
const (
	// AuditBufferSize is the buffer size for asynchronous audit sinks;
	// entries beyond it are dropped rather than blocking a call.
	AuditBufferSize = 256
)

// UI and display constants.
const (
	// MaskedSecret is used to hide sensitive information.
	MaskedSecret = "***"
)

// Audit outcome constants.
const (
	// OutcomeSuccess marks a call that completed without error.
	OutcomeSuccess = "success"

	// OutcomeError marks a call that returned an error.
	OutcomeError = "error"
)
