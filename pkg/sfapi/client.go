package sfapi

import (
	"context"
	"time"
)

// QueryClient executes SOQL queries and SOSL searches.
type QueryClient interface {
	// Execute runs a SOQL query. The canonical parameter name is query; it
	// is sent to the REST endpoint as q.
	Execute(ctx context.Context, query string) (*QueryResult, error)
	// ExecuteAll runs a SOQL query that includes deleted and archived rows.
	ExecuteAll(ctx context.Context, query string) (*QueryResult, error)
	// More fetches the next page of a previous result. It accepts either
	// the bare path or the absolute URL Salesforce returned.
	More(ctx context.Context, nextRecordsURL string) (*QueryResult, error)
	// Search runs a SOSL search.
	Search(ctx context.Context, search string) (*SearchResult, error)
}

// SObjectsClient provides record CRUD and metadata.
type SObjectsClient interface {
	Get(ctx context.Context, objectType, recordID string, fields ...string) (map[string]interface{}, error)
	Create(ctx context.Context, objectType string, record map[string]interface{}) (*SaveResult, error)
	Update(ctx context.Context, objectType, recordID string, record map[string]interface{}) error
	Delete(ctx context.Context, objectType, recordID string) error
	Describe(ctx context.Context, objectType string) (*ObjectDescribe, error)
	DescribeGlobal(ctx context.Context) (*GlobalDescribe, error)
}

// BulkClient drives asynchronous ingest jobs.
type BulkClient interface {
	// Run executes the full job lifecycle: create, upload CSV batches,
	// close, poll to a terminal state, and collect per-record results.
	Run(ctx context.Context, objectType string, operation BulkOperation,
		records []map[string]interface{}, opts *BulkOptions) (*BulkJobResult, error)
	// Insert is shorthand for Run with BulkOperationInsert and defaults.
	Insert(ctx context.Context, objectType string, records []map[string]interface{}) (*BulkJobResult, error)
	// GetJob fetches the current job resource.
	GetJob(ctx context.Context, jobID string) (*BulkJobInfo, error)
	// Abort asks Salesforce to abort a queued or running job.
	Abort(ctx context.Context, jobID string) error
}

// ToolingClient exposes the Tooling API surface this client supports.
type ToolingClient interface {
	ExecuteAnonymous(ctx context.Context, apexBody string) (*ApexResult, error)
}

// AnalyticsClient exposes the reports surface.
type AnalyticsClient interface {
	ListReports(ctx context.Context) ([]ReportSummary, error)
	RunReport(ctx context.Context, reportID string, filters map[string]interface{}) (*ReportResults, error)
}

// LimitsClient reads org limits.
type LimitsClient interface {
	Get(ctx context.Context) (Limits, error)
}

// DataClients groups the record-oriented clients.
type DataClients interface {
	Query() QueryClient
	SObjects() SObjectsClient
	Bulk() BulkClient
}

// PlatformClients groups the platform service clients.
type PlatformClients interface {
	Tooling() ToolingClient
	Analytics() AnalyticsClient
	Limits() LimitsClient
}

// OrgClient is the full per-org API surface.
type OrgClient interface {
	DataClients
	PlatformClients

	// Alias returns the alias this client is bound to.
	Alias() string
}

// Client is the multi-org entry point. Resolving the same alias twice
// returns the same underlying org runtime: token and rate-limit state are
// shared across all resolutions.
type Client interface {
	// Org resolves an org-scoped client. An empty alias selects the
	// default org; an unregistered alias fails with *UnknownOrgError.
	Org(alias string) (OrgClient, error)
	// DefaultOrg resolves the default org.
	DefaultOrg() (OrgClient, error)
	// Orgs lists the registered aliases.
	Orgs() []string
	// Close flushes and closes the audit sinks owned by the client.
	Close() error
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Config represents client configuration for building a sfapi.Client.
//
// # Orgs and defaults
//
// At least one OrgConfig is required. DefaultOrg selects the alias used when
// callers pass an empty alias; when unset, the first configured org is the
// default. RateLimit applies to every org that does not carry its own.
//
// # Timeouts and retries
//
// Per-request deadlines should generally be controlled via the context
// passed to client methods; HTTPTimeout bounds individual HTTP attempts.
// RetryMax/RetryWaitMin/RetryWaitMax tune the transient-failure retry ladder
// (remote 429 and 5xx). A 401 is never part of that ladder: it triggers at
// most one token refresh and one retry.
//
// # TLS
//
// SkipTLSVerify is honored only when the environment variable SFAPI_DEV_MODE
// is set to "true" or "1"; do not use it in production.
type Config struct {
	// Orgs lists the registered orgs. Aliases must be unique.
	Orgs []OrgConfig

	// DefaultOrg is the alias resolved for an empty alias argument.
	DefaultOrg string

	// RateLimit is the client-wide default bucket; nil selects the
	// built-in default (10 rps, burst 20, waiting).
	RateLimit *RateLimitConfig

	// HTTPTimeout bounds each HTTP attempt. Zero selects the default.
	HTTPTimeout time.Duration
	// RetryMax is the maximum number of retries for transient failures.
	// Zero selects the default.
	RetryMax int
	// RetryWaitMin is the minimum backoff between retries.
	RetryWaitMin time.Duration
	// RetryWaitMax is the maximum backoff between retries.
	RetryWaitMax time.Duration

	// Debug enables verbose HTTP request/response logging when a Logger
	// is provided.
	Debug bool
	// Logger is the structured logger used by the HTTP layer and helpers.
	Logger Logger
	// Audit receives one entry per completed or failed call. Nil selects
	// the logger-backed recorder. A caller-provided recorder is never
	// closed by Close.
	Audit AuditRecorder
	// AuditSinks declaratively configures audit sinks (file, NATS) when
	// Audit is nil. Recorders built from it are owned by the client and
	// flushed on Close.
	AuditSinks *AuditConfig
	// Interceptors, when set, sees every dispatched request and settled
	// response. Request interceptor errors abort the call; response
	// interceptor errors are logged only.
	Interceptors *InterceptorChain
	// UserAgent overrides the default User-Agent header.
	UserAgent string
	// SkipTLSVerify disables TLS verification; gated by SFAPI_DEV_MODE.
	SkipTLSVerify bool
}
