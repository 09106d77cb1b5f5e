package sfapi

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fivetwenty-io/sfapi/internal/constants"
)

// Credentials is the closed set of authentication strategies. Exactly one
// variant is attached to each org; the concrete type selects the token flow.
type Credentials interface {
	fmt.Stringer

	// Kind returns a short name for the flow ("username_password",
	// "oauth2", "jwt").
	Kind() string

	// Validate reports malformed credentials before any remote call is made.
	Validate() error
}

// UsernamePasswordCredentials authenticates with the password grant. The
// security token is appended to the password on the wire.
type UsernamePasswordCredentials struct {
	Username      string
	Password      string
	SecurityToken string

	// ClientID/ClientSecret identify a connected app; optional for orgs
	// that still allow the bare password grant.
	ClientID     string
	ClientSecret string
}

// Kind implements Credentials.
func (c *UsernamePasswordCredentials) Kind() string { return "username_password" }

// Validate implements Credentials.
func (c *UsernamePasswordCredentials) Validate() error {
	if c.Username == "" || c.Password == "" {
		return ErrUsernamePasswordRequired
	}

	return nil
}

// String renders the credentials with all secrets masked.
func (c *UsernamePasswordCredentials) String() string {
	return fmt.Sprintf("username_password{username: %s, password: %s, security_token: %s}",
		c.Username, constants.MaskedSecret, constants.MaskedSecret)
}

// WebServerCredentials authenticates with the OAuth2 web-server flow. The
// authorization code is obtained out-of-band and is single-use: the first
// token exchange consumes it and yields a refresh token used from then on.
type WebServerCredentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthCode     string

	// RefreshToken may be supplied directly when the code was already
	// exchanged by an earlier process.
	RefreshToken string
}

// Kind implements Credentials.
func (c *WebServerCredentials) Kind() string { return "oauth2" }

// Validate implements Credentials.
func (c *WebServerCredentials) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return ErrClientCredentialsRequired
	}

	if c.AuthCode == "" && c.RefreshToken == "" {
		return ErrAuthCodeOrRefreshTokenRequired
	}

	return nil
}

// String renders the credentials with all secrets masked.
func (c *WebServerCredentials) String() string {
	return fmt.Sprintf("oauth2{client_id: %s, client_secret: %s, redirect_uri: %s}",
		c.ClientID, constants.MaskedSecret, c.RedirectURI)
}

// JWTBearerCredentials authenticates with the JWT bearer flow: a fresh
// RS256-signed assertion is exchanged for an access token on every refresh.
// There is no refresh token in this flow.
type JWTBearerCredentials struct {
	ClientID   string
	Username   string
	PrivateKey []byte // PEM-encoded RSA private key
}

// Kind implements Credentials.
func (c *JWTBearerCredentials) Kind() string { return "jwt" }

// Validate implements Credentials.
func (c *JWTBearerCredentials) Validate() error {
	if c.ClientID == "" || c.Username == "" {
		return ErrJWTIdentityRequired
	}

	if len(c.PrivateKey) == 0 {
		return ErrPrivateKeyRequired
	}

	return nil
}

// String renders the credentials with the key masked.
func (c *JWTBearerCredentials) String() string {
	return fmt.Sprintf("jwt{client_id: %s, username: %s, private_key: %s}",
		c.ClientID, c.Username, constants.MaskedSecret)
}

// OrgConfig describes one registered org.
type OrgConfig struct {
	// Alias is the name callers use to select this org.
	Alias string `json:"alias"                yaml:"alias"`
	// Domain is "login", "test", or a full custom host (anything containing
	// a dot is used verbatim as the token host).
	Domain string `json:"domain"               yaml:"domain"`
	// APIVersion is the REST API version, e.g. "59.0".
	APIVersion string `json:"api_version"          yaml:"api_version"`
	// Credentials selects and parameterizes the authentication flow.
	Credentials Credentials `json:"-"                    yaml:"-"`
	// RateLimit overrides the client-wide rate limit for this org.
	RateLimit *RateLimitConfig `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
}

// RateLimitConfig parameterizes the per-org token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	BurstSize         int     `json:"burst_size"          yaml:"burst_size"`
	// WaitOnLimit selects blocking (true) or fail-fast (false) behavior
	// when the bucket is empty.
	WaitOnLimit bool `json:"wait_on_limit"       yaml:"wait_on_limit"`
}

// DefaultRateLimitConfig returns the default bucket parameters.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerSecond: constants.DefaultRequestsPerSecond,
		BurstSize:         constants.DefaultBurstSize,
		WaitOnLimit:       true,
	}
}

// Validate checks the bucket invariants.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerSecond <= 0 {
		return ErrInvalidRequestsPerSecond
	}

	if c.BurstSize < 1 {
		return ErrInvalidBurstSize
	}

	return nil
}

// Token is one org's live access token. ExpiresAt is nil for flows whose
// token response carries no expiry; such tokens are assumed valid until a
// 401 proves otherwise.
type Token struct {
	AccessToken string
	InstanceURL string
	IssuedAt    time.Time
	ExpiresAt   *time.Time
}

// Valid reports whether the token can still be presented. A token with no
// expiry is valid until the server rejects it; one with an expiry must
// outlive the skew buffer that absorbs clock drift and request latency.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}

	if t.ExpiresAt == nil {
		return true
	}

	return time.Now().Add(constants.TokenExpirationBuffer).Before(*t.ExpiresAt)
}

// String renders the token with the secret masked.
func (t *Token) String() string {
	return fmt.Sprintf("token{instance_url: %s, access_token: %s}", t.InstanceURL, constants.MaskedSecret)
}

// QueryResult represents a SOQL query response page.
type QueryResult struct {
	TotalSize      int                      `json:"totalSize"                yaml:"totalSize"`
	Done           bool                     `json:"done"                     yaml:"done"`
	NextRecordsURL string                   `json:"nextRecordsUrl,omitempty" yaml:"nextRecordsUrl,omitempty"`
	Records        []map[string]interface{} `json:"records"                  yaml:"records"`
}

// SearchResult represents a SOSL search response.
type SearchResult struct {
	SearchRecords []map[string]interface{} `json:"searchRecords" yaml:"searchRecords"`
}

// SaveResult represents the response to a record create.
type SaveResult struct {
	ID      string        `json:"id"               yaml:"id"`
	Success bool          `json:"success"          yaml:"success"`
	Errors  []RemoteError `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// FieldDescribe is the subset of field metadata this client exposes.
type FieldDescribe struct {
	Name       string `json:"name"       yaml:"name"`
	Label      string `json:"label"      yaml:"label"`
	Type       string `json:"type"       yaml:"type"`
	Length     int    `json:"length"     yaml:"length"`
	Custom     bool   `json:"custom"     yaml:"custom"`
	Nillable   bool   `json:"nillable"   yaml:"nillable"`
	Createable bool   `json:"createable" yaml:"createable"`
	Updateable bool   `json:"updateable" yaml:"updateable"`
}

// ObjectDescribe represents object metadata.
type ObjectDescribe struct {
	Name        string          `json:"name"        yaml:"name"`
	Label       string          `json:"label"       yaml:"label"`
	LabelPlural string          `json:"labelPlural" yaml:"labelPlural"`
	KeyPrefix   string          `json:"keyPrefix"   yaml:"keyPrefix"`
	Custom      bool            `json:"custom"      yaml:"custom"`
	Queryable   bool            `json:"queryable"   yaml:"queryable"`
	Createable  bool            `json:"createable"  yaml:"createable"`
	Updateable  bool            `json:"updateable"  yaml:"updateable"`
	Deletable   bool            `json:"deletable"   yaml:"deletable"`
	Fields      []FieldDescribe `json:"fields"      yaml:"fields"`
}

// GlobalSObject is one entry of the global object listing.
type GlobalSObject struct {
	Name      string `json:"name"      yaml:"name"`
	Label     string `json:"label"     yaml:"label"`
	KeyPrefix string `json:"keyPrefix" yaml:"keyPrefix"`
	Custom    bool   `json:"custom"    yaml:"custom"`
	Queryable bool   `json:"queryable" yaml:"queryable"`
}

// GlobalDescribe represents the global object listing.
type GlobalDescribe struct {
	Encoding     string          `json:"encoding"     yaml:"encoding"`
	MaxBatchSize int             `json:"maxBatchSize" yaml:"maxBatchSize"`
	SObjects     []GlobalSObject `json:"sobjects"     yaml:"sobjects"`
}

// ApexResult represents the outcome of an anonymous Apex execution.
type ApexResult struct {
	Line                int    `json:"line"                yaml:"line"`
	Column              int    `json:"column"              yaml:"column"`
	Compiled            bool   `json:"compiled"            yaml:"compiled"`
	Success             bool   `json:"success"             yaml:"success"`
	CompileProblem      string `json:"compileProblem"      yaml:"compileProblem"`
	ExceptionMessage    string `json:"exceptionMessage"    yaml:"exceptionMessage"`
	ExceptionStackTrace string `json:"exceptionStackTrace" yaml:"exceptionStackTrace"`
}

// ReportSummary is one entry of the recent-reports listing.
type ReportSummary struct {
	ID           string `json:"id"           yaml:"id"`
	Name         string `json:"name"         yaml:"name"`
	URL          string `json:"url"          yaml:"url"`
	DescribeURL  string `json:"describeUrl"  yaml:"describeUrl"`
	InstancesURL string `json:"instancesUrl" yaml:"instancesUrl"`
}

// ReportResults carries a synchronous report run. FactMap and
// ReportMetadata are kept raw; their shape varies per report format.
type ReportResults struct {
	AllData        bool            `json:"allData"        yaml:"allData"`
	HasDetailRows  bool            `json:"hasDetailRows"  yaml:"hasDetailRows"`
	FactMap        json.RawMessage `json:"factMap"        yaml:"-"`
	ReportMetadata json.RawMessage `json:"reportMetadata" yaml:"-"`
}

// Limit is one org limit: its ceiling and what is left of it.
type Limit struct {
	Max       int `json:"Max"       yaml:"Max"`
	Remaining int `json:"Remaining" yaml:"Remaining"`
}

// Limits maps limit names to their current values.
type Limits map[string]Limit

// BulkOperation enumerates the ingest operations supported by bulk jobs.
type BulkOperation string

// Bulk ingest operations.
const (
	BulkOperationInsert BulkOperation = "insert"
	BulkOperationUpdate BulkOperation = "update"
	BulkOperationUpsert BulkOperation = "upsert"
	BulkOperationDelete BulkOperation = "delete"
)

// BulkJobState enumerates the bulk job lifecycle. JobComplete, Failed, and
// Aborted are terminal.
type BulkJobState string

// Bulk job states.
const (
	BulkJobStateCreated        BulkJobState = "Created"
	BulkJobStateOpen           BulkJobState = "Open"
	BulkJobStateUploadComplete BulkJobState = "UploadComplete"
	BulkJobStateInProgress     BulkJobState = "InProgress"
	BulkJobStateComplete       BulkJobState = "JobComplete"
	BulkJobStateFailed         BulkJobState = "Failed"
	BulkJobStateAborted        BulkJobState = "Aborted"
)

// bulkJobTransitions is the exhaustive transition table for the job state
// machine; anything absent is an illegal transition.
var bulkJobTransitions = map[BulkJobState][]BulkJobState{
	BulkJobStateCreated:        {BulkJobStateOpen},
	BulkJobStateOpen:           {BulkJobStateUploadComplete, BulkJobStateAborted, BulkJobStateFailed},
	BulkJobStateUploadComplete: {BulkJobStateInProgress, BulkJobStateComplete, BulkJobStateFailed, BulkJobStateAborted},
	BulkJobStateInProgress:     {BulkJobStateComplete, BulkJobStateFailed, BulkJobStateAborted},
}

// Terminal reports whether the state ends the job lifecycle.
func (s BulkJobState) Terminal() bool {
	switch s {
	case BulkJobStateComplete, BulkJobStateFailed, BulkJobStateAborted:
		return true
	case BulkJobStateCreated, BulkJobStateOpen, BulkJobStateUploadComplete, BulkJobStateInProgress:
		return false
	}

	return false
}

// CanTransitionTo reports whether the transition table permits moving from
// s to next. Observing the same state again while polling is always legal.
func (s BulkJobState) CanTransitionTo(next BulkJobState) bool {
	if s == next {
		return true
	}

	for _, allowed := range bulkJobTransitions[s] {
		if next == allowed {
			return true
		}
	}

	return false
}

// BulkJobInfo is the job resource as reported by the ingest endpoints.
type BulkJobInfo struct {
	ID                     string        `json:"id"                               yaml:"id"`
	Object                 string        `json:"object"                           yaml:"object"`
	Operation              BulkOperation `json:"operation"                        yaml:"operation"`
	State                  BulkJobState  `json:"state"                            yaml:"state"`
	CreatedDate            string        `json:"createdDate,omitempty"            yaml:"createdDate,omitempty"`
	StateMessage           string        `json:"stateMessage,omitempty"           yaml:"stateMessage,omitempty"`
	ExternalIDFieldName    string        `json:"externalIdFieldName,omitempty"    yaml:"externalIdFieldName,omitempty"`
	NumberRecordsProcessed int           `json:"numberRecordsProcessed,omitempty" yaml:"numberRecordsProcessed,omitempty"`
	NumberRecordsFailed    int           `json:"numberRecordsFailed,omitempty"    yaml:"numberRecordsFailed,omitempty"`
}

// BulkOptions tunes one orchestrator run. The zero value selects all
// defaults.
type BulkOptions struct {
	// BatchSize caps records per uploaded CSV chunk (default 200).
	BatchSize int
	// PollInterval is the delay between status checks (default 2s).
	PollInterval time.Duration
	// MaxPolls bounds the number of status checks (default 150).
	MaxPolls int
	// ExternalIDField names the upsert key; required for upsert jobs.
	ExternalIDField string
}

// BulkRecordResult is the per-record outcome, index-aligned with the
// submitted records.
type BulkRecordResult struct {
	Index     int    `json:"index"                yaml:"index"`
	Success   bool   `json:"success"              yaml:"success"`
	CreatedID string `json:"created_id,omitempty" yaml:"created_id,omitempty"`
	Error     string `json:"error,omitempty"      yaml:"error,omitempty"`
}

// BulkJobResult is the terminal outcome of a bulk run.
type BulkJobResult struct {
	JobID            string             `json:"job_id"            yaml:"job_id"`
	State            BulkJobState       `json:"state"             yaml:"state"`
	RecordsProcessed int                `json:"records_processed" yaml:"records_processed"`
	RecordsFailed    int                `json:"records_failed"    yaml:"records_failed"`
	Records          []BulkRecordResult `json:"records"           yaml:"records"`
}
